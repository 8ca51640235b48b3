package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/marcogenualdo/discord-join/internal/auth"
	"github.com/marcogenualdo/discord-join/internal/cache"
	"github.com/marcogenualdo/discord-join/internal/host"
	"github.com/marcogenualdo/discord-join/internal/login"
	"github.com/marcogenualdo/discord-join/internal/readiness"
	"github.com/marcogenualdo/discord-join/internal/roster"
	"github.com/marcogenualdo/discord-join/internal/server"
	"github.com/marcogenualdo/discord-join/internal/session"
)

var errNotJoined = errors.New("not authenticated, host form was not submitted")

func (a *app) join(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("join", flag.ContinueOnError)
	location := fs.String("location", "", "URL (or #fragment) the provider redirected to")
	noRelay := fs.Bool("no-relay", false, "do not start the callback relay server")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sessionCache, err := cache.New(ctx, a.cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to create cache: %w", err)
	}
	defer sessionCache.Close()
	a.logger.Debug("cache initialized", "type", a.cfg.Cache.Type)

	client, err := host.NewClient(a.cfg.Host, a.httpClient, a.logger)
	if err != nil {
		return err
	}

	page := host.NewLoginPage(client, a.cfg.Host.JoinPath, host.NewTerminalPrompter(os.Stdin, os.Stdout), os.Stdout, a.logger)
	orchestrator := login.NewOrchestrator(
		page,
		auth.NewResolver(a.provider, a.logger),
		session.NewStore(sessionCache, a.logger),
		a.kinds,
		a.logger,
	)

	var relay *server.Server
	if !*noRelay && *location == "" {
		relay, err = server.New(*a.cfg, cache.NewMemoryCache(), a.provider, a.logger)
		if err != nil {
			return fmt.Errorf("failed to create relay server: %w", err)
		}
		if err := relay.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = relay.Shutdown(shutdownCtx)
		}()
	}

	submitted, err := a.joinOnce(ctx, page, orchestrator, *location)
	if err != nil || submitted {
		return err
	}

	if relay == nil {
		return errNotJoined
	}

	fmt.Fprintf(os.Stdout, "Waiting for the Discord redirect on %s ...\n", a.cfg.CallbackURL)
	fragment, err := relay.WaitForFragment(ctx)
	if err != nil {
		return err
	}

	submitted, err = a.joinOnce(ctx, page, orchestrator, "#"+fragment)
	if err != nil {
		return err
	}
	if !submitted {
		return errNotJoined
	}
	return nil
}

// joinOnce waits for the login form and runs one orchestrator pass.
func (a *app) joinOnce(ctx context.Context, page *host.LoginPage, orchestrator *login.Orchestrator, location string) (bool, error) {
	var submitted bool
	var runErr error

	w := readiness.StartWithLogger(ctx, a.logger, a.cfg.Host.ReadyInterval, page.Ready, func(ctx context.Context) {
		submitted, runErr = orchestrator.Run(ctx, location)
	})
	<-w.Done()

	if err := w.Err(); err != nil {
		return false, fmt.Errorf("login page never became ready: %w", err)
	}
	return submitted, runErr
}

func (a *app) players(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("players", flag.ContinueOnError)
	rosterPath := fs.String("roster", "", "YAML file listing the managed accounts")
	dryRun := fs.Bool("dry-run", false, "print the augmented page instead of submitting it")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *rosterPath == "" {
		return errors.New("players: -roster is required")
	}

	entries, err := roster.LoadEntries(*rosterPath)
	if err != nil {
		return err
	}

	client, err := host.NewClient(a.cfg.Host, a.httpClient, a.logger)
	if err != nil {
		return err
	}

	page := host.NewRosterPage(client, a.cfg.Host.PlayersPath, a.logger)
	orchestrator := roster.NewOrchestrator(page, a.kinds, a.logger)

	var runErr error
	w := readiness.StartWithLogger(ctx, a.logger, a.cfg.Host.ReadyInterval, page.Ready, func(ctx context.Context) {
		runErr = applyRoster(ctx, orchestrator, page, entries, *dryRun, os.Stdout)
	})
	<-w.Done()

	if err := w.Err(); err != nil {
		return fmt.Errorf("roster page never became ready: %w", err)
	}
	return runErr
}

func applyRoster(ctx context.Context, orchestrator *roster.Orchestrator, page *host.RosterPage, entries []roster.Entry, dryRun bool, out io.Writer) error {
	if err := orchestrator.Augment(ctx); err != nil {
		return err
	}

	for _, e := range entries {
		rowID := e.UserID
		if rowID == "" {
			var err error
			if rowID, err = orchestrator.AddAccount(ctx); err != nil {
				return err
			}
		}
		if err := page.Fill(rowID, e.Name, e.Values(), e.AccessKey); err != nil {
			return err
		}
	}

	if dryRun {
		return page.Render(out)
	}
	return orchestrator.Submit(ctx)
}
