package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/marcogenualdo/discord-join/internal/auth"
	"github.com/marcogenualdo/discord-join/internal/auth/discord"
	"github.com/marcogenualdo/discord-join/internal/auth/oidc"
	"github.com/marcogenualdo/discord-join/internal/composite"
	"github.com/marcogenualdo/discord-join/internal/config"
)

const (
	version           = "1.0.0"
	defaultConfigPath = "discord-join.yaml"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	configPathShort := flag.String("c", defaultConfigPath, "path to configuration file (short)")
	showVersion := flag.Bool("version", false, "show version and exit")
	showHelp := flag.Bool("help", false, "show help and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("discord-join v%s\n", version)
		os.Exit(0)
	}

	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	cfgPath := *configPath
	if *configPathShort != defaultConfigPath {
		cfgPath = *configPathShort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfgPath, flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("discord-join - Discord login for player join and roster pages")
	fmt.Println("\nUsage:")
	fmt.Println("  discord-join [flags] join [-location URL] [-no-relay]")
	fmt.Println("  discord-join [flags] players -roster FILE [-dry-run]")
	fmt.Println("  discord-join [flags] authorize-url")
	fmt.Println("\nFlags:")
	flag.PrintDefaults()
}

// app carries what every command needs.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpClient *http.Client
	provider   auth.Provider
	kinds      []composite.Kind
}

func run(ctx context.Context, configPath string, args []string) error {
	if len(args) == 0 {
		printUsage()
		return errors.New("missing command")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	logger.Debug("starting discord-join", "version", version, "command", args[0])

	kinds, err := composite.ParseKinds(cfg.CompositeFragments)
	if err != nil {
		return fmt.Errorf("invalid composite_fragments: %w", err)
	}

	httpClient := &http.Client{Timeout: cfg.Host.Timeout}

	provider, err := newProvider(ctx, cfg, httpClient)
	if err != nil {
		return err
	}
	logger.Debug("provider initialized", "id", provider.ID(), "type", provider.Type())

	a := &app{
		cfg:        cfg,
		logger:     logger,
		httpClient: httpClient,
		provider:   provider,
		kinds:      kinds,
	}

	switch args[0] {
	case "join":
		return a.join(ctx, args[1:])
	case "players":
		return a.players(ctx, args[1:])
	case "authorize-url":
		fmt.Println(provider.AuthorizationURL())
		return nil
	default:
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func newProvider(ctx context.Context, cfg *config.Config, httpClient *http.Client) (auth.Provider, error) {
	switch cfg.Provider.Type {
	case "oidc":
		p, err := oidc.NewProvider(ctx, cfg.Provider, cfg.CallbackURL, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
		}
		return p, nil
	case "discord":
		p, err := discord.NewProvider(cfg.Provider, cfg.CallbackURL, httpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create Discord provider: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported provider type: %s", cfg.Provider.Type)
	}
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// stdout is reserved for status lines and prompts.
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
