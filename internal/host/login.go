package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	"github.com/marcogenualdo/discord-join/internal/auth"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	accountField  = "userid"
	passwordField = "password"
	joinField     = "join"
)

var errPageNotLoaded = errors.New("page not loaded")

// LoginPage is the host's join form. Ready must succeed before the other
// methods are used; it keeps the parsed form for the rest of the flow.
type LoginPage struct {
	client   *Client
	path     string
	prompter Prompter
	out      io.Writer
	logger   *slog.Logger

	pageURL *url.URL
	form    *html.Node
	join    *html.Node
	account string
	authURL string
}

func NewLoginPage(client *Client, path string, prompter Prompter, out io.Writer, logger *slog.Logger) *LoginPage {
	return &LoginPage{
		client:   client,
		path:     path,
		prompter: prompter,
		out:      out,
		logger:   logger,
	}
}

// Ready reports whether the page has a join button inside a form. An
// unreachable host counts as not ready.
func (p *LoginPage) Ready(ctx context.Context) (bool, error) {
	doc, pageURL, err := p.client.fetch(ctx, p.path)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		p.logger.Debug("login page not ready", "error", err)
		return false, nil
	}

	join := byName(doc, joinField)
	if join == nil {
		return false, nil
	}
	form := closest(join, atom.Form)
	if form == nil {
		return false, nil
	}

	p.pageURL, p.form, p.join = pageURL, form, join
	return true, nil
}

func (p *LoginPage) Accounts(context.Context) ([]auth.AllowlistEntry, error) {
	if p.form == nil {
		return nil, errPageNotLoaded
	}

	sel := findFirst(p.form, func(n *html.Node) bool {
		return n.DataAtom == atom.Select && attr(n, "name") == accountField
	})
	if sel == nil {
		return nil, fmt.Errorf("login form has no %q selector", accountField)
	}

	var entries []auth.AllowlistEntry
	for _, o := range findAll(sel, func(n *html.Node) bool { return n.DataAtom == atom.Option }) {
		label := optionLabel(o)
		if label == "" {
			continue
		}
		entries = append(entries, auth.AllowlistEntry{
			DisplayName:   label,
			AccountHandle: optionValue(o),
		})
	}
	return entries, nil
}

func (p *LoginPage) ShowStatus(message string) {
	fmt.Fprintln(p.out, message)
}

func (p *LoginPage) OfferAuthorization(authURL string) {
	p.authURL = authURL
	fmt.Fprintf(p.out, "Login with Discord: %s\n", authURL)
}

// AuthorizationURL is the URL last offered to the player.
func (p *LoginPage) AuthorizationURL() string {
	return p.authURL
}

func (p *LoginPage) SelectAccount(handle string) error {
	accounts, err := p.Accounts(context.Background())
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if a.AccountHandle == handle {
			p.account = handle
			return nil
		}
	}
	return fmt.Errorf("account %q is not offered by the login form", handle)
}

func (p *LoginPage) AccessKey(context.Context) (string, error) {
	return p.prompter.Prompt("Access key: ")
}

func (p *LoginPage) Submit(ctx context.Context, password string) error {
	if p.form == nil {
		return errPageNotLoaded
	}

	values := formValues(p.form)
	if p.account != "" {
		values.Set(accountField, p.account)
	}
	values.Set(passwordField, password)
	if name := attr(p.join, "name"); name != "" {
		values.Set(name, attr(p.join, "value"))
	}

	if err := p.client.submit(ctx, p.pageURL, p.form, values); err != nil {
		return err
	}

	p.logger.Info("joined host", "account", p.account)
	return nil
}
