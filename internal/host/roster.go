package host

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/marcogenualdo/discord-join/internal/composite"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	rosterFormID      = "manage-players"
	playerListID      = "player-list"
	rowUserIDAttr     = "data-user-id"
	createUserAction  = "create-user"
	headerUserName    = "Discord UserName#0000 | User Name"
	headerMarkerClass = "discord-composite-header"
)

var fieldSuffixes = map[composite.Kind]string{
	composite.KindIdentityID:    "discordId",
	composite.KindIdentityEmail: "email",
}

const accessKeySuffix = "accessKey"

func compositeClass(rowID string) string {
	return "discord-composite-" + rowID
}

func fieldID(rowID, suffix string) string {
	return "users." + rowID + "." + suffix
}

// RosterPage is the host's player management form. Composite inputs are
// added to the parsed page and read back from it; they carry no name, so the
// host never receives them.
type RosterPage struct {
	client *Client
	path   string
	logger *slog.Logger

	doc       *html.Node
	pageURL   *url.URL
	form      *html.Node
	roleLabel *html.Node
	headers   []*html.Node
}

func NewRosterPage(client *Client, path string, logger *slog.Logger) *RosterPage {
	return &RosterPage{
		client: client,
		path:   path,
		logger: logger,
	}
}

// Ready reports whether the management form lists at least one player.
func (p *RosterPage) Ready(ctx context.Context) (bool, error) {
	doc, pageURL, err := p.client.fetch(ctx, p.path)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		p.logger.Debug("roster page not ready", "error", err)
		return false, nil
	}

	form := byID(doc, rosterFormID)
	if form == nil || len(playerRows(form)) == 0 {
		return false, nil
	}

	p.doc, p.pageURL, p.form = doc, pageURL, form
	p.roleLabel, p.headers = nil, nil
	return true, nil
}

func playerRows(root *html.Node) []*html.Node {
	return findAll(root, func(n *html.Node) bool {
		return n.DataAtom == atom.Li && hasClass(n, "player") && hasAttr(n, rowUserIDAttr)
	})
}

func (p *RosterPage) Rows(context.Context) ([]string, error) {
	if p.form == nil {
		return nil, errPageNotLoaded
	}

	rows := playerRows(p.form)
	ids := make([]string, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, attr(row, rowUserIDAttr))
	}
	return ids, nil
}

func (p *RosterPage) row(rowID string) (*html.Node, error) {
	if p.form == nil {
		return nil, errPageNotLoaded
	}
	row := findFirst(p.form, func(n *html.Node) bool {
		return n.DataAtom == atom.Li && attr(n, rowUserIDAttr) == rowID
	})
	if row == nil {
		return nil, fmt.Errorf("no player row %q", rowID)
	}
	return row, nil
}

func (p *RosterPage) compositeInputs(row *html.Node, rowID string) []*html.Node {
	class := compositeClass(rowID)
	return findAll(row, func(n *html.Node) bool { return hasClass(n, class) })
}

func (p *RosterPage) HasFields(rowID string) bool {
	row, err := p.row(rowID)
	if err != nil {
		return false
	}
	return len(p.compositeInputs(row, rowID)) > 0
}

// InjectFields hides the row's password group and inserts the composite
// inputs in front of the group that follows it.
func (p *RosterPage) InjectFields(rowID string, kinds []composite.Kind) error {
	row, err := p.row(rowID)
	if err != nil {
		return err
	}

	password := byName(row, fieldID(rowID, passwordField))
	if password == nil {
		return fmt.Errorf("player row %q has no password input", rowID)
	}

	group := password
	for g := password.Parent; g != nil && g != row; g = g.Parent {
		if hasClass(g, "form-group") {
			group = g
			break
		}
	}
	setAttr(group, "style", "display: none;")

	inputs := make([]*html.Node, 0, len(kinds)+1)
	for _, k := range kinds {
		switch k {
		case composite.KindIdentityID:
			inputs = append(inputs, compositeInput(rowID, fieldSuffixes[k], "number", strings.Repeat("0", 20)))
		case composite.KindIdentityEmail:
			inputs = append(inputs, compositeInput(rowID, fieldSuffixes[k], "text", strings.Repeat("*", 20)))
		}
	}
	inputs = append(inputs, compositeInput(rowID, accessKeySuffix, "password", strings.Repeat("*", 20)))

	parent, before := group.Parent, group.NextSibling
	for before != nil && before.Type != html.ElementNode {
		before = before.NextSibling
	}
	for _, in := range inputs {
		parent.InsertBefore(in, before)
	}
	return nil
}

func compositeInput(rowID, suffix, inputType, placeholder string) *html.Node {
	return newElement(atom.Input,
		html.Attribute{Key: "id", Val: fieldID(rowID, suffix)},
		html.Attribute{Key: "type", Val: inputType},
		html.Attribute{Key: "placeholder", Val: placeholder},
		html.Attribute{Key: "autocomplete", Val: "off"},
		html.Attribute{Key: "class", Val: compositeClass(rowID)},
	)
}

func (p *RosterPage) Values(rowID string) (composite.Values, string) {
	values := composite.Values{}
	row, err := p.row(rowID)
	if err != nil {
		return values, ""
	}

	for kind, suffix := range fieldSuffixes {
		if in := byID(row, fieldID(rowID, suffix)); in != nil {
			values[kind] = attr(in, "value")
		}
	}

	var accessKey string
	if in := byID(row, fieldID(rowID, accessKeySuffix)); in != nil {
		accessKey = attr(in, "value")
	}
	return values, accessKey
}

// Fill types values into a row's composite inputs and, when name is set, its
// name input.
func (p *RosterPage) Fill(rowID, name string, values composite.Values, accessKey string) error {
	row, err := p.row(rowID)
	if err != nil {
		return err
	}
	if len(p.compositeInputs(row, rowID)) == 0 {
		return fmt.Errorf("player row %q has no composite fields", rowID)
	}

	for kind, v := range values {
		if in := byID(row, fieldID(rowID, fieldSuffixes[kind])); in != nil {
			setAttr(in, "value", v)
		}
	}
	if in := byID(row, fieldID(rowID, accessKeySuffix)); in != nil {
		setAttr(in, "value", accessKey)
	}
	if name != "" {
		if in := byName(row, fieldID(rowID, "name")); in != nil {
			setAttr(in, "value", name)
		}
	}
	return nil
}

func (p *RosterPage) SetPassword(rowID, value string) error {
	row, err := p.row(rowID)
	if err != nil {
		return err
	}
	password := byName(row, fieldID(rowID, passwordField))
	if password == nil {
		return fmt.Errorf("player row %q has no password input", rowID)
	}
	setAttr(password, "value", value)
	return nil
}

// SetHeaders replaces the password column label with labels. Repeated calls
// replace the labels inserted by the previous call.
func (p *RosterPage) SetHeaders(labels []string) {
	if p.doc == nil {
		return
	}

	for _, n := range p.headers {
		detach(n)
	}
	p.headers = nil

	if p.roleLabel == nil {
		list := byID(p.doc, playerListID)
		header := findFirst(list, func(n *html.Node) bool { return n.DataAtom == atom.Li && hasClass(n, "header") })
		cols := findAll(header, func(n *html.Node) bool { return n.DataAtom == atom.Label })
		if len(cols) < 3 {
			p.logger.Debug("roster header not found, leaving labels unchanged")
			return
		}
		setText(cols[0], headerUserName)
		detach(cols[1])
		p.roleLabel = cols[2]
	}

	for _, l := range labels {
		label := newElement(atom.Label, html.Attribute{Key: "class", Val: headerMarkerClass})
		label.AppendChild(&html.Node{Type: html.TextNode, Data: l})
		p.roleLabel.Parent.InsertBefore(label, p.roleLabel)
		p.headers = append(p.headers, label)
	}
}

// Submit posts the management form as the host's footer submit button would.
func (p *RosterPage) Submit(ctx context.Context) error {
	if p.form == nil {
		return errPageNotLoaded
	}

	values := formValues(p.form)
	button := findFirst(p.form, func(n *html.Node) bool {
		return n.DataAtom == atom.Button && strings.EqualFold(attr(n, "type"), "submit")
	})
	if button != nil && attr(button, "name") != "" {
		values.Set(attr(button, "name"), attr(button, "value"))
	}

	if err := p.client.submit(ctx, p.pageURL, p.form, values); err != nil {
		return err
	}

	p.logger.Info("roster submitted", "rows", len(playerRows(p.form)))
	return nil
}

// CreateRow performs the host's "create user" action: a copy of the last row
// with a fresh id, empty values and no composite inputs.
func (p *RosterPage) CreateRow(context.Context) (string, error) {
	if p.form == nil {
		return "", errPageNotLoaded
	}

	create := findFirst(p.form, func(n *html.Node) bool { return attr(n, "data-action") == createUserAction })
	if create == nil {
		return "", fmt.Errorf("roster form has no %q action", createUserAction)
	}

	rows := playerRows(p.form)
	if len(rows) == 0 {
		return "", fmt.Errorf("roster form has no row to copy")
	}
	last := rows[len(rows)-1]
	oldID := attr(last, rowUserIDAttr)
	newID := uuid.NewString()

	row := cloneNode(last)
	setAttr(row, rowUserIDAttr, newID)

	for _, n := range p.compositeInputs(row, oldID) {
		detach(n)
	}
	oldPrefix, newPrefix := "users."+oldID+".", "users."+newID+"."
	for _, n := range findAll(row, func(*html.Node) bool { return true }) {
		for _, key := range []string{"id", "name", "for"} {
			if v := attr(n, key); strings.HasPrefix(v, oldPrefix) {
				setAttr(n, key, newPrefix+strings.TrimPrefix(v, oldPrefix))
			}
		}
		if n.DataAtom == atom.Input && isTextInput(n) {
			removeAttr(n, "value")
		}
		if hasClass(n, "form-group") {
			removeAttr(n, "style")
		}
	}

	last.Parent.InsertBefore(row, last.NextSibling)
	p.logger.Debug("created player row", "row", newID)
	return newID, nil
}

func isTextInput(n *html.Node) bool {
	switch strings.ToLower(attr(n, "type")) {
	case "", "text", "password", "email", "number":
		return true
	}
	return false
}

// Render writes the augmented page.
func (p *RosterPage) Render(w io.Writer) error {
	if p.doc == nil {
		return errPageNotLoaded
	}
	return html.Render(w, p.doc)
}
