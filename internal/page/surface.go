// Package page describes the two host pages the orchestrators drive. The host
// owns both pages; implementations only read them, add fields of their own and
// trigger the host's native submission.
package page

import (
	"context"

	"github.com/marcogenualdo/discord-join/internal/auth"
	"github.com/marcogenualdo/discord-join/internal/composite"
)

// LoginSurface is the host's player login form.
type LoginSurface interface {
	// Ready reports whether the login form and its join button are present.
	Ready(ctx context.Context) (bool, error)

	// Accounts lists the selectable accounts. Entries with an empty label are
	// skipped.
	Accounts(ctx context.Context) ([]auth.AllowlistEntry, error)

	ShowStatus(message string)
	OfferAuthorization(authURL string)

	// SelectAccount replaces the account selector with a fixed handle.
	SelectAccount(handle string) error

	// AccessKey reads the secret typed into the generated access-key field.
	AccessKey(ctx context.Context) (string, error)

	// Submit writes password into the host's own password field and triggers
	// the host's native join action.
	Submit(ctx context.Context, password string) error
}

// RosterSurface is the host's player management form. Rows are addressed by
// the host's data-user-id.
type RosterSurface interface {
	Ready(ctx context.Context) (bool, error)
	Rows(ctx context.Context) ([]string, error)

	// HasFields reports whether the composite inputs were already added to row.
	HasFields(rowID string) bool

	// InjectFields adds one input per kind plus an access-key input and hides
	// the row's raw password input.
	InjectFields(rowID string, kinds []composite.Kind) error

	// Values returns what is currently typed into the row's composite inputs.
	Values(rowID string) (composite.Values, string)

	SetPassword(rowID, value string) error
	SetHeaders(labels []string)

	// Submit invokes the host's native save action.
	Submit(ctx context.Context) error

	// CreateRow invokes the host's native "create user" action and returns
	// the id of the new row.
	CreateRow(ctx context.Context) (string, error)
}
