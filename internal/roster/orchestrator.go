// Package roster augments the host's player management page so an
// administrator can enter composite credential fragments per account.
package roster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marcogenualdo/discord-join/internal/composite"
	"github.com/marcogenualdo/discord-join/internal/page"
)

const accessKeyLabel = "Access Key"

var kindLabels = map[composite.Kind]string{
	composite.KindIdentityID:    "Discord ID",
	composite.KindIdentityEmail: "Email",
}

// Headers returns the column labels for the composite inputs, in input order.
func Headers(kinds []composite.Kind) []string {
	labels := make([]string, 0, len(kinds)+1)
	for _, k := range kinds {
		labels = append(labels, kindLabels[k])
	}
	return append(labels, accessKeyLabel)
}

type Orchestrator struct {
	surface page.RosterSurface
	kinds   []composite.Kind
	logger  *slog.Logger
}

func NewOrchestrator(surface page.RosterSurface, kinds []composite.Kind, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		surface: surface,
		kinds:   kinds,
		logger:  logger,
	}
}

// Augment adds composite inputs to every row that does not have them yet.
func (o *Orchestrator) Augment(ctx context.Context) error {
	rows, err := o.surface.Rows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rows: %w", err)
	}

	o.surface.SetHeaders(Headers(o.kinds))

	for _, rowID := range rows {
		if o.surface.HasFields(rowID) {
			continue
		}
		if err := o.surface.InjectFields(rowID, o.kinds); err != nil {
			return fmt.Errorf("failed to augment row %s: %w", rowID, err)
		}
		o.logger.Debug("augmented row", "row", rowID)
	}
	return nil
}

// Submit writes each row's composite credential into its password input and
// then runs the host's save action. Rows whose credential is empty keep the
// host's value.
func (o *Orchestrator) Submit(ctx context.Context) error {
	rows, err := o.surface.Rows(ctx)
	if err != nil {
		return fmt.Errorf("failed to list rows: %w", err)
	}

	for _, rowID := range rows {
		values, accessKey := o.surface.Values(rowID)
		credential := composite.Compose(o.kinds, values, accessKey)
		if credential == "" {
			o.logger.Debug("skipping password for row", "row", rowID)
			continue
		}
		if err := o.surface.SetPassword(rowID, credential); err != nil {
			return fmt.Errorf("failed to set password for row %s: %w", rowID, err)
		}
		o.logger.Debug("set composite password", "row", rowID)
	}

	if err := o.surface.Submit(ctx); err != nil {
		return fmt.Errorf("failed to submit roster: %w", err)
	}
	return nil
}

// AddAccount runs the host's create action and augments the new row.
func (o *Orchestrator) AddAccount(ctx context.Context) (string, error) {
	rowID, err := o.surface.CreateRow(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create row: %w", err)
	}
	if err := o.Augment(ctx); err != nil {
		return "", err
	}
	return rowID, nil
}
