package roster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/marcogenualdo/discord-join/internal/composite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	password  string
	fields    bool
	values    composite.Values
	accessKey string
}

type fakeRoster struct {
	order     []string
	rows      map[string]*fakeRow
	headers   []string
	injected  []string
	submitted int
	submitErr error
}

func newFakeRoster(ids ...string) *fakeRoster {
	r := &fakeRoster{rows: map[string]*fakeRow{}}
	for _, id := range ids {
		r.order = append(r.order, id)
		r.rows[id] = &fakeRow{password: "old-" + id, values: composite.Values{}}
	}
	return r
}

func (r *fakeRoster) Ready(context.Context) (bool, error) { return len(r.order) > 0, nil }

func (r *fakeRoster) Rows(context.Context) ([]string, error) {
	return append([]string(nil), r.order...), nil
}

func (r *fakeRoster) HasFields(rowID string) bool { return r.rows[rowID].fields }

func (r *fakeRoster) InjectFields(rowID string, _ []composite.Kind) error {
	r.rows[rowID].fields = true
	r.injected = append(r.injected, rowID)
	return nil
}

func (r *fakeRoster) Values(rowID string) (composite.Values, string) {
	row := r.rows[rowID]
	return row.values, row.accessKey
}

func (r *fakeRoster) SetPassword(rowID, value string) error {
	r.rows[rowID].password = value
	return nil
}

func (r *fakeRoster) SetHeaders(labels []string) { r.headers = labels }

func (r *fakeRoster) Submit(context.Context) error {
	if r.submitErr != nil {
		return r.submitErr
	}
	r.submitted++
	return nil
}

func (r *fakeRoster) CreateRow(context.Context) (string, error) {
	id := fmt.Sprintf("new-%d", len(r.order))
	r.order = append(r.order, id)
	r.rows[id] = &fakeRow{values: composite.Values{}}
	return id, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var allKinds = []composite.Kind{composite.KindIdentityID, composite.KindIdentityEmail}

func TestHeaders(t *testing.T) {
	assert.Equal(t, []string{"Discord ID", "Email", "Access Key"}, Headers(allKinds))
	assert.Equal(t, []string{"Email", "Access Key"}, Headers([]composite.Kind{composite.KindIdentityEmail}))
	assert.Equal(t, []string{"Access Key"}, Headers(nil))
}

func TestAugment_SkipsRowsWithFields(t *testing.T) {
	surface := newFakeRoster("1", "2")
	surface.rows["2"].fields = true
	o := NewOrchestrator(surface, allKinds, discardLogger())

	require.NoError(t, o.Augment(context.Background()))
	assert.Equal(t, []string{"1"}, surface.injected)
	assert.Equal(t, Headers(allKinds), surface.headers)

	require.NoError(t, o.Augment(context.Background()))
	assert.Equal(t, []string{"1"}, surface.injected)
}

func TestSubmit_ComposesPerRow(t *testing.T) {
	surface := newFakeRoster("1", "2", "3")
	surface.rows["1"].values = composite.Values{composite.KindIdentityID: "999", composite.KindIdentityEmail: "a@b.com"}
	surface.rows["1"].accessKey = "secret"
	surface.rows["2"].values = composite.Values{composite.KindIdentityEmail: "c@d.com"}
	o := NewOrchestrator(surface, allKinds, discardLogger())

	require.NoError(t, o.Submit(context.Background()))

	assert.Equal(t, "999+a@b.com+secret", surface.rows["1"].password)
	assert.Equal(t, "c@d.com", surface.rows["2"].password)
	assert.Equal(t, "old-3", surface.rows["3"].password)
	assert.Equal(t, 1, surface.submitted)
}

func TestSubmit_IgnoresUnconfiguredKinds(t *testing.T) {
	surface := newFakeRoster("1")
	surface.rows["1"].values = composite.Values{composite.KindIdentityID: "999", composite.KindIdentityEmail: "a@b.com"}
	surface.rows["1"].accessKey = "secret"
	o := NewOrchestrator(surface, nil, discardLogger())

	require.NoError(t, o.Submit(context.Background()))
	assert.Equal(t, "secret", surface.rows["1"].password)
}

func TestSubmit_HostError(t *testing.T) {
	surface := newFakeRoster("1")
	surface.submitErr = errors.New("boom")
	o := NewOrchestrator(surface, allKinds, discardLogger())

	err := o.Submit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestAddAccount_AugmentsNewRow(t *testing.T) {
	surface := newFakeRoster("1")
	o := NewOrchestrator(surface, allKinds, discardLogger())
	require.NoError(t, o.Augment(context.Background()))

	id, err := o.AddAccount(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "new-1", id)
	assert.True(t, surface.rows[id].fields)
	assert.Equal(t, []string{"1", "new-1"}, surface.injected)
}
