package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Soumil-07/bkmgr/internal/config"
	"github.com/Soumil-07/bkmgr/internal/database"
	"github.com/Soumil-07/bkmgr/internal/models"
)

// MockTransport is a mock implementation of Transport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, req Request) error {
	return m.Called(ctx, req).Error(0)
}

type answer struct {
	yes   bool
	asked []string
}

func (a *answer) Confirm(question string) (bool, error) {
	a.asked = append(a.asked, question)
	return a.yes, nil
}

var testEmail = &config.EmailConfig{
	SMTP:     "smtp.example.com",
	Port:     587,
	Password: "secret",
	From:     "me@example.com",
	To:       "reader@kindle.example.com",
}

func settings() (*config.EmailConfig, error) { return testEmail, nil }

type fixture struct {
	dir   string
	store *database.Database
	war   string
	notes string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	home := t.TempDir()
	dir := filepath.Join(home, "Books")
	require.NoError(t, os.Mkdir(dir, 0o755))

	store, err := database.Open(filepath.Join(home, "books.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	f := &fixture{dir: dir, store: store}
	f.war = catalog(t, store, dir, "War-and-Peace.epub", "War and Peace")
	f.notes = catalog(t, store, dir, "warehouse-notes.pdf", "Warehouse Notes")
	return f
}

func catalog(t *testing.T, store *database.Database, dir, name, title string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(title), 0o644))
	_, err := store.Insert(context.Background(), path, &models.Metadata{
		Title:       title,
		Authors:     []string{"Leo Tolstoy"},
		Language:    "en",
		PublishedAt: time.Date(1869, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return path
}

func (f *fixture) uploaded(t *testing.T, path string) bool {
	t.Helper()
	e, err := f.store.Fetch(context.Background(), path)
	require.NoError(t, err)
	return e.Uploaded
}

func TestDeliverSends(t *testing.T) {
	f := newFixture(t)
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.MatchedBy(func(r Request) bool {
		return r.Path == f.war && r.Title == "War and Peace" && r.Convert && r.Email.To == testEmail.To
	})).Return(nil).Once()

	o := NewOrchestrator(f.dir, f.store, transport, &answer{}, settings, nil)
	res, err := o.Deliver(context.Background(), "war-and", false)
	require.NoError(t, err)

	assert.True(t, res.Sent)
	assert.True(t, res.Converted)
	assert.True(t, res.MarkedUploaded)
	assert.True(t, f.uploaded(t, f.war))
	transport.AssertExpectations(t)
}

func TestDeliverPicksFirstMatch(t *testing.T) {
	f := newFixture(t)
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.Anything).Return(nil)

	// both names contain "war"; directory order puts War-and-Peace first
	res, err := NewOrchestrator(f.dir, f.store, transport, &answer{}, settings, nil).
		Deliver(context.Background(), "WAR", false)
	require.NoError(t, err)
	assert.Equal(t, f.war, res.Path)
	assert.False(t, f.uploaded(t, f.notes))
}

func TestDeliverNativeFormatIsNotConverted(t *testing.T) {
	f := newFixture(t)
	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.MatchedBy(func(r Request) bool { return !r.Convert })).Return(nil).Once()

	res, err := NewOrchestrator(f.dir, f.store, transport, &answer{}, settings, nil).
		Deliver(context.Background(), "notes", false)
	require.NoError(t, err)
	assert.False(t, res.Converted)
	transport.AssertExpectations(t)
}

func TestDeliverDryRun(t *testing.T) {
	f := newFixture(t)
	transport := new(MockTransport)
	called := false
	noSettings := func() (*config.EmailConfig, error) {
		called = true
		return nil, config.ErrConfigNotFound
	}
	o := NewOrchestrator(f.dir, f.store, transport, &answer{}, noSettings, nil)

	// first dry run marks the book uploaded without sending
	res, err := o.Deliver(context.Background(), "peace", true)
	require.NoError(t, err)
	assert.False(t, res.Sent)
	assert.True(t, res.MarkedUploaded)
	assert.True(t, f.uploaded(t, f.war))

	// second dry run is a no-op
	res, err = o.Deliver(context.Background(), "peace", true)
	require.NoError(t, err)
	assert.True(t, res.AlreadyUploaded)
	assert.False(t, res.MarkedUploaded)

	assert.False(t, called)
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDeliverAlreadyUploadedDeclined(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.MarkUploaded(context.Background(), f.war))

	transport := new(MockTransport)
	confirm := &answer{yes: false}
	res, err := NewOrchestrator(f.dir, f.store, transport, confirm, settings, nil).
		Deliver(context.Background(), "peace", false)
	require.NoError(t, err)

	assert.True(t, res.Declined)
	require.Len(t, confirm.asked, 1)
	assert.Contains(t, confirm.asked[0], `"War and Peace"`)
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDeliverAlreadyUploadedConfirmed(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.MarkUploaded(context.Background(), f.war))

	transport := new(MockTransport)
	transport.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	res, err := NewOrchestrator(f.dir, f.store, transport, &answer{yes: true}, settings, nil).
		Deliver(context.Background(), "peace", false)
	require.NoError(t, err)
	assert.True(t, res.Sent)
	transport.AssertExpectations(t)
}

func TestDeliverNotConfigured(t *testing.T) {
	f := newFixture(t)
	noSettings := func() (*config.EmailConfig, error) {
		return nil, fmt.Errorf("%w: /home/me/.bkmgr/config.toml", config.ErrConfigNotFound)
	}

	_, err := NewOrchestrator(f.dir, f.store, new(MockTransport), &answer{}, noSettings, nil).
		Deliver(context.Background(), "peace", false)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, f.uploaded(t, f.war))
}

func TestDeliverSendFailureKeepsFlag(t *testing.T) {
	f := newFixture(t)
	transport := new(MockTransport)
	smtpErr := errors.New("535 authentication failed")
	transport.On("Send", mock.Anything, mock.Anything).Return(smtpErr)

	_, err := NewOrchestrator(f.dir, f.store, transport, &answer{}, settings, nil).
		Deliver(context.Background(), "peace", false)
	assert.ErrorIs(t, err, smtpErr)
	assert.False(t, f.uploaded(t, f.war))
}

func TestDeliverNoMatch(t *testing.T) {
	f := newFixture(t)
	_, err := NewOrchestrator(f.dir, f.store, new(MockTransport), &answer{}, settings, nil).
		Deliver(context.Background(), "ulysses", false)
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestDeliverUncatalogedFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "anna-karenina.epub"), []byte("x"), 0o644))

	_, err := NewOrchestrator(f.dir, f.store, new(MockTransport), &answer{}, settings, nil).
		Deliver(context.Background(), "karenina", true)
	assert.ErrorIs(t, err, database.ErrNotFound)
}

func TestNeedsConversion(t *testing.T) {
	assert.False(t, NeedsConversion("a.pdf"))
	assert.False(t, NeedsConversion("a.MOBI"))
	assert.False(t, NeedsConversion("a.docx"))
	assert.False(t, NeedsConversion("a.doc"))
	assert.True(t, NeedsConversion("a.epub"))
	assert.True(t, NeedsConversion("README"))
}
