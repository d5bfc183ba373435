package sync

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Soumil-07/bkmgr/internal/database"
	"github.com/Soumil-07/bkmgr/internal/metadata"
	"github.com/Soumil-07/bkmgr/internal/models"
)

// MockResolver is a mock implementation of Resolver
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, path string) (*models.Metadata, error) {
	args := m.Called(ctx, path)
	if md := args.Get(0); md != nil {
		return md.(*models.Metadata), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockFallback is a mock implementation of Fallback
type MockFallback struct {
	mock.Mock
}

func (m *MockFallback) Provide(ctx context.Context, path string) (*models.Metadata, error) {
	args := m.Called(ctx, path)
	if md := args.Get(0); md != nil {
		return md.(*models.Metadata), args.Error(1)
	}
	return nil, args.Error(1)
}

func openStore(t *testing.T) *database.Database {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "books.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
	abs, err := filepath.Abs(path)
	require.NoError(t, err)
	return abs
}

func record(title, author string) *models.Metadata {
	return &models.Metadata{
		Title:       title,
		Authors:     []string{author},
		Language:    "en",
		PublishedAt: time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()

	war := touch(t, dir, "war.epub")
	emma := touch(t, dir, "emma.pdf")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything, war).Return(record("War and Peace", "Tolstoy, Leo"), nil).Once()
	resolver.On("Resolve", mock.Anything, emma).Return(nil, metadata.ErrUnknownFormat).Once()

	fallback := new(MockFallback)
	fallback.On("Provide", mock.Anything, emma).Return(record("Emma", "Jane Austen"), nil).Once()

	svc := NewService(store, resolver, fallback, nil)
	summary, err := svc.Sync(ctx, dir)
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, 2, summary.Scanned)
	assert.Equal(t, 2, summary.Added)
	assert.Equal(t, 0, summary.Skipped)

	entry, err := store.Fetch(ctx, war)
	require.NoError(t, err)
	assert.Equal(t, "Leo Tolstoy", entry.Metadata.Author())
	assert.False(t, entry.Uploaded)

	entry, err = store.Fetch(ctx, emma)
	require.NoError(t, err)
	assert.Equal(t, "Emma", entry.Metadata.Title)

	resolver.AssertExpectations(t)
	fallback.AssertExpectations(t)
}

func TestSyncIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()
	war := touch(t, dir, "war.epub")

	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything, war).Return(record("War and Peace", "Leo Tolstoy"), nil).Once()

	svc := NewService(store, resolver, new(MockFallback), nil)
	_, err := svc.Sync(ctx, dir)
	require.NoError(t, err)

	summary, err := svc.Sync(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Added)
	assert.Equal(t, 1, summary.Skipped)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// the second run never re-resolved the file
	resolver.AssertNumberOfCalls(t, "Resolve", 1)
}

func TestSyncFallbackErrorAbortsRun(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	dir := t.TempDir()
	a := touch(t, dir, "a.epub")
	b := touch(t, dir, "b.pdf")
	touch(t, dir, "c.epub")

	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything, a).Return(record("A", "Anon"), nil)
	resolver.On("Resolve", mock.Anything, b).Return(nil, metadata.ErrUnknownFormat)

	invalid := errors.New("invalid language code provided")
	fallback := new(MockFallback)
	fallback.On("Provide", mock.Anything, b).Return(nil, invalid)

	summary, err := NewService(store, resolver, fallback, nil).Sync(ctx, dir)
	assert.ErrorIs(t, err, invalid)
	assert.Equal(t, 1, summary.Added)

	// files before the failure stay cataloged
	exists, err := store.Exists(ctx, a)
	require.NoError(t, err)
	assert.True(t, exists)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSyncResolverError(t *testing.T) {
	dir := t.TempDir()
	broken := touch(t, dir, "broken.epub")

	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything, broken).Return(nil, metadata.ErrInvalidContainer)

	_, err := NewService(openStore(t), resolver, new(MockFallback), nil).Sync(context.Background(), dir)
	assert.ErrorIs(t, err, metadata.ErrInvalidContainer)
}

func TestSyncMissingDirectory(t *testing.T) {
	svc := NewService(openStore(t), new(MockResolver), nil, nil)
	_, err := svc.Sync(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestSyncCancelled(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "war.epub")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService(openStore(t), new(MockResolver), nil, nil).Sync(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdd(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	library := filepath.Join(t.TempDir(), "Books")
	src := touch(t, t.TempDir(), "emma.epub")

	resolver := new(MockResolver)
	resolver.On("Resolve", mock.Anything, mock.AnythingOfType("string")).Return(record("Emma", "Austen, Jane"), nil).Once()

	svc := NewService(store, resolver, nil, nil)
	dst, err := svc.Add(ctx, library, src)
	require.NoError(t, err)
	assert.Equal(t, "emma.epub", filepath.Base(dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "emma.epub", string(data))

	entry, err := store.Fetch(ctx, dst)
	require.NoError(t, err)
	assert.Equal(t, "Jane Austen", entry.Metadata.Author())

	// the source is left in place
	_, err = os.Stat(src)
	assert.NoError(t, err)

	_, err = svc.Add(ctx, library, src)
	assert.ErrorIs(t, err, ErrAlreadyInLibrary)
}

func TestAddMissingSource(t *testing.T) {
	svc := NewService(openStore(t), new(MockResolver), nil, nil)

	_, err := svc.Add(context.Background(), t.TempDir(), filepath.Join(t.TempDir(), "nope.epub"))
	assert.ErrorIs(t, err, ErrSourceNotFound)

	_, err = svc.Add(context.Background(), t.TempDir(), t.TempDir())
	assert.ErrorIs(t, err, ErrSourceNotFound)
}
