package metadata

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEditTitle(t *testing.T) {
	path := writeEPUB(t, t.TempDir(), "war.epub", fullMetadata)

	require.NoError(t, EditTitle(path, "War & Peace"))

	title, err := ReadTitle(path)
	require.NoError(t, err)
	assert.Equal(t, "War & Peace", title)

	// other entries survive the rewrite
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	var names []string
	for _, f := range r.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"mimetype", "META-INF/container.xml", "OEBPS/content.opf", "OEBPS/ch1.xhtml"}, names)

	data, err := readZipFile(&r.Reader, "OEBPS/content.opf")
	require.NoError(t, err)
	assert.Contains(t, string(data), "<dc:creator opf:role=\"aut\">Tolstoy, Leo</dc:creator>")
}

func TestEditTitleLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := writeEPUB(t, dir, "emma.epub", `<dc:title>Emma</dc:title>`)

	require.NoError(t, EditTitle(path, "Emma: A Novel"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "emma.epub", entries[0].Name())
}

func TestEditTitleRejectsOtherFormats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF"), 0o644))

	assert.ErrorIs(t, EditTitle(path, "x"), ErrUnknownFormat)
	_, err := ReadTitle(path)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestEditTitleWithoutTitleElement(t *testing.T) {
	path := writeEPUB(t, t.TempDir(), "anon.epub", `<dc:creator>Anonymous</dc:creator>`)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.ErrorIs(t, EditTitle(path, "New"), ErrInvalidContainer)

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
