package catalog

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Soumil-07/bkmgr/internal/models"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0.0B"},
		{1023, "1023.0B"},
		{1536, "1.5KiB"},
		{5 * 1024 * 1024, "5.0MiB"},
		{1099511627776, "1.0TiB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatSize(tt.in))
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "Emma", Truncate("Emma", 10))
	assert.Equal(t, "Emma", Truncate("Emma", 4))
	assert.Equal(t, "War a...", Truncate("War and Peace", 8))
	assert.Equal(t, "Wa", Truncate("War and Peace", 2))
	assert.Equal(t, "Война...", Truncate("Война и мир", 8))
	assert.Equal(t, "anything", Truncate("anything", 0))
}

func TestRender(t *testing.T) {
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	rows := []*models.CatalogEntry{
		{
			Metadata: models.Metadata{Title: "War and Peace", Authors: []string{"Leo Tolstoy"}, Language: "en"},
			Uploaded: true,
		},
		{
			Metadata: models.Metadata{Title: "A Very Long Title That Will Not Fit", Authors: []string{"Someone"}, Language: "fr"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, Render(&buf, rows, 1536, Widths{Title: 20, Author: 12}))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[0], " 1.5KiB"))
	assert.Empty(t, lines[1])
	assert.Equal(t, "War and Peace ⬆️     Leo Tolstoy  en", lines[2])
	assert.Equal(t, "A Very Long Tit...   Someone      fr", lines[3])
}
