package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeAuthor(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"last first", "Austen, Jane", "Jane Austen"},
		{"no comma", "Leo Tolstoy", "Leo Tolstoy"},
		{"three segments", "Doe, Jane, III", "III Jane Doe"},
		{"extra spaces", "  Tolstoy ,  Leo ", "Leo Tolstoy"},
		{"trailing comma", "Plato,", "Plato"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeAuthor(tt.in))
		})
	}
}

func TestNormalizeAuthors(t *testing.T) {
	assert.Nil(t, NormalizeAuthors(nil))
	assert.Equal(t,
		[]string{"Jane Austen", "Leo Tolstoy"},
		NormalizeAuthors([]string{"Austen, Jane", " ", "Leo Tolstoy"}),
	)
}
