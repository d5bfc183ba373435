package catalog

import (
	"fmt"
	"io"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/Soumil-07/bkmgr/internal/models"
)

const ellipsis = "..."

// uploadedMarker follows the title of books already sent to the device
const uploadedMarker = " ⬆️"

var sizeUnits = []string{"", "Ki", "Mi", "Gi", "Ti", "Pi", "Ei", "Zi"}

// FormatSize renders n bytes with binary prefixes and one decimal, e.g. "1.5KiB"
func FormatSize(n int64) string {
	num := float64(n)
	for _, unit := range sizeUnits {
		if math.Abs(num) < 1024 {
			return fmt.Sprintf("%3.1f%sB", num, unit)
		}
		num /= 1024
	}
	return fmt.Sprintf("%.1fYiB", num)
}

// Truncate shortens s to at most n runes, ending it with "..." when cut
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= len(ellipsis) {
		return string([]rune(s)[:n])
	}
	return string([]rune(s)[:n-len(ellipsis)]) + ellipsis
}

// Widths are the display columns of the title and author fields
type Widths struct {
	Title  int
	Author int
}

var (
	headerColor   = color.New(color.FgGreen)
	authorColor   = color.New(color.FgBlue)
	languageColor = color.New(color.FgYellow)
)

// Render writes the listing header with the library size, then one row per entry
func Render(w io.Writer, rows []*models.CatalogEntry, size int64, widths Widths) error {
	header := pad("Listing all books in the local database...", widths.Title)
	if _, err := headerColor.Fprintf(w, "%s %s\n\n", header, FormatSize(size)); err != nil {
		return err
	}

	for _, e := range rows {
		marker := "  "
		if e.Uploaded {
			marker = uploadedMarker
		}
		title := pad(Truncate(e.Metadata.Title, widths.Title-utf8.RuneCountInString(marker))+marker, widths.Title)
		author := pad(Truncate(e.Metadata.Author(), widths.Author), widths.Author)

		if _, err := fmt.Fprintf(w, "%s %s %s\n",
			title,
			authorColor.Sprint(author),
			languageColor.Sprint(e.Metadata.Language),
		); err != nil {
			return err
		}
	}
	return nil
}

// pad right-pads s with spaces to n runes
func pad(s string, n int) string {
	if c := utf8.RuneCountInString(s); c < n {
		return s + strings.Repeat(" ", n-c)
	}
	return s
}
