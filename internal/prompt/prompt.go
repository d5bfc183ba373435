// Package prompt reads answers from the user on the terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"

	"github.com/Soumil-07/bkmgr/internal/metadata"
	"github.com/Soumil-07/bkmgr/internal/models"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

var (
	// ErrInvalidLanguage is returned when a language code is not two letters long
	ErrInvalidLanguage = errors.New("invalid language code provided")
	// ErrInvalidDate is returned when a publication date cannot be parsed
	ErrInvalidDate = errors.New("invalid publication date")
)

// Prompter asks questions on w and reads the answers from r
type Prompter struct {
	in  *bufio.Reader
	out io.Writer
}

// New creates a Prompter over r and w
func New(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{in: bufio.NewReader(r), out: w}
}

// Stdio creates a Prompter over the process's standard streams
func Stdio() *Prompter {
	return New(os.Stdin, os.Stdout)
}

// IsInteractive reports whether standard input is a terminal
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Line prints question and reads a single trimmed line. A final line without
// a newline is accepted.
func (p *Prompter) Line(question string) (string, error) {
	if _, err := fmt.Fprint(p.out, question); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// Confirm asks a yes/no question. Only "y" and "yes" count as yes; an empty
// answer is no.
func (p *Prompter) Confirm(question string) (bool, error) {
	answer, err := p.Line(question + " (y/N) ")
	if err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// Password reads a secret without echo when stdin is a terminal, falling
// back to a plain line otherwise.
func (p *Prompter) Password(question string) (string, error) {
	if !IsInteractive() {
		return p.Line(question)
	}
	if _, err := fmt.Fprint(p.out, question); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// MetadataFallback collects metadata by hand for books whose format carries none
type MetadataFallback struct {
	prompter *Prompter
}

// NewMetadataFallback creates a MetadataFallback asking through p
func NewMetadataFallback(p *Prompter) *MetadataFallback {
	return &MetadataFallback{prompter: p}
}

// Provide asks for title, author, language and publication date of the
// book at path.
func (m *MetadataFallback) Provide(ctx context.Context, path string) (*models.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := m.prompter
	fmt.Fprintf(p.out, "Could not find metadata for %s, please enter it manually.\n", path)

	title, err := p.Line("Enter the title of the book: ")
	if err != nil {
		return nil, err
	}
	author, err := p.Line("Enter the full name of the author: ")
	if err != nil {
		return nil, err
	}
	lang, err := p.Line("Enter the two digit language code: ")
	if err != nil {
		return nil, err
	}
	if utf8.RuneCountInString(lang) != 2 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLanguage, lang)
	}
	date, err := p.Line("Enter the date of publication: ")
	if err != nil {
		return nil, err
	}
	published, err := metadata.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDate, err)
	}

	md := &models.Metadata{
		Title:       title,
		Language:    strings.ToLower(lang),
		PublishedAt: published,
	}
	if author != "" {
		md.Authors = []string{author}
	}
	return md, nil
}
