package metadata

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// titleElement matches the first title element of a package document, with
// or without a namespace prefix.
var titleElement = regexp.MustCompile(`(?s)<((?:[\w-]+:)?title)(\s[^>]*)?>(.*?)</((?:[\w-]+:)?title)>`)

// ReadTitle returns the title stored in the EPUB at path
func ReadTitle(path string) (string, error) {
	if !strings.EqualFold(filepath.Ext(path), ".epub") {
		return "", ErrUnknownFormat
	}
	rec, err := readEPUB(path)
	if err != nil {
		return "", err
	}
	return rec.md.Title, nil
}

// EditTitle rewrites the title stored inside the EPUB at path. The archive is
// rebuilt next to the original and renamed over it, so a failure leaves the
// original untouched. The catalog is not updated.
func EditTitle(path, title string) error {
	if !strings.EqualFold(filepath.Ext(path), ".epub") {
		return ErrUnknownFormat
	}

	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidContainer, err)
	}
	defer r.Close()

	opfPath, err := rootfilePath(&r.Reader)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".bkmgr-edit-*.epub")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := rewriteArchive(&r.Reader, tmp, opfPath, title); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	r.Close()

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func rewriteArchive(r *zip.Reader, out io.Writer, opfPath, title string) error {
	w := zip.NewWriter(out)

	for _, f := range r.File {
		if f.Name != opfPath {
			if err := w.Copy(f); err != nil {
				return fmt.Errorf("failed to copy %s: %w", f.Name, err)
			}
			continue
		}

		data, err := readZipFile(r, f.Name)
		if err != nil {
			return err
		}
		updated, err := replaceTitle(data, title)
		if err != nil {
			return err
		}

		fw, err := w.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", f.Name, err)
		}
		if _, err := fw.Write(updated); err != nil {
			return fmt.Errorf("failed to write %s: %w", f.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	return nil
}

func replaceTitle(opf []byte, title string) ([]byte, error) {
	loc := titleElement.FindSubmatchIndex(opf)
	if loc == nil {
		return nil, fmt.Errorf("%w: no title element", ErrInvalidContainer)
	}

	var escaped bytes.Buffer
	if err := xml.EscapeText(&escaped, []byte(title)); err != nil {
		return nil, err
	}

	// loc[6]:loc[7] is the element text
	var buf bytes.Buffer
	buf.Write(opf[:loc[6]])
	buf.Write(escaped.Bytes())
	buf.Write(opf[loc[7]:])
	return buf.Bytes(), nil
}
