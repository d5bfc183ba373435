package metadata

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Soumil-07/bkmgr/internal/models"
)

// ErrInvalidContainer is returned for EPUB files whose package cannot be located or parsed
var ErrInvalidContainer = errors.New("invalid epub container")

const containerPath = "META-INF/container.xml"

type container struct {
	Rootfiles []struct {
		FullPath string `xml:"full-path,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Titles       []string `xml:"http://purl.org/dc/elements/1.1/ title"`
		Languages    []string `xml:"http://purl.org/dc/elements/1.1/ language"`
		Creators     []string `xml:"http://purl.org/dc/elements/1.1/ creator"`
		Dates        []string `xml:"http://purl.org/dc/elements/1.1/ date"`
		Identifiers  []string `xml:"http://purl.org/dc/elements/1.1/ identifier"`
		Descriptions []string `xml:"http://purl.org/dc/elements/1.1/ description"`
		Subjects     []string `xml:"http://purl.org/dc/elements/1.1/ subject"`
	} `xml:"metadata"`
}

// epubRecord is what the package document yields before defaults are applied
type epubRecord struct {
	md      models.Metadata
	rawDate string
}

// readEPUB parses the package metadata of the EPUB at path
func readEPUB(path string) (*epubRecord, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContainer, err)
	}
	defer r.Close()

	opfPath, err := rootfilePath(&r.Reader)
	if err != nil {
		return nil, err
	}

	data, err := readZipFile(&r.Reader, opfPath)
	if err != nil {
		return nil, err
	}

	var pkg opfPackage
	if err := xml.Unmarshal(data, &pkg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidContainer, opfPath, err)
	}

	m := pkg.Metadata
	rec := &epubRecord{
		md: models.Metadata{
			Title:       first(m.Titles),
			Language:    strings.ToLower(first(m.Languages)),
			Identifier:  first(m.Identifiers),
			Description: first(m.Descriptions),
			Authors:     trimAll(m.Creators),
			Categories:  trimAll(m.Subjects),
		},
		rawDate: first(m.Dates),
	}
	if rec.md.Title == "" {
		rec.md.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return rec, nil
}

func rootfilePath(r *zip.Reader) (string, error) {
	data, err := readZipFile(r, containerPath)
	if err != nil {
		return "", err
	}

	var c container
	if err := xml.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("%w: parse %s: %v", ErrInvalidContainer, containerPath, err)
	}
	if len(c.Rootfiles) == 0 || c.Rootfiles[0].FullPath == "" {
		return "", fmt.Errorf("%w: no rootfile in %s", ErrInvalidContainer, containerPath)
	}
	return c.Rootfiles[0].FullPath, nil
}

func readZipFile(r *zip.Reader, name string) ([]byte, error) {
	f, err := r.Open(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidContainer, name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidContainer, name, err)
	}
	return data, nil
}

func first(values []string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func trimAll(values []string) []string {
	var out []string
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
