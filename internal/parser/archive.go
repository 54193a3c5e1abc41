package parser

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding/japanese"

	"github.com/custodia-labs/zipsync/internal/core/domain"
)

// Archive is the CSV entry of a registry archive, decoded to UTF-8.
type Archive struct {
	// Name is the entry path inside the zip
	Name string

	rc io.ReadCloser
	r  *csv.Reader
}

// OpenArchive opens the first CSV entry (case-insensitive extension) of a
// zip archive and returns a reader of its Shift_JIS decoded rows.
func OpenArchive(data []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}

	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(f.Name), ".csv") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", f.Name, err)
		}
		return &Archive{
			Name: f.Name,
			rc:   rc,
			r:    newCSVReader(japanese.ShiftJIS.NewDecoder().Reader(rc)),
		}, nil
	}
	return nil, domain.ErrNoCSVEntry
}

// Read returns the next row, or io.EOF.
func (a *Archive) Read() ([]string, error) {
	return a.r.Read()
}

// Close releases the entry stream.
func (a *Archive) Close() error {
	return a.rc.Close()
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false
	return cr
}
