package export

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/custodia-labs/zipsync/internal/core/domain"
)

// Published artifact names
const (
	NameSimple     = "simple"
	NameRegions    = "regions"
	NameSubRegions = "subregions"
	NameUpdate     = "update.txt"
)

// EntryColumns is the column order of the simple dataset CSV
var EntryColumns = []string{"postalCode", "region", "subRegion", "addr1", "addr2", "name"}

// Artifact is one encoded output file.
type Artifact struct {
	Path string
	Data []byte
}

// EntryRows flattens entries into CSV rows.
func EntryRows(entries []domain.MergedEntry) [][]string {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.PostalCode, e.Region, e.SubRegion, e.Addr1, e.Addr2, e.Name}
	}
	return rows
}

// EntriesFromRows is the inverse of EntryRows.
func EntriesFromRows(rows [][]string) ([]domain.MergedEntry, error) {
	entries := make([]domain.MergedEntry, len(rows))
	for i, r := range rows {
		if len(r) != len(EntryColumns) {
			return nil, fmt.Errorf("%w: row %d has %d columns", domain.ErrMalformedRow, i+1, len(r))
		}
		entries[i] = domain.MergedEntry{PostalCode: r[0], Region: r[1], SubRegion: r[2], Addr1: r[3], Addr2: r[4], Name: r[5]}
	}
	return entries, nil
}

// CodeRows flattens a codebook into CSV rows.
func CodeRows(codes []domain.RegionCode) [][]string {
	rows := make([][]string, len(codes))
	for i, c := range codes {
		rows[i] = []string{c.Code, c.Name, c.Kana}
	}
	return rows
}

// JSONAndCSV encodes v as name.json and rows as name_utf8.csv and
// name_sjis.csv.
func JSONAndCSV(name string, v any, rows [][]string) ([]Artifact, error) {
	js, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s.json: %w", name, err)
	}
	utf8 := EncodeCSV(rows)
	sjis, err := ToShiftJIS(utf8)
	if err != nil {
		return nil, fmt.Errorf("encode %s_sjis.csv: %w", name, err)
	}
	return []Artifact{
		{Path: name + ".json", Data: js},
		{Path: name + "_utf8.csv", Data: utf8},
		{Path: name + "_sjis.csv", Data: sjis},
	}, nil
}

// EntryZip builds a zip holding {postalCode}.json for every entry. Each
// document is the entry without its postal code.
func EntryZip(entries []domain.MergedEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		name := e.PostalCode + ".json"
		e.PostalCode = ""
		data, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ReadEntryZip is the inverse of EntryZip.
func ReadEntryZip(data []byte) ([]domain.MergedEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	entries := make([]domain.MergedEntry, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		var e domain.MergedEntry
		err = json.NewDecoder(rc).Decode(&e)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.Name, err)
		}
		e.PostalCode = f.Name[:len(f.Name)-len(".json")]
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PostalCode < entries[j].PostalCode })
	return entries, nil
}

// ShardPath returns the public path of a 3-digit shard group.
func ShardPath(group string) string {
	return "simple/" + group + ".json"
}

// Shard encodes one shard group: an object keyed by the remaining digits.
func Shard(group map[string]domain.MergedEntry) ([]byte, error) {
	return json.Marshal(group)
}

// HistoryPath returns the date-stamped copy path of an artifact.
func HistoryPath(stamp, name string) string {
	return "history/" + stamp + "_" + name
}
