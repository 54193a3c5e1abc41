package merge

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/custodia-labs/zipsync/internal/core/domain"
)

// UnionCodes returns primary followed by the secondary entries whose code
// is absent from primary.
func UnionCodes(primary, secondary []domain.RegionCode) []domain.RegionCode {
	seen := make(map[string]struct{}, len(primary))
	out := make([]domain.RegionCode, 0, len(primary)+len(secondary))
	for _, c := range primary {
		seen[c.Code] = struct{}{}
		out = append(out, c)
	}
	for _, c := range secondary {
		if _, ok := seen[c.Code]; ok {
			continue
		}
		seen[c.Code] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Codebooks resolves region and sub-region display names by code.
type Codebooks struct {
	regions    map[string]string
	subRegions map[string]string
}

// NewCodebooks indexes merged codebooks.
func NewCodebooks(regions, subRegions []domain.RegionCode) *Codebooks {
	c := &Codebooks{
		regions:    make(map[string]string, len(regions)),
		subRegions: make(map[string]string, len(subRegions)),
	}
	for _, r := range regions {
		c.regions[r.Code] = r.Name
	}
	for _, s := range subRegions {
		c.subRegions[s.Code] = s.Name
	}
	return c
}

// Names returns the region and sub-region names for a sub-region code.
func (c *Codebooks) Names(subRegionCode string) (region, subRegion string, err error) {
	subRegion, ok := c.subRegions[subRegionCode]
	if !ok {
		return "", "", fmt.Errorf("%w: sub-region %q", domain.ErrUnknownRegion, subRegionCode)
	}
	region, ok = c.regions[domain.RegionCodeOf(subRegionCode)]
	if !ok {
		return "", "", fmt.Errorf("%w: region %q", domain.ErrUnknownRegion, domain.RegionCodeOf(subRegionCode))
	}
	return region, subRegion, nil
}

// Fold combines the records of one postal code, in source order, into a
// single consensus entry.
func Fold(records []domain.AddressRecord, codes *Codebooks) (domain.MergedEntry, error) {
	if len(records) == 0 {
		return domain.MergedEntry{}, fmt.Errorf("%w: no records", domain.ErrMalformedRow)
	}
	first := records[0]
	if first.PostalCode == "" {
		return domain.MergedEntry{}, fmt.Errorf("%w: empty postal code", domain.ErrMalformedRow)
	}

	region, subRegion, err := codes.Names(first.SubRegionCode)
	if err != nil {
		return domain.MergedEntry{}, err
	}

	var addr1, addr2, name field
	for i := range records {
		addr1.observePrefix(records[i].Addr1)
		addr2.observe(records[i].Secondary())
		name.observe(records[i].Name)
	}

	return domain.MergedEntry{
		PostalCode: first.PostalCode,
		Region:     region,
		SubRegion:  subRegion,
		Addr1:      addr1.value,
		Addr2:      addr2.value,
		Name:       name.value,
	}, nil
}

// Merger merges the two parsed registries.
type Merger struct {
	logger *slog.Logger
}

// NewMerger creates a merger. A nil logger uses slog.Default().
func NewMerger(logger *slog.Logger) *Merger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{logger: logger}
}

// Merge unions both codebooks with K precedence and folds every postal
// code into one entry. Entries are sorted by postal code.
func (m *Merger) Merge(k, j *domain.ParsedSource) *domain.MergedDataset {
	return m.merge(k, j, "")
}

// MergePrefix is Merge restricted to postal codes starting with prefix.
func (m *Merger) MergePrefix(k, j *domain.ParsedSource, prefix string) *domain.MergedDataset {
	return m.merge(k, j, prefix)
}

func (m *Merger) merge(k, j *domain.ParsedSource, prefix string) *domain.MergedDataset {
	ds := &domain.MergedDataset{
		Regions:    UnionCodes(k.Regions, j.Regions),
		SubRegions: UnionCodes(k.SubRegions, j.SubRegions),
	}
	codes := NewCodebooks(ds.Regions, ds.SubRegions)

	groups := make(map[string][]domain.AddressRecord)
	var order []string
	for _, src := range []*domain.ParsedSource{k, j} {
		for _, rec := range src.Records {
			if !strings.HasPrefix(rec.PostalCode, prefix) {
				continue
			}
			if _, ok := groups[rec.PostalCode]; !ok {
				order = append(order, rec.PostalCode)
			}
			groups[rec.PostalCode] = append(groups[rec.PostalCode], rec)
		}
	}
	sort.Strings(order)

	ds.Entries = make([]domain.MergedEntry, 0, len(order))
	for _, code := range order {
		entry, err := Fold(groups[code], codes)
		if err != nil {
			m.logger.Warn("skipping postal code", "zip", code, "error", err)
			continue
		}
		ds.Entries = append(ds.Entries, entry)
	}
	return ds
}

// ShardKey splits a postal code into its 3-digit group and remainder.
func ShardKey(postalCode string) (group, rest string) {
	if len(postalCode) <= 3 {
		return postalCode, ""
	}
	return postalCode[:3], postalCode[3:]
}

// GroupShards partitions entries by 3-digit group. Each group maps the
// remaining digits to the entry with its postal code cleared.
func GroupShards(entries []domain.MergedEntry) map[string]map[string]domain.MergedEntry {
	shards := make(map[string]map[string]domain.MergedEntry)
	for _, e := range entries {
		group, rest := ShardKey(e.PostalCode)
		if shards[group] == nil {
			shards[group] = make(map[string]domain.MergedEntry)
		}
		e.PostalCode = ""
		shards[group][rest] = e
	}
	return shards
}
