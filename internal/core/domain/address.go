package domain

// RegionCode is a codebook entry for a region or sub-region
type RegionCode struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Kana string `json:"kana,omitempty"`
}

// AddressRecord is one normalized registry row
type AddressRecord struct {
	SubRegionCode string `json:"subRegion"`
	PostalCode    string `json:"zip"`
	Addr1         string `json:"addr1,omitempty"`
	Addr2         string `json:"addr2,omitempty"`
	Note          string `json:"note,omitempty"`

	// Name is the business name, J registry only
	Name string `json:"name,omitempty"`

	Addr1Kana string `json:"addr1Kana,omitempty"`
	NoteKana  string `json:"noteKana,omitempty"`
	NameKana  string `json:"nameKana,omitempty"`
}

// RegionCodeOf returns the broad region code of a sub-region code.
func RegionCodeOf(subRegionCode string) string {
	if len(subRegionCode) < 2 {
		return subRegionCode
	}
	return subRegionCode[:2]
}

// Secondary returns addr2 when present, otherwise the note.
func (r *AddressRecord) Secondary() string {
	if r.Addr2 != "" {
		return r.Addr2
	}
	return r.Note
}

// ParsedSource is the derived data of one registry archive
type ParsedSource struct {
	Regions    []RegionCode    `json:"regions"`
	SubRegions []RegionCode    `json:"subRegions"`
	Records    []AddressRecord `json:"records"`
}

// Artifact names of a parsed source
const (
	ArtifactRegions    = "regions"
	ArtifactSubRegions = "subregions"
	ArtifactRecords    = "records"
)

// ParsedArtifacts lists the three derived blobs of a parsed source.
var ParsedArtifacts = []string{ArtifactRegions, ArtifactSubRegions, ArtifactRecords}

// MergedEntry is the consensus view of one postal code
type MergedEntry struct {
	PostalCode string `json:"postalCode,omitempty"`
	Region     string `json:"region"`
	SubRegion  string `json:"subRegion"`
	Addr1      string `json:"addr1"`
	Addr2      string `json:"addr2"`
	Name       string `json:"name"`
}

// MergedDataset is the result of merging both registries
type MergedDataset struct {
	Regions    []RegionCode
	SubRegions []RegionCode
	Entries    []MergedEntry
}
