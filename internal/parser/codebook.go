package parser

import "github.com/custodia-labs/zipsync/internal/core/domain"

// CodebookBuilder accumulates region and sub-region codes in one forward
// pass over rows sorted by code. A new entry is added whenever a code
// differs from the previous row's.
type CodebookBuilder struct {
	lastRegion    string
	lastSubRegion string
	regions       []domain.RegionCode
	subRegions    []domain.RegionCode
}

// Observe records the codes of one row.
func (b *CodebookBuilder) Observe(subRegionCode string, region, subRegion domain.RegionCode) {
	regionCode := domain.RegionCodeOf(subRegionCode)
	if regionCode != b.lastRegion {
		b.lastRegion = regionCode
		region.Code = regionCode
		b.regions = append(b.regions, region)
	}
	if subRegionCode != b.lastSubRegion {
		b.lastSubRegion = subRegionCode
		subRegion.Code = subRegionCode
		b.subRegions = append(b.subRegions, subRegion)
	}
}

// Regions returns the accumulated region codebook.
func (b *CodebookBuilder) Regions() []domain.RegionCode {
	return b.regions
}

// SubRegions returns the accumulated sub-region codebook.
func (b *CodebookBuilder) SubRegions() []domain.RegionCode {
	return b.subRegions
}
