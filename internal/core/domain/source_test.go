package domain

import (
	"testing"
	"time"
)

func TestNewSourceID(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 678_000_000, time.UTC)

	tests := []struct {
		typ      SourceType
		expected string
	}{
		{SourceTypeK, "k20240102030405678"},
		{SourceTypeJ, "j20240102030405678"},
	}

	for _, tt := range tests {
		if got := NewSourceID(tt.typ, ts); got != tt.expected {
			t.Errorf("expected %s, got %s", tt.expected, got)
		}
	}
}

func TestCompactTimestamp_ConvertsToUTC(t *testing.T) {
	jst := time.FixedZone("JST", 9*60*60)
	ts := time.Date(2024, 1, 2, 9, 0, 0, 0, jst)

	if got := CompactTimestamp(ts); got != "20240102000000000" {
		t.Errorf("expected 20240102000000000, got %s", got)
	}
}

func TestSourceDescriptor_IDSuffix(t *testing.T) {
	var nilDesc *SourceDescriptor
	if nilDesc.IDSuffix() != "" {
		t.Error("expected empty suffix for nil descriptor")
	}

	d := &SourceDescriptor{ID: "k20240102030405678"}
	if got := d.IDSuffix(); got != "20240102030405678" {
		t.Errorf("expected 20240102030405678, got %s", got)
	}
}

func TestSourceDescriptor_IsParsed(t *testing.T) {
	now := time.Now()
	if (&SourceDescriptor{ID: "k1"}).IsParsed() {
		t.Error("expected unparsed descriptor")
	}
	if !(&SourceDescriptor{ID: "k1", ParsedAt: &now}).IsParsed() {
		t.Error("expected parsed descriptor")
	}
}

func TestSourceType_Valid(t *testing.T) {
	if !SourceTypeK.Valid() || !SourceTypeJ.Valid() {
		t.Error("expected k and j to be valid")
	}
	if SourceType("x").Valid() {
		t.Error("expected x to be invalid")
	}
}

func TestRegionCodeOf(t *testing.T) {
	tests := map[string]string{
		"13101": "13",
		"01":    "01",
		"1":     "1",
		"":      "",
	}
	for in, expected := range tests {
		if got := RegionCodeOf(in); got != expected {
			t.Errorf("RegionCodeOf(%q): expected %q, got %q", in, expected, got)
		}
	}
}

func TestAddressRecord_Secondary(t *testing.T) {
	if got := (&AddressRecord{Addr2: "1-1", Note: "n"}).Secondary(); got != "1-1" {
		t.Errorf("expected addr2, got %q", got)
	}
	if got := (&AddressRecord{Note: "n"}).Secondary(); got != "n" {
		t.Errorf("expected note, got %q", got)
	}
}
