package domain

import (
	"strings"
	"time"
)

// SourceType identifies one of the two upstream postal-code registries
type SourceType string

const (
	// SourceTypeK is the comprehensive address registry
	SourceTypeK SourceType = "k"
	// SourceTypeJ is the business (large-volume recipient) registry
	SourceTypeJ SourceType = "j"
)

// SourceTypes lists registry types in merge precedence order.
var SourceTypes = []SourceType{SourceTypeK, SourceTypeJ}

// Valid reports whether t is a known registry type.
func (t SourceType) Valid() bool {
	return t == SourceTypeK || t == SourceTypeJ
}

// SourceDescriptor describes one saved archive of a registry
type SourceDescriptor struct {
	// ID is the type letter followed by a compact UTC timestamp
	ID string `json:"id"`

	// PageHash is the sha256 hex digest of the announcement page
	PageHash string `json:"pageHash"`

	// ArchiveHash is the sha256 hex digest of the archive bytes
	ArchiveHash string `json:"archiveHash"`

	SavedAt *time.Time `json:"savedAt"`

	// ParsedAt is nil until all derived artifacts for ID are persisted
	ParsedAt *time.Time `json:"parsedAt"`
}

// NewSourceID mints a source id: type letter + yyyyMMddHHmmssSSS (UTC).
func NewSourceID(t SourceType, now time.Time) string {
	return string(t) + CompactTimestamp(now)
}

// CompactTimestamp formats ts as digits only, millisecond precision, UTC.
func CompactTimestamp(ts time.Time) string {
	return strings.Replace(ts.UTC().Format("20060102150405.000"), ".", "", 1)
}

// IDSuffix returns the id without its type letter.
func (d *SourceDescriptor) IDSuffix() string {
	if d == nil || d.ID == "" {
		return ""
	}
	return d.ID[1:]
}

// IsParsed reports whether the derived artifacts for this id exist.
func (d *SourceDescriptor) IsParsed() bool {
	return d != nil && d.ParsedAt != nil
}

// SourceRef carries a source id through task payloads
type SourceRef struct {
	ID       string     `json:"id" validate:"required,min=2"`
	ParsedAt *time.Time `json:"parsedAt,omitempty"`
}

// Ref returns the payload reference for this descriptor.
func (d *SourceDescriptor) Ref() SourceRef {
	if d == nil {
		return SourceRef{}
	}
	return SourceRef{ID: d.ID, ParsedAt: d.ParsedAt}
}

// FetchResult is the outcome of downloading one resource
type FetchResult struct {
	URL  string
	Body []byte
	Hash string
}
