package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Document store layout
const (
	CollectionSources  = "sources"
	CollectionGroups   = "groups"
	CollectionAccounts = "accounts"
	CollectionMail     = "mail"

	// RunStateID is the id of the live run state in CollectionSources
	RunStateID = "current"
	// AdminGroupID is the group whose members receive status reports
	AdminGroupID = "admins"
)

// Milestone field names on the run state document
const (
	FieldMergedAt   = "mergedAt"
	FieldReportedAt = "reportedAt"
	FieldSavedAt    = "savedAt"
	FieldParsedAt   = "parsedAt"
)

// ShardCount is the number of postal-code leading-digit shards.
const ShardCount = 10

// ShardPrefixes returns the shard prefixes "0" through "9".
func ShardPrefixes() []string {
	prefixes := make([]string, ShardCount)
	for i := range prefixes {
		prefixes[i] = strconv.Itoa(i)
	}
	return prefixes
}

// ShardMilestoneField returns the run state field for a shard prefix.
func ShardMilestoneField(prefix string) string {
	return fmt.Sprintf("generatedSample%sAt", prefix)
}

// SourceField returns the dotted path of a descriptor field, e.g. "k.parsedAt".
func SourceField(t SourceType, field string) string {
	return string(t) + "." + field
}

// RunState is the live pipeline state document
type RunState struct {
	K *SourceDescriptor
	J *SourceDescriptor

	MergedAt *time.Time

	// Generated holds the milestone of each shard prefix, indexed by digit
	Generated [ShardCount]*time.Time

	ReportedAt *time.Time
}

// Source returns the descriptor for the given registry type.
func (s *RunState) Source(t SourceType) *SourceDescriptor {
	if s == nil {
		return nil
	}
	if t == SourceTypeJ {
		return s.J
	}
	return s.K
}

// SetSource replaces the descriptor for the given registry type.
func (s *RunState) SetSource(t SourceType, d *SourceDescriptor) {
	if t == SourceTypeJ {
		s.J = d
		return
	}
	s.K = d
}

// ShardGenerated reports whether the shard milestone for prefix is set.
func (s *RunState) ShardGenerated(prefix string) bool {
	i, err := strconv.Atoi(prefix)
	if s == nil || err != nil || i < 0 || i >= ShardCount {
		return false
	}
	return s.Generated[i] != nil
}

// SameSources reports whether the run refers to the given source ids.
func (s *RunState) SameSources(k, j string) bool {
	return s != nil && s.K != nil && s.J != nil && s.K.ID == k && s.J.ID == j
}

// HistoryID returns the history document id of this run: "h" followed by
// the larger of the two id suffixes. Empty when either source is missing.
func (s *RunState) HistoryID() string {
	if s == nil || s.K == nil || s.J == nil {
		return ""
	}
	k, j := s.K.IDSuffix(), s.J.IDSuffix()
	if compareNumeric(j, k) > 0 {
		return "h" + j
	}
	return "h" + k
}

// compareNumeric compares two digit strings by numeric value.
func compareNumeric(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// MarshalJSON flattens shard milestones into generatedSample{p}At fields.
func (s RunState) MarshalJSON() ([]byte, error) {
	doc := map[string]any{}
	if s.K != nil {
		doc[string(SourceTypeK)] = s.K
	}
	if s.J != nil {
		doc[string(SourceTypeJ)] = s.J
	}
	if s.MergedAt != nil {
		doc[FieldMergedAt] = s.MergedAt
	}
	for i, ts := range s.Generated {
		if ts != nil {
			doc[ShardMilestoneField(strconv.Itoa(i))] = ts
		}
	}
	if s.ReportedAt != nil {
		doc[FieldReportedAt] = s.ReportedAt
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads the flattened document form.
func (s *RunState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = RunState{}
	for _, t := range SourceTypes {
		v, ok := raw[string(t)]
		if !ok || string(v) == "null" {
			continue
		}
		d := &SourceDescriptor{}
		if err := json.Unmarshal(v, d); err != nil {
			return fmt.Errorf("decode %s: %w", t, err)
		}
		s.SetSource(t, d)
	}
	var err error
	if s.MergedAt, err = decodeTime(raw, FieldMergedAt); err != nil {
		return err
	}
	for i := range s.Generated {
		if s.Generated[i], err = decodeTime(raw, ShardMilestoneField(strconv.Itoa(i))); err != nil {
			return err
		}
	}
	if s.ReportedAt, err = decodeTime(raw, FieldReportedAt); err != nil {
		return err
	}
	return nil
}

func decodeTime(raw map[string]json.RawMessage, field string) (*time.Time, error) {
	v, ok := raw[field]
	if !ok || string(v) == "null" {
		return nil, nil
	}
	var ts time.Time
	if err := json.Unmarshal(v, &ts); err != nil {
		return nil, fmt.Errorf("decode %s: %w", field, err)
	}
	return &ts, nil
}
