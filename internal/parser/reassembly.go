package parser

import (
	"strings"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/normalisers"
)

// State is the position of the reassembly machine relative to a note.
type State int

const (
	// OutsideNote means the next row starts a new record
	OutsideNote State = iota
	// InsideNote means rows are continuing a wrapped note
	InsideNote
)

func (s State) String() string {
	if s == InsideNote {
		return "INSIDE_NOTE"
	}
	return "OUTSIDE_NOTE"
}

// Brackets used by the comprehensive registry: fullwidth around text,
// halfwidth around the phonetic reading.
const (
	noteOpen     = "（"
	noteClose    = "）"
	kanaOpen     = "("
	kanaClose    = ")"
	caseNoteOpen = "場合（"
)

// Row is the part of a comprehensive registry row the machine reads.
type Row struct {
	SubRegionCode string
	PostalCode    string
	Text          string
	Kana          string
}

// Transition advances the machine by one row. pending carries the record
// being assembled while InsideNote and is updated in place. The returned
// record is non-nil when a record is complete.
func Transition(state State, pending *domain.AddressRecord, row Row, rules *normalisers.Registry) (State, *domain.AddressRecord) {
	if state == InsideNote {
		if strings.HasSuffix(row.Text, noteClose) {
			pending.Note += strings.TrimSuffix(row.Text, noteClose)
			if pending.NoteKana != "" {
				pending.NoteKana += strings.TrimSuffix(row.Kana, kanaClose)
			}
			done := *pending
			return OutsideNote, &done
		}
		pending.Note += row.Text
		if pending.NoteKana != "" {
			pending.NoteKana += row.Kana
		}
		return InsideNote, nil
	}

	if strings.Contains(row.Text, noteOpen) && !strings.Contains(row.Text, caseNoteOpen) {
		*pending = domain.AddressRecord{
			SubRegionCode: row.SubRegionCode,
			PostalCode:    row.PostalCode,
		}
		pending.Addr1, pending.Note, _ = strings.Cut(row.Text, noteOpen)
		if k, kn, ok := strings.Cut(row.Kana, kanaOpen); ok {
			pending.Addr1Kana, pending.NoteKana = k, kn
		} else {
			pending.Addr1Kana = row.Kana
		}

		if strings.HasSuffix(row.Text, noteClose) {
			pending.Note = strings.TrimSuffix(pending.Note, noteClose)
			pending.NoteKana = strings.TrimSuffix(pending.NoteKana, kanaClose)
			done := *pending
			return OutsideNote, &done
		}
		return InsideNote, nil
	}

	rec := &domain.AddressRecord{
		SubRegionCode: row.SubRegionCode,
		PostalCode:    row.PostalCode,
		Addr1:         row.Text,
		Addr1Kana:     row.Kana,
	}
	if rules != nil {
		if addr1, note := rules.Classify(rec.Addr1); note != "" {
			rec.Addr1, rec.Note = addr1, note
			rec.Addr1Kana, rec.NoteKana = "", rec.Addr1Kana
		}
	}
	return OutsideNote, rec
}

// Reassembler feeds rows through Transition and keeps the pending record.
type Reassembler struct {
	state   State
	pending domain.AddressRecord
	rules   *normalisers.Registry
}

// NewReassembler creates a machine in the OutsideNote state.
func NewReassembler(rules *normalisers.Registry) *Reassembler {
	return &Reassembler{rules: rules}
}

// State returns the current state.
func (r *Reassembler) State() State {
	return r.state
}

// Feed consumes one row and returns a completed record, if any.
func (r *Reassembler) Feed(row Row) *domain.AddressRecord {
	var rec *domain.AddressRecord
	r.state, rec = Transition(r.state, &r.pending, row, r.rules)
	return rec
}

// Flush returns a record whose note never closed, and resets the machine.
func (r *Reassembler) Flush() *domain.AddressRecord {
	if r.state != InsideNote {
		return nil
	}
	r.state = OutsideNote
	rec := r.pending
	r.pending = domain.AddressRecord{}
	return &rec
}
