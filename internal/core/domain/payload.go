package domain

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var payloadValidator = validator.New()

// ParsePayload is the payload of a parse_sources task
type ParsePayload struct {
	K SourceRef `json:"k" validate:"required"`
	J SourceRef `json:"j" validate:"required"`
}

// Validate checks that both source ids are present.
func (p ParsePayload) Validate() error {
	if err := payloadValidator.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Ref returns the reference for the given registry type.
func (p ParsePayload) Ref(t SourceType) SourceRef {
	if t == SourceTypeJ {
		return p.J
	}
	return p.K
}

// ShardPayload is the payload of a publish_shard task
type ShardPayload struct {
	K      SourceRef `json:"k" validate:"required"`
	J      SourceRef `json:"j" validate:"required"`
	Prefix string    `json:"prefix" validate:"required,len=1,oneof=0 1 2 3 4 5 6 7 8 9"`
}

// Validate checks both source ids and the prefix digit.
func (p ShardPayload) Validate() error {
	if err := payloadValidator.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// ShardWork is one independent publish unit produced by a merge
type ShardWork struct {
	Prefix string
	K      SourceRef
	J      SourceRef
}

// Payload converts the work item into a task payload.
func (w ShardWork) Payload() ShardPayload {
	return ShardPayload{K: SourceRef{ID: w.K.ID}, J: SourceRef{ID: w.J.ID}, Prefix: w.Prefix}
}
