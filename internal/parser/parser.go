package parser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/normalisers"
)

// RowReader yields CSV rows until io.EOF.
type RowReader interface {
	Read() ([]string, error)
}

// Column layout of the comprehensive registry (K).
const (
	kColSubRegion     = 0
	kColPostalCode    = 2
	kColRegionKana    = 3
	kColSubRegionKana = 4
	kColAddrKana      = 5
	kColRegion        = 6
	kColSubRegionName = 7
	kColAddr          = 8
	kColumns          = 9
)

// Column layout of the business registry (J).
const (
	jColSubRegion     = 0
	jColNameKana      = 1
	jColName          = 2
	jColRegion        = 3
	jColSubRegionName = 4
	jColAddr1         = 5
	jColAddr2         = 6
	jColPostalCode    = 7
	jColumns          = 8
)

// Parser turns registry archives into codebooks and address records.
type Parser struct {
	rules  *normalisers.Registry
	logger *slog.Logger
}

// Config holds parser dependencies.
type Config struct {
	// Rules reclassify addr1 text as notes; defaults to normalisers.DefaultRegistry
	Rules  *normalisers.Registry
	Logger *slog.Logger
}

// New creates a parser.
func New(cfg Config) *Parser {
	if cfg.Rules == nil {
		cfg.Rules = normalisers.DefaultRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Logger.Debug("note rules loaded", "rules", cfg.Rules.List())
	return &Parser{rules: cfg.Rules, logger: cfg.Logger}
}

// ParseArchive opens a registry archive and parses it with the layout of t.
func (p *Parser) ParseArchive(ctx context.Context, t domain.SourceType, data []byte) (*domain.ParsedSource, error) {
	archive, err := OpenArchive(data)
	if err != nil {
		return nil, err
	}
	defer archive.Close()

	p.logger.Info("extracted archive entry", "type", t, "entry", archive.Name)

	switch t {
	case domain.SourceTypeK:
		return p.ParseK(ctx, archive)
	case domain.SourceTypeJ:
		return p.ParseJ(ctx, archive)
	}
	return nil, fmt.Errorf("%w: source type %q", domain.ErrInvalidInput, t)
}

// ParseK parses comprehensive registry rows, reassembling wrapped notes.
func (p *Parser) ParseK(ctx context.Context, rows RowReader) (*domain.ParsedSource, error) {
	var codes CodebookBuilder
	machine := NewReassembler(p.rules)
	records := make([]domain.AddressRecord, 0)

	err := eachRow(ctx, rows, kColumns, func(rec []string) {
		codes.Observe(rec[kColSubRegion],
			domain.RegionCode{Name: rec[kColRegion], Kana: rec[kColRegionKana]},
			domain.RegionCode{Name: rec[kColSubRegionName], Kana: rec[kColSubRegionKana]},
		)
		row := Row{
			SubRegionCode: rec[kColSubRegion],
			PostalCode:    rec[kColPostalCode],
			Text:          rec[kColAddr],
			Kana:          rec[kColAddrKana],
		}
		if out := machine.Feed(row); out != nil {
			records = append(records, *out)
		}
	})
	if err != nil {
		return nil, err
	}

	if machine.State() == InsideNote {
		out := machine.Flush()
		p.logger.Warn("unterminated note at end of input", "zip", out.PostalCode)
		records = append(records, *out)
	}

	return finish(codes, records)
}

// ParseJ parses business registry rows. Each row is one record.
func (p *Parser) ParseJ(ctx context.Context, rows RowReader) (*domain.ParsedSource, error) {
	var codes CodebookBuilder
	records := make([]domain.AddressRecord, 0)

	err := eachRow(ctx, rows, jColumns, func(rec []string) {
		codes.Observe(rec[jColSubRegion],
			domain.RegionCode{Name: rec[jColRegion]},
			domain.RegionCode{Name: rec[jColSubRegionName]},
		)
		records = append(records, domain.AddressRecord{
			SubRegionCode: rec[jColSubRegion],
			PostalCode:    rec[jColPostalCode],
			Addr1:         rec[jColAddr1],
			Addr2:         rec[jColAddr2],
			Name:          rec[jColName],
			NameKana:      rec[jColNameKana],
		})
	})
	if err != nil {
		return nil, err
	}

	return finish(codes, records)
}

func eachRow(ctx context.Context, rows RowReader, columns int, fn func([]string)) error {
	for line := 1; ; line++ {
		if line%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		rec, err := rows.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row %d: %w", line, err)
		}
		if len(rec) < columns {
			return fmt.Errorf("%w: row %d has %d columns, want %d", domain.ErrMalformedRow, line, len(rec), columns)
		}
		fn(rec)
	}
}

func finish(codes CodebookBuilder, records []domain.AddressRecord) (*domain.ParsedSource, error) {
	if len(codes.Regions()) == 0 {
		return nil, domain.ErrEmptyCodebook
	}
	return &domain.ParsedSource{
		Regions:    codes.Regions(),
		SubRegions: codes.SubRegions(),
		Records:    records,
	}, nil
}
