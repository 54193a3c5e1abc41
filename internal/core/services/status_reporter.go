package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven"
	"github.com/custodia-labs/zipsync/internal/metrics"
)

// StatusReporter composes the status report of the current run, at most
// once per run.
type StatusReporter struct {
	docs          driven.DocumentStore
	defaultSender string
	subjectPrefix string
	metrics       *metrics.Collector
	logger        *slog.Logger
	now           func() time.Time
}

// StatusReporterConfig holds dependencies for StatusReporter.
type StatusReporterConfig struct {
	Docs driven.DocumentStore

	// DefaultSender receives the report when no admin has an email
	DefaultSender string

	// SubjectPrefix starts the subject line (default: "[zipsync]")
	SubjectPrefix string

	Metrics *metrics.Collector
	Logger  *slog.Logger
	Now     func() time.Time
}

// NewStatusReporter creates a new status reporter.
func NewStatusReporter(cfg StatusReporterConfig) *StatusReporter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "[zipsync]"
	}
	return &StatusReporter{
		docs:          cfg.Docs,
		defaultSender: cfg.DefaultSender,
		subjectPrefix: prefix,
		metrics:       cfg.Metrics,
		logger:        logger,
		now:           now,
	}
}

// reportFields lists the milestones checked by a report, in report order.
func reportFields() []string {
	fields := []string{
		domain.SourceField(domain.SourceTypeK, domain.FieldSavedAt),
		domain.SourceField(domain.SourceTypeK, domain.FieldParsedAt),
		domain.SourceField(domain.SourceTypeJ, domain.FieldSavedAt),
		domain.SourceField(domain.SourceTypeJ, domain.FieldParsedAt),
		domain.FieldMergedAt,
	}
	for _, prefix := range domain.ShardPrefixes() {
		fields = append(fields, domain.ShardMilestoneField(prefix))
	}
	return fields
}

// Report stores a status report for the current run and stamps reportedAt.
// Returns nil, nil when there is no run, it was already reported, or nobody
// can receive it. In the last case reportedAt stays unset so a later call
// reports once a recipient exists.
func (r *StatusReporter) Report(ctx context.Context) (*domain.StatusReport, error) {
	raw, err := r.docs.Get(ctx, domain.CollectionSources, domain.RunStateID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run state: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode run state: %w", err)
	}
	if doc[domain.FieldReportedAt] != nil {
		return nil, nil
	}

	ts := r.now().UTC()
	status, body := composeReport(ts, doc)
	r.logger.Info("run status", "status", status)

	to, err := r.recipients(ctx)
	if err != nil {
		return nil, err
	}
	if len(to) == 0 {
		r.logger.Warn("no report recipients, add an admin email or set mail.default_sender", "status", status)
		return nil, nil
	}

	report := &domain.StatusReport{
		To: to,
		Message: domain.MailMessage{
			Subject: fmt.Sprintf("%s status: %s", r.subjectPrefix, status),
			Text:    body,
		},
		Type:      domain.ReportTypeStatus,
		CreatedAt: ts,
	}
	if err := r.docs.Set(ctx, domain.CollectionMail, domain.CompactTimestamp(ts), report); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	if err := stampRunState(ctx, r.docs, map[string]any{domain.FieldReportedAt: ts}); err != nil {
		return nil, err
	}
	r.metrics.Reported(string(status))

	return report, nil
}

// composeReport checks every milestone of doc. A missing or malformed
// timestamp marks the run as ERROR.
func composeReport(ts time.Time, doc map[string]any) (domain.ReportStatus, string) {
	status := domain.ReportStatusSuccess
	lines := []string{"", ts.Format(time.RFC3339Nano), "--"}

	for _, field := range reportFields() {
		if at, ok := milestone(doc, field); ok {
			lines = append(lines, fmt.Sprintf("%s: %s", field, at.UTC().Format(time.RFC3339Nano)))
			continue
		}
		lines = append(lines, field+": error")
		status = domain.ReportStatusError
	}

	lines = append(lines, "--", "")
	return status, strings.Join(lines, "\n")
}

// milestone resolves a dotted field of doc as an RFC 3339 timestamp.
func milestone(doc map[string]any, field string) (time.Time, bool) {
	var cur any = doc
	for _, part := range strings.Split(field, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return time.Time{}, false
		}
		cur = obj[part]
	}
	s, ok := cur.(string)
	if !ok {
		return time.Time{}, false
	}
	at, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return at, true
}

// recipients returns the emails of admin accounts, or the default sender.
func (r *StatusReporter) recipients(ctx context.Context) ([]string, error) {
	var to []string

	raw, err := r.docs.Get(ctx, domain.CollectionGroups, domain.AdminGroupID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("get admin group: %w", err)
	default:
		var group domain.Group
		if err := json.Unmarshal(raw, &group); err != nil {
			return nil, fmt.Errorf("decode admin group: %w", err)
		}
		for _, id := range group.Accounts {
			raw, err := r.docs.Get(ctx, domain.CollectionAccounts, id)
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("get account %s: %w", id, err)
			}
			var account domain.Account
			if err := json.Unmarshal(raw, &account); err != nil {
				r.logger.Warn("skipping malformed account", "account_id", id, "error", err)
				continue
			}
			if account.Email != "" {
				to = append(to, account.Email)
			}
		}
	}

	if len(to) == 0 && r.defaultSender != "" {
		to = append(to, r.defaultSender)
	}
	return to, nil
}
