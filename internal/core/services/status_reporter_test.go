package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/zipsync/internal/core/domain"
)

// completedHarness returns a harness whose run has every milestone set.
func completedHarness(t *testing.T) *harness {
	t.Helper()
	h, payload := mergedHarness(t)
	for _, prefix := range domain.ShardPrefixes() {
		require.NoError(t, h.publisher.Publish(context.Background(), shardPayload(payload, prefix)))
	}
	return h
}

func TestStatusReporter_Success(t *testing.T) {
	h := completedHarness(t)
	ctx := context.Background()

	report, err := h.reporter.Report(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, "[zipsync] status: SUCCESS", report.Message.Subject)
	assert.Equal(t, []string{"ops@example.com"}, report.To)
	assert.Equal(t, domain.ReportTypeStatus, report.Type)

	lines := strings.Split(report.Message.Text, "\n")
	require.Len(t, lines, 20)
	assert.Equal(t, "", lines[0])
	assert.Equal(t, "--", lines[2])
	assert.True(t, strings.HasPrefix(lines[3], "k.savedAt: 2026-03-01T09:30:00.125Z"))
	assert.True(t, strings.HasPrefix(lines[7], "mergedAt: "))
	assert.True(t, strings.HasPrefix(lines[17], "generatedSample9At: "))
	assert.Equal(t, "--", lines[18])
	assert.NotContains(t, report.Message.Text, "error")

	assert.True(t, h.docs.Has(domain.CollectionMail, "20260301093000125"))
	assert.NotNil(t, h.runState(t).ReportedAt)
}

func TestStatusReporter_AtMostOnce(t *testing.T) {
	h := completedHarness(t)
	ctx := context.Background()

	_, err := h.reporter.Report(ctx)
	require.NoError(t, err)
	writes := h.docs.WriteCount()

	h.clock.Advance(time.Minute)
	report, err := h.reporter.Report(ctx)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Equal(t, writes, h.docs.WriteCount())
	assert.Equal(t, 1, h.docs.Count(domain.CollectionMail))
}

func TestStatusReporter_MissingMilestones(t *testing.T) {
	h, _ := mergedHarness(t)

	report, err := h.reporter.Report(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, "[zipsync] status: ERROR", report.Message.Subject)
	assert.Contains(t, report.Message.Text, "mergedAt: 2026-")
	assert.Contains(t, report.Message.Text, "generatedSample0At: error")
	assert.NotNil(t, h.runState(t).ReportedAt)
}

func TestStatusReporter_MalformedTimestamp(t *testing.T) {
	h := newHarness(t)
	h.docs.Put(domain.CollectionSources, domain.RunStateID, json.RawMessage(`{"mergedAt":"yesterday"}`))

	report, err := h.reporter.Report(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Contains(t, report.Message.Text, "mergedAt: error")
	assert.Contains(t, report.Message.Text, "k.savedAt: error")
}

func TestStatusReporter_NoRunState(t *testing.T) {
	h := newHarness(t)

	report, err := h.reporter.Report(context.Background())
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Zero(t, h.docs.WriteCount())
}

func TestStatusReporter_AdminRecipients(t *testing.T) {
	h := completedHarness(t)
	h.docs.Put(domain.CollectionGroups, domain.AdminGroupID, json.RawMessage(`{"name":"Admins","accounts":["a1","a2","missing"]}`))
	h.docs.Put(domain.CollectionAccounts, "a1", json.RawMessage(`{"name":"Aiko","email":"aiko@example.com","valid":true}`))
	h.docs.Put(domain.CollectionAccounts, "a2", json.RawMessage(`{"name":"No Mail"}`))

	report, err := h.reporter.Report(context.Background())
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, []string{"aiko@example.com"}, report.To)
}

func TestStatusReporter_NoRecipientsDefersReport(t *testing.T) {
	h := completedHarness(t)
	ctx := context.Background()
	reporter := NewStatusReporter(StatusReporterConfig{Docs: h.docs, Now: h.clock.Now})
	writes := h.docs.WriteCount()

	report, err := reporter.Report(ctx)
	require.NoError(t, err)
	assert.Nil(t, report)
	assert.Equal(t, writes, h.docs.WriteCount())
	assert.Nil(t, h.runState(t).ReportedAt)

	h.docs.Put(domain.CollectionGroups, domain.AdminGroupID, json.RawMessage(`{"name":"Admins","accounts":["a1"]}`))
	h.docs.Put(domain.CollectionAccounts, "a1", json.RawMessage(`{"name":"Aiko","email":"aiko@example.com"}`))

	report, err = reporter.Report(ctx)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, []string{"aiko@example.com"}, report.To)
	assert.NotNil(t, h.runState(t).ReportedAt)
}
