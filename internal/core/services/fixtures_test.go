package services

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/core/ports/driven/mocks"
)

const (
	kPageURL    = "https://registry.example/k/index.html"
	kArchiveURL = "https://registry.example/k/ken_all.zip"
	jPageURL    = "https://registry.example/j/index.html"
	jArchiveURL = "https://registry.example/j/jigyosyo.zip"
)

// testClock is a manually advanced clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 30, 0, 125_000_000, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness wires every service against in-memory ports.
type harness struct {
	fetcher *mocks.MockFetcher
	blobs   *mocks.MockBlobStore
	docs    *mocks.MockDocumentStore
	queue   *mocks.MockTaskQueue
	clock   *testClock

	sources   *SourceFetcher
	pipeline  *SourcePipeline
	publisher *ShardPublisher
	reporter  *StatusReporter
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		fetcher: mocks.NewMockFetcher(),
		blobs:   mocks.NewMockBlobStore(),
		docs:    mocks.NewMockDocumentStore(),
		queue:   mocks.NewMockTaskQueue(),
		clock:   newTestClock(),
	}
	h.sources = NewSourceFetcher(SourceFetcherConfig{
		Fetcher:   h.fetcher,
		Blobs:     h.blobs,
		Docs:      h.docs,
		TaskQueue: h.queue,
		Endpoints: map[domain.SourceType]SourceEndpoint{
			domain.SourceTypeK: {PageURL: kPageURL, ArchiveURL: kArchiveURL},
			domain.SourceTypeJ: {PageURL: jPageURL, ArchiveURL: jArchiveURL},
		},
		Now: h.clock.Now,
	})
	h.pipeline = NewSourcePipeline(SourcePipelineConfig{
		Blobs:     h.blobs,
		Docs:      h.docs,
		TaskQueue: h.queue,
		Now:       h.clock.Now,
	})
	h.publisher = NewShardPublisher(ShardPublisherConfig{
		Blobs: h.blobs,
		Docs:  h.docs,
		Now:   h.clock.Now,
	})
	h.reporter = NewStatusReporter(StatusReporterConfig{
		Docs:          h.docs,
		DefaultSender: "ops@example.com",
		Now:           h.clock.Now,
	})

	h.serve(t, "k-page-v1", kArchive(t), "j-page-v1", jArchive(t))
	return h
}

// serve sets the upstream bodies of both registries.
func (h *harness) serve(t *testing.T, kPage string, kZip []byte, jPage string, jZip []byte) {
	t.Helper()
	h.fetcher.SetBody(kPageURL, []byte(kPage))
	h.fetcher.SetBody(kArchiveURL, kZip)
	h.fetcher.SetBody(jPageURL, []byte(jPage))
	h.fetcher.SetBody(jArchiveURL, jZip)
}

// runState reads the live run state.
func (h *harness) runState(t *testing.T) *domain.RunState {
	t.Helper()
	raw, err := h.docs.Get(context.Background(), domain.CollectionSources, domain.RunStateID)
	require.NoError(t, err)
	state := &domain.RunState{}
	require.NoError(t, json.Unmarshal(raw, state))
	return state
}

// parsePayload returns the payload of the last enqueued parse task.
func (h *harness) parsePayload(t *testing.T) domain.ParsePayload {
	t.Helper()
	tasks := h.queue.EnqueuedOfType(domain.TaskTypeParseSources)
	require.NotEmpty(t, tasks)
	var payload domain.ParsePayload
	require.NoError(t, tasks[len(tasks)-1].DecodePayload(&payload))
	return payload
}

// buildArchive writes rows as a Shift_JIS CSV entry inside a zip.
func buildArchive(t *testing.T, name string, rows [][]string) []byte {
	t.Helper()

	var text bytes.Buffer
	w := csv.NewWriter(&text)
	w.UseCRLF = true
	require.NoError(t, w.WriteAll(rows))

	sjis, err := japanese.ShiftJIS.NewEncoder().Bytes(text.Bytes())
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create(name)
	require.NoError(t, err)
	_, err = f.Write(sjis)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func kRow(code, zip, regionKana, cityKana, addrKana, region, city, addr string) []string {
	return []string{code, zip[:3], zip, regionKana, cityKana, addrKana, region, city, addr, "0", "0", "0", "0", "0", "0"}
}

func jRow(code, nameKana, name, region, city, addr1, addr2, zip string) []string {
	return []string{code, nameKana, name, region, city, addr1, addr2, zip, zip[:5], "", "0", "0", "0"}
}

func kArchive(t *testing.T, extra ...[]string) []byte {
	rows := [][]string{
		kRow("13101", "1000001", "ﾄｳｷｮｳﾄ", "ﾁﾖﾀﾞｸ", "ﾁﾖﾀﾞ", "東京都", "千代田区", "千代田"),
		kRow("13101", "1000005", "ﾄｳｷｮｳﾄ", "ﾁﾖﾀﾞｸ", "ﾏﾙﾉｳﾁ", "東京都", "千代田区", "丸の内"),
		kRow("27128", "5400002", "ｵｵｻｶﾌ", "ｵｵｻｶｼﾁｭｳｵｳｸ", "ｵｵｻｶｼﾞｮｳ", "大阪府", "大阪市中央区", "大阪城"),
	}
	return buildArchive(t, "KEN_ALL.CSV", append(rows, extra...))
}

func jArchive(t *testing.T) []byte {
	return buildArchive(t, "JIGYOSYO.CSV", [][]string{
		jRow("13101", "ｴｸｻﾝﾌﾟﾙ", "ExampleCorp", "東京都", "千代田区", "千代田", "１丁目", "1000001"),
	})
}
