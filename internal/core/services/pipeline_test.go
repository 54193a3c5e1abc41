package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/zipsync/internal/core/domain"
	"github.com/custodia-labs/zipsync/internal/export"
)

// syncedHarness returns a harness whose sources have been fetched once.
func syncedHarness(t *testing.T) (*harness, domain.ParsePayload) {
	t.Helper()
	h := newHarness(t)
	_, err := h.sources.Sync(context.Background())
	require.NoError(t, err)
	return h, h.parsePayload(t)
}

func TestSourcePipeline_ParseAndMerge(t *testing.T) {
	h, payload := syncedHarness(t)
	ctx := context.Background()
	h.clock.Advance(time.Minute)

	work, err := h.pipeline.ParseAndMerge(ctx, payload)
	require.NoError(t, err)

	require.Len(t, work, domain.ShardCount)
	for i, w := range work {
		assert.Equal(t, domain.ShardPrefixes()[i], w.Prefix)
		assert.Equal(t, payload.K.ID, w.K.ID)
	}

	state := h.runState(t)
	assert.NotNil(t, state.K.ParsedAt)
	assert.NotNil(t, state.J.ParsedAt)
	assert.NotNil(t, state.MergedAt)

	for _, path := range []string{
		"work/" + payload.K.ID + "_records.json",
		"work/k_records.json",
		"work/j_regions.json",
		"regions.json", "regions_utf8.csv", "regions_sjis.csv",
		"subregions.json", "subregions_utf8.csv", "subregions_sjis.csv",
		"simple.json", "simple_utf8.csv", "simple_sjis.csv", "simple.zip",
		"history/20260301093100125_simple.json",
		"history/20260301093100125_simple.zip",
	} {
		assert.True(t, h.blobs.Has(path), path)
	}

	assert.True(t, h.blobs.IsPublic("update.txt"))
	assert.False(t, h.blobs.IsPublic("simple.json"))
	stamp, err := h.blobs.Get(ctx, "update.txt")
	require.NoError(t, err)
	assert.Equal(t, "20260301093100125", string(stamp))

	zipped, err := h.blobs.Get(ctx, "simple.zip")
	require.NoError(t, err)
	entries, err := export.ReadEntryZip(zipped)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, domain.MergedEntry{
		PostalCode: "1000001",
		Region:     "東京都",
		SubRegion:  "千代田区",
		Addr1:      "千代田",
		Addr2:      "１丁目",
		Name:       "ExampleCorp",
	}, entries[0])
	assert.Equal(t, "大阪府", entries[2].Region)
}

func TestSourcePipeline_AlreadyMerged(t *testing.T) {
	h, payload := syncedHarness(t)
	ctx := context.Background()

	_, err := h.pipeline.ParseAndMerge(ctx, payload)
	require.NoError(t, err)
	require.NoError(t, h.publisher.Publish(ctx, domain.ShardPayload{K: payload.K, J: payload.J, Prefix: "1"}))

	writes := h.blobs.WriteCount()

	work, err := h.pipeline.ParseAndMerge(ctx, payload)
	require.NoError(t, err)

	assert.Len(t, work, domain.ShardCount-1)
	for _, w := range work {
		assert.NotEqual(t, "1", w.Prefix)
	}
	assert.Equal(t, writes, h.blobs.WriteCount())
}

func TestSourcePipeline_ReusesParsedSource(t *testing.T) {
	h, payload := syncedHarness(t)
	ctx := context.Background()

	_, err := h.pipeline.ParseAndMerge(ctx, payload)
	require.NoError(t, err)

	// Clear the merge milestone and corrupt the archive: a second run must
	// merge again from the parsed artifacts without reading the archive.
	require.NoError(t, h.docs.Update(ctx, domain.CollectionSources, domain.RunStateID,
		map[string]any{domain.FieldMergedAt: nil}))
	require.NoError(t, h.blobs.Put(ctx, "sources/"+payload.K.ID+".zip", []byte("garbage")))

	work, err := h.pipeline.ParseAndMerge(ctx, payload)
	require.NoError(t, err)
	assert.Len(t, work, domain.ShardCount)
	assert.NotNil(t, h.runState(t).MergedAt)
}

func TestSourcePipeline_StaleTask(t *testing.T) {
	h, payload := syncedHarness(t)
	ctx := context.Background()

	// A newer fetch replaced K before this task ran.
	h.clock.Advance(24 * time.Hour)
	h.serve(t, "k-page-v2",
		kArchive(t, kRow("13101", "1000006", "ﾄｳｷｮｳﾄ", "ﾁﾖﾀﾞｸ", "ｵｵﾃﾏﾁ", "東京都", "千代田区", "大手町")),
		"j-page-v1", jArchive(t))
	_, err := h.sources.Sync(ctx)
	require.NoError(t, err)

	work, err := h.pipeline.ParseAndMerge(ctx, payload)
	require.NoError(t, err)
	assert.Empty(t, work)

	state := h.runState(t)
	assert.NotEqual(t, payload.K.ID, state.K.ID)
	assert.Nil(t, state.K.ParsedAt)
	assert.NotNil(t, state.J.ParsedAt)
	assert.Nil(t, state.MergedAt)
}

func TestSourcePipeline_Errors(t *testing.T) {
	t.Run("invalid payload", func(t *testing.T) {
		h, _ := syncedHarness(t)
		_, err := h.pipeline.ParseAndMerge(context.Background(), domain.ParsePayload{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("no run state", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.pipeline.ParseAndMerge(context.Background(), domain.ParsePayload{
			K: domain.SourceRef{ID: "k1"}, J: domain.SourceRef{ID: "j1"},
		})
		assert.ErrorIs(t, err, domain.ErrRunStateMissing)
	})

	t.Run("bad archive", func(t *testing.T) {
		h, payload := syncedHarness(t)
		ctx := context.Background()
		require.NoError(t, h.blobs.Put(ctx, "sources/"+payload.J.ID+".zip", []byte("garbage")))

		_, err := h.pipeline.ParseAndMerge(ctx, payload)
		require.Error(t, err)
		assert.Nil(t, h.runState(t).MergedAt)
	})
}

func TestSourcePipeline_RunDispatchesShards(t *testing.T) {
	h, payload := syncedHarness(t)

	require.NoError(t, h.pipeline.Run(context.Background(), payload))

	shards := h.queue.EnqueuedOfType(domain.TaskTypePublishShard)
	require.Len(t, shards, domain.ShardCount)

	var p domain.ShardPayload
	require.NoError(t, shards[3].DecodePayload(&p))
	assert.Equal(t, "3", p.Prefix)
	assert.Equal(t, payload.K.ID, p.K.ID)
	assert.Nil(t, p.K.ParsedAt)
}

func TestSourcePipeline_DispatchError(t *testing.T) {
	h, payload := syncedHarness(t)
	h.queue.EnqueueFn = func(*domain.Task) error { return errors.New("queue down") }

	err := h.pipeline.Run(context.Background(), payload)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "enqueue publish_shard")
}
