package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"batchgen/pkg/model"
	"batchgen/pkg/store/storetest"
)

func TestNormalizePrefix(t *testing.T) {
	tests := map[string]string{
		"":            DefaultPrefix,
		"/":           DefaultPrefix,
		"/ops/batch/": "/ops/batch",
		"ops":         "/ops",
		" /x ":        "/x",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizePrefix(in), in)
	}
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "/batchgen/batches/123", batchesKey(DefaultPrefix, "123"))
	assert.Equal(t, "/batchgen/start-times/123", startTimeKey(DefaultPrefix, "123"))
	assert.Equal(t, "/batchgen/nodes", nodesKey(DefaultPrefix))
	assert.Equal(t, "/batchgen/plans/123", planKey(DefaultPrefix, "123"))
}

func newTestManager(t *testing.T) (*EtcdManager, *storetest.KV) {
	t.Helper()
	kv := storetest.New()
	em := NewEtcdManagerFromKV(kv, "/ops", nil)
	t.Cleanup(func() { require.NoError(t, em.Close()) })
	return em, kv
}

func TestEtcdManager_Batches(t *testing.T) {
	ctx := context.Background()
	em, kv := newTestManager(t)

	t.Run("剔除 0 主机和不安全的标识", func(t *testing.T) {
		kv.Set("/ops/batches/CT1", `[{"id":"B1","hosts":5},{"id":"B2","hosts":0},{"id":"B;3","hosts":7},{"id":"B4","hosts":-1},{"id":"B5","hosts":2}]`)

		got, err := em.Batches(ctx, "CT1")
		require.NoError(t, err)
		assert.Equal(t, []model.Batch{{ID: "B1", Hosts: 5}, {ID: "B5", Hosts: 2}}, got)
	})

	t.Run("键不存在", func(t *testing.T) {
		_, err := em.Batches(ctx, "CT404")
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("内容不是 JSON", func(t *testing.T) {
		kv.Set("/ops/batches/BAD", "B1,5")
		_, err := em.Batches(ctx, "BAD")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})
}

func TestEtcdManager_StartTime(t *testing.T) {
	ctx := context.Background()
	em, kv := newTestManager(t)
	kv.Set("/ops/start-times/CT1", "18:00")
	kv.Set("/ops/start-times/CT2", "25:99")

	got, err := em.StartTime(ctx, "CT1")
	require.NoError(t, err)
	assert.Equal(t, model.StartTime{Hour: 18}, got)

	_, err = em.StartTime(ctx, "CT404")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = em.StartTime(ctx, "CT2")
	require.Error(t, err)
}

func TestEtcdManager_EnabledNodes(t *testing.T) {
	ctx := context.Background()
	em, kv := newTestManager(t)

	_, err := em.EnabledNodes(ctx)
	require.ErrorIs(t, err, ErrNotFound)

	kv.Set("/ops/nodes", `["NODE3","node4","NODE","NODE1"]`)
	got, err := em.EnabledNodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.NodeID{3, 1}, got)

	kv.Set("/ops/nodes", `["web1"]`)
	_, err = em.EnabledNodes(ctx)
	require.ErrorIs(t, err, ErrNoNodes)
}

func TestEtcdManager_SeedAndResolve(t *testing.T) {
	ctx := context.Background()
	em, kv := newTestManager(t)

	batches := []model.Batch{{ID: "B1", Hosts: 50}, {ID: "B2", Hosts: 30}}
	require.NoError(t, em.SaveBatches(ctx, "CT1", batches))
	require.NoError(t, em.SaveStartTime(ctx, "CT1", model.StartTime{Hour: 6, Minute: 5}))
	require.NoError(t, em.SaveEnabledNodes(ctx, []model.NodeID{2, 1}))

	assert.Equal(t, []string{"/ops/batches/CT1", "/ops/nodes", "/ops/start-times/CT1"}, kv.Keys())
	v, _ := kv.Value("/ops/start-times/CT1")
	assert.Equal(t, "06:05", v)
	v, _ = kv.Value("/ops/nodes")
	assert.Equal(t, `["NODE2","NODE1"]`, v)

	in, err := Resolve(ctx, em, "CT1")
	require.NoError(t, err)
	assert.Equal(t, batches, in.Batches)
	assert.Equal(t, model.StartTime{Hour: 6, Minute: 5}, in.Start)
	assert.Equal(t, []model.NodeID{2, 1}, in.Nodes)

	_, err = Resolve(ctx, em, "CT2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEtcdManager_Plan(t *testing.T) {
	ctx := context.Background()
	em, kv := newTestManager(t)

	a := &model.Assignment{Loads: []model.NodeLoad{
		{Node: 1, Batches: []string{"B1", "B4"}, Total: 60},
		{Node: 2, Batches: []string{}, Total: 0},
	}}
	plan := model.NewPlan("CT1", model.StartTime{Hour: 18}, a)
	require.NoError(t, em.SavePlan(ctx, plan))

	_, ok := kv.Value("/ops/plans/CT1")
	require.True(t, ok)

	got, err := em.GetPlan(ctx, "CT1")
	require.NoError(t, err)
	assert.Equal(t, plan.ID, got.ID)
	assert.Equal(t, "CT1", got.CT)
	assert.Equal(t, plan.StartTime, got.StartTime)
	assert.Equal(t, a.Loads, got.Assignment.Loads)
	assert.True(t, plan.CreatedAt.Equal(got.CreatedAt))

	_, err = em.GetPlan(ctx, "CT2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEtcdManager_Unavailable(t *testing.T) {
	ctx := context.Background()
	em, kv := newTestManager(t)
	kv.Fail()

	_, err := em.Batches(ctx, "CT1")
	require.ErrorIs(t, err, storetest.ErrUnavailable)
	require.ErrorIs(t, em.SaveStartTime(ctx, "CT1", model.StartTime{}), storetest.ErrUnavailable)
}
