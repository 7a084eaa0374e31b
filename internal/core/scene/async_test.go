package scene

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenesync/scenesync/internal/core/attribute"
	"github.com/scenesync/scenesync/internal/core/events"
	"github.com/scenesync/scenesync/internal/core/observability/log"
	"github.com/scenesync/scenesync/internal/core/resource"
	"github.com/scenesync/scenesync/internal/core/variant"
)

func pumpAsync(t *testing.T, s *Scene) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for s.IsAsyncLoading() {
		require.True(t, time.Now().Before(deadline), "async load did not finish")
		s.Update(0.016)
	}
}

func TestAsyncLoadBinary(t *testing.T) {
	src := newTestScene()
	populateScene(src)
	for i := 0; i < 16; i++ {
		src.CreateChild("filler", Replicated).CreateChild("leaf", Replicated)
	}
	data, err := src.ToBinary()
	require.NoError(t, err)

	dst := newTestScene()
	stale := dst.CreateChild("stale", Replicated)

	var progressEvents, finishedEvents int
	var lastProgress float32
	dst.Bus().Subscribe(events.AsyncLoadProgress, func(payload any) {
		ev := payload.(AsyncProgressEvent)
		assert.GreaterOrEqual(t, ev.Progress, lastProgress, "progress is monotonic")
		lastProgress = ev.Progress
		progressEvents++
	})
	dst.Bus().Subscribe(events.AsyncLoadFinished, func(any) { finishedEvents++ })

	require.NoError(t, dst.LoadAsyncBinary(data, LoadScene))
	require.True(t, dst.IsAsyncLoading())
	assert.Nil(t, dst.ChildByName("stale", false), "the scene empties when the load starts")
	_ = stale

	pumpAsync(t, dst)

	assert.Equal(t, 1, finishedEvents)
	assert.Positive(t, progressEvents)
	assert.InDelta(t, 1, lastProgress, 1e-6)
	assertSceneLoaded(t, dst)

	fillers := 0
	for _, c := range dst.Children() {
		if c.Name() == "filler" {
			fillers++
		}
	}
	assert.Equal(t, 16, fillers)
}

// terrainPatchComponent carries a bulk attribute whose Set is slow on
// purpose, so loading it spans several update slices.
type terrainPatchComponent struct {
	BaseComponent

	heightMap []byte
}

var terrainPatchType = RegisterComponent("TerrainPatch", []attribute.Info{
	{
		Name: "Height Map", Type: variant.TypeBuffer, Mode: attribute.Default,
		Get: func(s attribute.Serializable) variant.Variant {
			return variant.Buffer(s.(*terrainPatchComponent).heightMap)
		},
		Set: func(s attribute.Serializable, v variant.Variant) {
			time.Sleep(2 * time.Millisecond)
			s.(*terrainPatchComponent).heightMap = v.Buffer()
		},
	},
}, func() Component { return &terrainPatchComponent{} })

func (c *terrainPatchComponent) TypeName() string             { return "TerrainPatch" }
func (c *terrainPatchComponent) TypeHash() variant.StringHash { return terrainPatchType }

func TestAsyncLoadSpreadsAcrossUpdates(t *testing.T) {
	src := newTestScene()
	const patches = 8
	for i := 0; i < patches; i++ {
		patch := src.CreateChild("patch", Replicated)
		comp := &terrainPatchComponent{heightMap: []byte{1, 2, 3, 4}}
		patch.AddComponent(comp, 0, Replicated)
	}
	data, err := src.ToBinary()
	require.NoError(t, err)

	dst := newTestScene()
	dst.SetAsyncLoadingMs(1)
	require.NoError(t, dst.LoadAsyncBinary(data, LoadScene))

	var counts []int
	for i := 0; dst.IsAsyncLoading(); i++ {
		require.Less(t, i, 100, "async load did not finish")
		dst.Update(0.016)
		counts = append(counts, dst.NumChildren())
	}

	require.Greater(t, len(counts), 1, "the load must span more than one update")
	for i := 1; i < len(counts); i++ {
		assert.Greater(t, counts[i], counts[i-1], "every update slice makes progress")
	}

	require.Equal(t, patches, dst.NumChildren())
	for _, child := range dst.Children() {
		comp, ok := child.Component(terrainPatchType).(*terrainPatchComponent)
		require.True(t, ok)
		assert.Equal(t, []byte{1, 2, 3, 4}, comp.heightMap)
	}
}

func TestAsyncLoadRejectsConcurrent(t *testing.T) {
	src := newTestScene()
	populateScene(src)
	data, err := src.ToBinary()
	require.NoError(t, err)

	dst := newTestScene()
	require.NoError(t, dst.LoadAsyncBinary(data, LoadScene))
	assert.Error(t, dst.LoadAsyncBinary(data, LoadScene))
	pumpAsync(t, dst)
}

func TestStopAsyncLoading(t *testing.T) {
	src := newTestScene()
	populateScene(src)
	data, err := src.ToBinary()
	require.NoError(t, err)

	dst := newTestScene()
	require.NoError(t, dst.LoadAsyncBinary(data, LoadScene))
	dst.StopAsyncLoading()
	assert.False(t, dst.IsAsyncLoading())

	// a fresh load can start afterwards
	require.NoError(t, dst.LoadAsyncBinary(data, LoadScene))
	pumpAsync(t, dst)
	assertSceneLoaded(t, dst)
}

func TestAsyncLoadResourcesOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "skin.dat"), []byte("payload"), 0o644))

	src := newTestScene()
	holder := src.CreateChild("holder", Replicated)
	holder.SetVar(variant.Hash("skin"), variant.Resource(variant.ResourceRef{
		Type: variant.Hash("Texture"), Name: "skin.dat",
	}))
	data, err := src.ToBinary()
	require.NoError(t, err)

	cache := resource.NewDirCache(dir, 2, log.Nop())
	defer cache.Close()

	dst := newTestScene()
	dst.SetResourceCache(cache)
	marker := dst.CreateChild("marker", Replicated)
	require.NoError(t, dst.LoadAsyncBinary(data, LoadResourcesOnly))

	deadline := time.Now().Add(5 * time.Second)
	for dst.IsAsyncLoading() && time.Now().Before(deadline) {
		dst.Update(0.016)
		time.Sleep(time.Millisecond)
	}
	require.False(t, dst.IsAsyncLoading())

	assert.Equal(t, marker, dst.ChildByName("marker", false), "resource-only loads leave the scene alone")
	res, err := cache.Get(resource.Ref{Type: variant.Hash("Texture"), Name: "skin.dat"})
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), res.Data)
}

func TestAsyncLoadSceneAndResources(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mesh.dat"), []byte("m"), 0o644))

	src := newTestScene()
	populateScene(src)
	src.ChildByName("world", false).SetVar(variant.Hash("mesh"), variant.Resource(variant.ResourceRef{
		Type: variant.Hash("Model"), Name: "mesh.dat",
	}))
	data, err := src.ToBinary()
	require.NoError(t, err)

	cache := resource.NewDirCache(dir, 1, log.Nop())
	defer cache.Close()

	dst := newTestScene()
	dst.SetResourceCache(cache)
	require.NoError(t, dst.LoadAsyncBinary(data, LoadSceneAndResources))

	deadline := time.Now().Add(5 * time.Second)
	for dst.IsAsyncLoading() && time.Now().Before(deadline) {
		dst.Update(0.016)
		time.Sleep(time.Millisecond)
	}
	require.False(t, dst.IsAsyncLoading())
	assertSceneLoaded(t, dst)
}

func TestAsyncProgressWhenIdle(t *testing.T) {
	s := newTestScene()
	assert.Equal(t, float32(1), s.AsyncProgress())
}
