package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenesync/scenesync/internal/core/replication"
	"github.com/scenesync/scenesync/internal/core/variant"
)

// replicate runs one network pass on src and applies the result to dst.
func replicate(t *testing.T, src, dst *Scene) {
	t.Helper()
	deltas, removals := src.PrepareNetworkUpdate()
	for _, d := range deltas {
		dst.ApplyDelta(d)
	}
	dst.ApplyRemovals(removals)
}

func TestMirrorFollowsNodeChanges(t *testing.T) {
	src := newTestScene()
	dst := newTestScene()

	n := src.CreateChild("mover", Replicated)
	replicate(t, src, dst)

	mirrored := dst.GetNode(n.ID())
	require.NotNil(t, mirrored)
	assert.Equal(t, "mover", mirrored.Name())

	n.SetPosition(mgl32.Vec3{4, 5, 6})
	replicate(t, src, dst)
	assert.Equal(t, mgl32.Vec3{4, 5, 6}, mirrored.Position())
}

func TestMirrorCreatesPlaceholderForUnknownNode(t *testing.T) {
	dst := newTestScene()

	dst.ApplyDelta(replication.Delta{
		Kind: replication.KindNode,
		ID:   42,
		Changes: []replication.AttrChange{
			{Index: 1, Value: variant.Str("ghost")},
		},
	})

	n := dst.GetNode(42)
	require.NotNil(t, n)
	assert.Equal(t, "ghost", n.Name())
	assert.Same(t, &dst.Node, n.Parent())
}

func TestMirrorFollowsComponentChanges(t *testing.T) {
	src := newTestScene()
	dst := newTestScene()

	n := src.CreateChild("holder", Replicated)
	c := &trackerComponent{}
	n.AddComponent(c, 0, Replicated)
	c.health = 10

	data, err := src.ToBinary()
	require.NoError(t, err)
	require.NoError(t, dst.LoadBinary(data))
	src.PrepareNetworkUpdate() // establish the diff baseline

	c.health = 55
	c.MarkNetworkUpdate()
	replicate(t, src, dst)

	mc, ok := dst.GetComponent(c.ID()).(*trackerComponent)
	require.True(t, ok)
	assert.Equal(t, 55, mc.health)
}

func TestMirrorSkipsUnknownComponentDelta(t *testing.T) {
	dst := newTestScene()

	dst.ApplyDelta(replication.Delta{
		Kind:     replication.KindComponent,
		ID:       7,
		TypeHash: variant.Hash("Nonexistent"),
	})
	assert.Nil(t, dst.GetComponent(7))
}

func TestMirrorAppliesVarDiffs(t *testing.T) {
	src := newTestScene()
	dst := newTestScene()

	n := src.CreateChild("vars", Replicated)
	key := variant.Hash("score")
	n.SetVar(key, variant.Int(3))
	replicate(t, src, dst)

	mirrored := dst.GetNode(n.ID())
	require.NotNil(t, mirrored)
	assert.Equal(t, 3, mirrored.Var(key).Int())

	n.DeleteVar(key)
	replicate(t, src, dst)
	assert.Equal(t, variant.TypeNone, mirrored.Var(key).Type())
}

func TestMirrorRemovals(t *testing.T) {
	src := newTestScene()
	dst := newTestScene()

	n := src.CreateChild("doomed", Replicated)
	id := n.ID()
	replicate(t, src, dst)
	require.NotNil(t, dst.GetNode(id))

	n.Remove()
	replicate(t, src, dst)
	assert.Nil(t, dst.GetNode(id))
}
