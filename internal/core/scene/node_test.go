package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenesync/scenesync/internal/core/variant"
)

func TestWorldTransformFollowsHierarchy(t *testing.T) {
	s := newTestScene()
	parent := s.CreateChild("parent", Replicated)
	child := parent.CreateChild("child", Replicated)

	parent.SetPosition(mgl32.Vec3{1, 2, 3})
	child.SetPosition(mgl32.Vec3{10, 0, 0})

	assert.InDelta(t, 11, child.WorldPosition().X(), 1e-5)
	assert.InDelta(t, 2, child.WorldPosition().Y(), 1e-5)
	assert.InDelta(t, 3, child.WorldPosition().Z(), 1e-5)

	// moving the parent dirties the child lazily
	parent.SetPosition(mgl32.Vec3{-1, 0, 0})
	assert.True(t, child.IsDirty())
	assert.InDelta(t, 9, child.WorldPosition().X(), 1e-5)
	assert.False(t, child.IsDirty())
}

func TestWorldTransformWithRotation(t *testing.T) {
	s := newTestScene()
	parent := s.CreateChild("parent", Replicated)
	child := parent.CreateChild("child", Replicated)

	parent.SetRotation(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}))
	child.SetPosition(mgl32.Vec3{1, 0, 0})

	pos := child.WorldPosition()
	assert.InDelta(t, 0, pos.X(), 1e-5)
	assert.InDelta(t, 0, pos.Y(), 1e-5)
	assert.InDelta(t, -1, pos.Z(), 1e-5)
}

func TestMarkDirtyIsIdempotent(t *testing.T) {
	s := newTestScene()
	node := s.CreateChild("n", Replicated)
	node.WorldTransform() // clean

	tracker := &trackerComponent{}
	node.AddComponent(tracker, 0, Replicated)
	node.AddListener(tracker)
	require.Zero(t, tracker.dirtyCalls)

	node.MarkDirty()
	node.MarkDirty()
	node.MarkDirty()
	assert.Equal(t, 1, tracker.dirtyCalls, "redundant dirtying must not re-notify")

	node.WorldTransform()
	node.MarkDirty()
	assert.Equal(t, 2, tracker.dirtyCalls)
}

func TestListenerOnDirtyNodeNotifiedImmediately(t *testing.T) {
	s := newTestScene()
	node := s.CreateChild("n", Replicated)
	node.MarkDirty()

	tracker := &trackerComponent{}
	node.AddComponent(tracker, 0, Replicated)
	assert.Equal(t, 1, tracker.dirtyCalls, "attach to a dirty node notifies at once")

	node.AddListener(tracker)
	assert.Equal(t, 2, tracker.dirtyCalls, "listening on a dirty node notifies at once")
	node.AddListener(tracker)
	assert.Equal(t, 2, tracker.dirtyCalls, "re-registering is a no-op")
}

func TestListenerCompaction(t *testing.T) {
	s := newTestScene()
	node := s.CreateChild("n", Replicated)
	node.WorldTransform()

	a := &trackerComponent{}
	b := &trackerComponent{}
	node.AddComponent(a, 0, Replicated)
	node.AddComponent(b, 0, Replicated)
	node.AddListener(a)
	node.AddListener(b)

	node.RemoveComponent(a) // expired but RemoveComponent also unregisters
	c := &trackerComponent{}
	node.AddComponent(c, 0, Replicated)
	node.AddListener(c)
	// detach c's node reference behind the listener list's back
	node.components = node.components[:1]
	c.node = nil

	node.MarkDirty()
	assert.Equal(t, 1, b.dirtyCalls)
	assert.Zero(t, c.dirtyCalls, "expired listeners are skipped and compacted")
	assert.Len(t, node.listeners, 1)
}

func TestCycleRejection(t *testing.T) {
	s := newTestScene()
	a := s.CreateChild("a", Replicated)
	b := a.CreateChild("b", Replicated)
	c := b.CreateChild("c", Replicated)

	c.AddChild(a) // would create a cycle
	assert.Equal(t, &s.Node, a.parent)
	assert.Empty(t, c.children)

	a.AddChild(a) // self
	assert.NotContains(t, a.children, a)

	a.AddChild(b) // already a child
	assert.Len(t, a.children, 1)
}

func TestScaleClamp(t *testing.T) {
	s := newTestScene()
	node := s.CreateChild("n", Replicated)

	node.SetScale(mgl32.Vec3{0, -5, 2})
	sc := node.Scale()
	assert.Equal(t, scaleEpsilon, sc.X())
	assert.Equal(t, float32(-5), sc.Y(), "mirror scales pass through untouched")
	assert.Equal(t, float32(2), sc.Z())

	// near-zero components keep their sign
	node.SetScale(mgl32.Vec3{-1e-9, 1e-9, 1})
	sc = node.Scale()
	assert.Equal(t, -scaleEpsilon, sc.X())
	assert.Equal(t, scaleEpsilon, sc.Y())
}

func TestSetParentKeepsWorldPose(t *testing.T) {
	s := newTestScene()
	a := s.CreateChild("a", Replicated)
	b := s.CreateChild("b", Replicated)
	a.SetPosition(mgl32.Vec3{5, 0, 0})
	a.SetRotation(mgl32.QuatRotate(mgl32.DegToRad(90), mgl32.Vec3{0, 1, 0}))
	b.SetPosition(mgl32.Vec3{3, 4, 5})

	before := b.WorldPosition()
	b.SetParent(a)
	require.Equal(t, a, b.Parent())
	after := b.WorldPosition()

	assert.InDelta(t, before.X(), after.X(), 1e-4)
	assert.InDelta(t, before.Y(), after.Y(), 1e-4)
	assert.InDelta(t, before.Z(), after.Z(), 1e-4)

	// reparenting to the root uses the world transform directly
	b.SetParent(&s.Node)
	after = b.WorldPosition()
	assert.InDelta(t, before.X(), after.X(), 1e-4)
	assert.InDelta(t, before.Y(), after.Y(), 1e-4)
	assert.InDelta(t, before.Z(), after.Z(), 1e-4)
}

func TestInsertChildOrderAndLookups(t *testing.T) {
	s := newTestScene()
	root := s.CreateChild("root", Replicated)
	a := root.CreateChild("a", Replicated)
	c := root.CreateChild("c", Replicated)
	b := NewNode("b")
	root.InsertChild(1, b)

	require.Equal(t, []*Node{a, b, c}, root.Children())
	assert.Equal(t, b, root.Child(1))
	assert.Nil(t, root.Child(3))

	deep := c.CreateChild("needle", Local)
	assert.Nil(t, root.ChildByName("needle", false))
	assert.Equal(t, deep, root.ChildByName("needle", true))
}

func TestEnabledPropagation(t *testing.T) {
	s := newTestScene()
	parent := s.CreateChild("p", Replicated)
	child := parent.CreateChild("c", Replicated)
	tracker := &trackerComponent{}
	child.AddComponent(tracker, 0, Replicated)

	parent.SetDeepEnabled(false)
	assert.False(t, parent.IsEnabled())
	assert.False(t, child.IsEnabled())
	assert.False(t, tracker.IsEnabledEffective())
	assert.Positive(t, tracker.enabledCalls)

	parent.ResetDeepEnabled()
	assert.True(t, parent.IsEnabled())
	assert.True(t, child.IsEnabled())

	// an explicitly disabled child stays disabled through the reset
	child.SetEnabled(false)
	parent.SetDeepEnabled(true)
	assert.True(t, child.IsEnabled())
	parent.ResetDeepEnabled()
	assert.False(t, child.IsEnabled())
}

func TestTags(t *testing.T) {
	s := newTestScene()
	a := s.CreateChild("a", Replicated)
	b := a.CreateChild("b", Replicated)

	a.AddTag("enemy")
	b.AddTags("enemy", "boss")
	b.AddTag("enemy") // duplicate
	assert.Equal(t, []string{"enemy", "boss"}, b.Tags())

	assert.ElementsMatch(t, []*Node{a, b}, s.NodesWithTag("enemy"))
	assert.Equal(t, []*Node{b}, s.NodesWithTag("boss"))
	assert.Equal(t, []*Node{b}, a.ChildrenWithTag("enemy", true))

	require.True(t, b.RemoveTag("enemy"))
	assert.False(t, b.RemoveTag("enemy"))
	assert.Equal(t, []*Node{a}, s.NodesWithTag("enemy"))

	// detaching a subtree scrubs the tag cache
	a.Remove()
	assert.Empty(t, s.NodesWithTag("enemy"))
	assert.Empty(t, s.NodesWithTag("boss"))
}

func TestUserVars(t *testing.T) {
	s := newTestScene()
	node := s.CreateChild("n", Replicated)
	key := variant.Hash("gold")

	assert.True(t, node.Var(key).IsEmpty())
	node.SetVar(key, variant.Int(99))
	assert.Equal(t, 99, node.Var(key).Int())
	node.DeleteVar(key)
	assert.True(t, node.Var(key).IsEmpty())
}

func TestCloneRewritesReferences(t *testing.T) {
	s := newTestScene()
	group := s.CreateChild("group", Replicated)
	target := group.CreateChild("target", Replicated)
	holder := group.CreateChild("holder", Replicated)

	partner := &trackerComponent{}
	target.AddComponent(partner, 0, Replicated)

	ref := &refComponent{}
	holder.AddComponent(ref, 0, Replicated)
	ref.targetNode = target.ID()
	ref.partnerComp = partner.ID()
	ref.linkedNodes = []uint32{target.ID(), holder.ID()}

	clone := group.Clone(Replicated)
	require.NotNil(t, clone)
	require.Equal(t, 2, clone.NumChildren())

	cloneTarget := clone.ChildByName("target", false)
	cloneHolder := clone.ChildByName("holder", false)
	require.NotNil(t, cloneTarget)
	require.NotNil(t, cloneHolder)
	assert.NotEqual(t, target.ID(), cloneTarget.ID())

	cloneRef, ok := cloneHolder.Component(refType).(*refComponent)
	require.True(t, ok)
	assert.Equal(t, cloneTarget.ID(), cloneRef.targetNode)
	assert.Equal(t, cloneTarget.Component(trackerType).ID(), cloneRef.partnerComp)
	assert.Equal(t, []uint32{cloneTarget.ID(), cloneHolder.ID()}, cloneRef.linkedNodes)
}

func TestCloneSkipsTemporary(t *testing.T) {
	s := newTestScene()
	group := s.CreateChild("group", Replicated)
	group.CreateChild("keep", Replicated)
	tmp := group.CreateChild("tmp", Replicated)
	tmp.SetTemporary(true)

	clone := group.Clone(Replicated)
	require.NotNil(t, clone)
	assert.Equal(t, 1, clone.NumChildren())
	assert.Nil(t, clone.ChildByName("tmp", false))
}

func TestComponentLifecycleCallbacks(t *testing.T) {
	s := newTestScene()
	node := s.CreateChild("n", Replicated)

	tracker := &trackerComponent{}
	node.AddComponent(tracker, 0, Replicated)
	require.Equal(t, []*Node{node}, tracker.nodeSets)
	require.Equal(t, []*Scene{s}, tracker.sceneSets)

	node.RemoveComponent(tracker)
	require.Len(t, tracker.nodeSets, 2)
	assert.Nil(t, tracker.nodeSets[1])
	require.Len(t, tracker.sceneSets, 2)
	assert.Nil(t, tracker.sceneSets[1])
	assert.Nil(t, tracker.Node())
	assert.True(t, expired(tracker))
}

func TestCreateComponentUnknownType(t *testing.T) {
	s := newTestScene()
	node := s.CreateChild("n", Replicated)
	assert.Nil(t, node.CreateComponent("NoSuchComponent", Replicated))
	assert.Zero(t, node.NumComponents())
}
