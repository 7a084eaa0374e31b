package scene

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenesync/scenesync/internal/core/events"
	"github.com/scenesync/scenesync/internal/core/replication"
	"github.com/scenesync/scenesync/internal/core/variant"
)

func TestIDPartition(t *testing.T) {
	s := newTestScene()
	require.Equal(t, FirstReplicatedID, s.ID(), "the root claims the first replicated ID")

	rep := s.CreateChild("rep", Replicated)
	loc := s.CreateChild("loc", Local)

	assert.True(t, IsReplicatedID(rep.ID()))
	assert.False(t, IsReplicatedID(loc.ID()))
	assert.GreaterOrEqual(t, loc.ID(), FirstLocalID)

	assert.Equal(t, rep, s.GetNode(rep.ID()))
	assert.Equal(t, loc, s.GetNode(loc.ID()))

	tracker := &trackerComponent{}
	loc.AddComponent(tracker, 0, Local)
	assert.False(t, IsReplicatedID(tracker.ID()))
	assert.Equal(t, Component(tracker), s.GetComponent(tracker.ID()))
}

func TestFreeIDCursorSkipsOccupied(t *testing.T) {
	s := newTestScene()
	// occupy the next two IDs the cursor would hand out
	a := NewNode("a")
	a.SetID(s.replicatedNodeID)
	s.AddChild(a)
	b := NewNode("b")
	b.SetID(s.replicatedNodeID + 1)
	s.AddChild(b)

	c := s.CreateChild("c", Replicated)
	assert.NotEqual(t, a.ID(), c.ID())
	assert.NotEqual(t, b.ID(), c.ID())
	assert.Equal(t, c, s.GetNode(c.ID()))
}

func TestDuplicateIDEvictsPrevious(t *testing.T) {
	s := newTestScene()
	first := NewNode("first")
	first.SetID(42)
	s.AddChild(first)
	require.Equal(t, first, s.GetNode(42))

	second := NewNode("second")
	second.SetID(42)
	s.AddChild(second)

	assert.Equal(t, second, s.GetNode(42), "last write wins")
	assert.Nil(t, first.Scene(), "the evicted node is unregistered")
}

func TestExplicitZeroIDAllocatesFromPool(t *testing.T) {
	s := newTestScene()
	n := NewNode("n")
	require.Zero(t, n.ID())
	s.AddChild(n)
	assert.NotZero(t, n.ID())
	assert.True(t, IsReplicatedID(n.ID()))
}

func TestSetIDRejectedInScene(t *testing.T) {
	s := newTestScene()
	n := s.CreateChild("n", Replicated)
	id := n.ID()
	n.SetID(id + 500)
	assert.Equal(t, id, n.ID())
}

func TestUpdatePhaseOrder(t *testing.T) {
	s := newTestScene()
	var order []string
	s.Bus().Subscribe(events.SceneUpdate, func(any) { order = append(order, "update") })
	s.Bus().Subscribe(events.AttributeAnimationUpdate, func(any) { order = append(order, "animation") })
	s.Bus().Subscribe(events.SceneSubsystemUpdate, func(any) { order = append(order, "subsystem") })
	s.Bus().Subscribe(events.ScenePostUpdate, func(any) { order = append(order, "post") })

	s.Update(0.016)
	assert.Equal(t, []string{"update", "animation", "subsystem", "post"}, order)
}

func TestUpdateTimeScaleAndElapsed(t *testing.T) {
	s := newTestScene()
	var step float32
	s.Bus().Subscribe(events.SceneUpdate, func(payload any) {
		step = payload.(UpdateEvent).TimeStep
	})

	s.SetTimeScale(2)
	s.SetTimeScale(-1) // rejected
	s.Update(0.5)
	assert.InDelta(t, 1.0, step, 1e-6)
	assert.InDelta(t, 1.0, s.ElapsedTime(), 1e-6)

	s.SetUpdateEnabled(false)
	s.Update(0.5)
	assert.InDelta(t, 1.0, s.ElapsedTime(), 1e-6, "disabled scenes do not advance")
}

func TestThreadedUpdateDefersDirtyNotification(t *testing.T) {
	s := newTestScene()
	node := s.CreateChild("n", Replicated)
	st, ok := node.CreateComponent("SmoothedTransform", Replicated).(*SmoothedTransform)
	require.True(t, ok)
	node.AddListener(st)
	node.WorldTransform()

	s.BeginThreadedUpdate()
	node.SetPosition(mgl32.Vec3{1, 0, 0})
	s.delayedDirtyMu.Lock()
	queued := len(s.delayedDirty)
	s.delayedDirtyMu.Unlock()
	assert.Equal(t, 1, queued)

	// queuing twice keeps one entry
	node.WorldTransform()
	node.MarkDirty()
	s.delayedDirtyMu.Lock()
	queued = len(s.delayedDirty)
	s.delayedDirtyMu.Unlock()
	assert.Equal(t, 1, queued)

	s.EndThreadedUpdate()
	assert.False(t, s.IsThreadedUpdate())
	s.delayedDirtyMu.Lock()
	queued = len(s.delayedDirty)
	s.delayedDirtyMu.Unlock()
	assert.Zero(t, queued)
}

func TestPrepareNetworkUpdate(t *testing.T) {
	s := newTestScene()
	node := s.CreateChild("n", Replicated)
	tracker := &trackerComponent{}
	node.AddComponent(tracker, 0, Replicated)

	deltas, removals := s.PrepareNetworkUpdate()
	assert.NotEmpty(t, deltas, "first pass ships full state")
	assert.Empty(t, removals.Nodes)

	deltas, _ = s.PrepareNetworkUpdate()
	assert.Empty(t, deltas, "nothing changed")

	node.SetPosition(mgl32.Vec3{9, 9, 9})
	tracker.health = 50
	tracker.MarkNetworkUpdate()
	deltas, _ = s.PrepareNetworkUpdate()
	require.Len(t, deltas, 2)

	var nodeDelta, compDelta *replication.Delta
	for i := range deltas {
		switch deltas[i].Kind {
		case replication.KindNode:
			nodeDelta = &deltas[i]
		case replication.KindComponent:
			compDelta = &deltas[i]
		}
	}
	require.NotNil(t, nodeDelta)
	require.NotNil(t, compDelta)
	assert.Equal(t, node.ID(), nodeDelta.ID)
	require.Len(t, nodeDelta.Changes, 1)
	assert.True(t, variant.Vec3(mgl32.Vec3{9, 9, 9}).Equals(nodeDelta.Changes[0].Value))
	require.Len(t, compDelta.Changes, 1)
	assert.True(t, variant.Int(50).Equals(compDelta.Changes[0].Value))
}

func TestLocalNodesAreNotReplicated(t *testing.T) {
	s := newTestScene()
	s.PrepareNetworkUpdate() // drain the root's initial state

	loc := s.CreateChild("loc", Local)
	loc.SetPosition(mgl32.Vec3{1, 2, 3})
	deltas, _ := s.PrepareNetworkUpdate()
	assert.Empty(t, deltas)

	loc.Remove()
	_, removals := s.PrepareNetworkUpdate()
	assert.Empty(t, removals.Nodes)
}

func TestRemovalTracking(t *testing.T) {
	s := newTestScene()
	node := s.CreateChild("n", Replicated)
	tracker := &trackerComponent{}
	node.AddComponent(tracker, 0, Replicated)
	nodeID, compID := node.ID(), tracker.ID()
	s.PrepareNetworkUpdate()

	node.Remove()
	_, removals := s.PrepareNetworkUpdate()
	assert.Equal(t, []uint32{compID}, removals.Components)
	assert.Equal(t, []uint32{nodeID}, removals.Nodes)
}

func TestVarDiffReplication(t *testing.T) {
	s := newTestScene()
	node := s.CreateChild("n", Replicated)
	s.PrepareNetworkUpdate()

	gold := variant.Hash("gold")
	node.SetVar(gold, variant.Int(10))
	deltas, _ := s.PrepareNetworkUpdate()
	require.Len(t, deltas, 1)
	require.Len(t, deltas[0].VarChanges, 1)
	assert.Equal(t, gold, deltas[0].VarChanges[0].Key)

	node.DeleteVar(gold)
	deltas, _ = s.PrepareNetworkUpdate()
	require.Len(t, deltas, 1)
	assert.Equal(t, []variant.StringHash{gold}, deltas[0].VarRemovals)
}

func TestClear(t *testing.T) {
	s := newTestScene()
	n := s.CreateChild("n", Replicated)
	n.AddTag("tag")
	n.CreateChild("deep", Local)
	firstID := n.ID()

	s.Clear()
	assert.Equal(t, 1, s.NumNodes(), "only the root remains")
	assert.Empty(t, s.NodesWithTag("tag"))
	assert.Zero(t, s.NumChildren())

	again := s.CreateChild("again", Replicated)
	assert.Equal(t, firstID, again.ID(), "ID cursors reset")
}

func TestInstantiate(t *testing.T) {
	s := newTestScene()
	template := s.CreateChild("template", Replicated)
	template.CreateChild("limb", Replicated)

	inst := s.Instantiate(template, mgl32.Vec3{7, 0, 0}, mgl32.QuatIdent(), Replicated)
	require.NotNil(t, inst)
	assert.Equal(t, &s.Node, inst.Parent())
	assert.Equal(t, float32(7), inst.Position().X())
	assert.Equal(t, 1, inst.NumChildren())
}

func TestAttributeAnimation(t *testing.T) {
	s := newTestScene()
	node := s.CreateChild("n", Replicated)

	anim := NewValueAnimation()
	anim.AddKeyframe(0, variant.Vec3(mgl32.Vec3{0, 0, 0}))
	anim.AddKeyframe(1, variant.Vec3(mgl32.Vec3{10, 0, 0}))
	require.NoError(t, s.AnimateNodeAttribute(node, "Position", anim, WrapOnce, 1))

	s.Update(0.5)
	assert.InDelta(t, 5, node.Position().X(), 1e-4)

	s.Update(1.0) // past the end; WrapOnce clamps and removes
	assert.InDelta(t, 10, node.Position().X(), 1e-4)
	assert.Empty(t, s.animations)
}

func TestAttributeAnimationLoop(t *testing.T) {
	s := newTestScene()
	node := s.CreateChild("n", Replicated)
	tracker := &trackerComponent{}
	node.AddComponent(tracker, 0, Replicated)

	anim := NewValueAnimation()
	anim.AddKeyframe(0, variant.Int(0))
	anim.AddKeyframe(2, variant.Int(20))
	require.NoError(t, s.AnimateComponentAttribute(tracker, "Health", anim, WrapLoop, 1))

	s.Update(1.5)
	assert.Equal(t, 15, tracker.health)

	s.Update(1.0) // wraps past the end back to t=0.5
	assert.Equal(t, 5, tracker.health)

	assert.Error(t, s.AnimateComponentAttribute(nil, "Health", anim, WrapLoop, 1))
	assert.Error(t, s.AnimateNodeAttribute(node, "Scale", nil, WrapLoop, 1))
}

func TestAnimateUnknownAttribute(t *testing.T) {
	s := newTestScene()
	node := s.CreateChild("n", Replicated)
	anim := NewValueAnimation()
	anim.AddKeyframe(0, variant.Float(1))
	assert.Error(t, s.AnimateNodeAttribute(node, "No Such Attr", anim, WrapLoop, 1))
}

func TestSmoothedTransformEases(t *testing.T) {
	s := newTestScene()
	s.SetSnapThreshold(1000)
	node := s.CreateChild("n", Replicated)
	st := node.CreateComponent("SmoothedTransform", Replicated).(*SmoothedTransform)

	st.SetTargetPosition(mgl32.Vec3{10, 0, 0})
	require.True(t, st.IsInProgress())

	s.Update(0.016)
	first := node.Position().X()
	assert.Greater(t, first, float32(0))
	assert.Less(t, first, float32(10))

	for i := 0; i < 400 && st.IsInProgress(); i++ {
		s.Update(0.016)
	}
	assert.InDelta(t, 10, node.Position().X(), 1e-3)
	assert.False(t, st.IsInProgress())
}

func TestSmoothedTransformSnapsPastThreshold(t *testing.T) {
	s := newTestScene()
	s.SetSnapThreshold(1)
	node := s.CreateChild("n", Replicated)
	st := node.CreateComponent("SmoothedTransform", Replicated).(*SmoothedTransform)

	st.SetTargetPosition(mgl32.Vec3{100, 0, 0})
	s.Update(0.016)
	assert.Equal(t, float32(100), node.Position().X(), "distances past the snap threshold teleport")
	assert.False(t, st.IsInProgress())
}
