package scene

import (
	"math"
	"sort"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/scenesync/scenesync/internal/core/attribute"
	"github.com/scenesync/scenesync/internal/core/events"
	"github.com/scenesync/scenesync/internal/core/observability/log"
	"github.com/scenesync/scenesync/internal/core/replication"
	"github.com/scenesync/scenesync/internal/core/resource"
)

type logSink = log.Log

func stringFields(args []string) []log.Field {
	fields := make([]log.Field, len(args))
	for i, a := range args {
		fields[i] = log.String("detail", a)
	}
	return fields
}

const (
	defaultSmoothingConstant float32 = 50
	defaultSnapThreshold     float32 = 5
	defaultAsyncLoadingMs            = 5
)

// Scene is the root node of a scene graph plus the registries shared by
// everything in it: the ID-to-object maps split by replicated and local ID
// ranges, the tag reverse index, the per-frame replication dirty sets and
// the async load state. All mutation happens on one logic goroutine; the
// only exception is the delayed-dirty queue used during threaded update.
type Scene struct {
	Node

	logger log.Log
	bus    *events.Bus

	replicatedNodes      map[uint32]*Node
	localNodes           map[uint32]*Node
	replicatedComponents map[uint32]Component
	localComponents      map[uint32]Component

	nodeTagCache map[string][]*Node

	replicatedNodeID      uint32
	localNodeID           uint32
	replicatedComponentID uint32
	localComponentID      uint32

	networkDirtyNodes      map[uint32]struct{}
	networkDirtyComponents map[uint32]struct{}
	pendingRemovals        replication.Removals

	smoothed []*SmoothedTransform

	animations map[animationKey]*attributeAnimationInfo

	threadedUpdate bool
	delayedDirty   []Component
	delayedDirtyMu sync.Mutex

	asyncLoading   bool
	async          *asyncProgress
	asyncLoadingMs int

	resources resource.Cache

	updateEnabled     bool
	timeScale         float32
	elapsedTime       float32
	smoothingConstant float32
	snapThreshold     float32
}

// NewScene creates an empty scene. The root node occupies the first
// replicated node ID.
func NewScene(logger log.Log) *Scene {
	if logger == nil {
		logger = log.Provide()
	}
	s := &Scene{
		logger:                 logger,
		bus:                    events.NewBus(),
		replicatedNodes:        make(map[uint32]*Node),
		localNodes:             make(map[uint32]*Node),
		replicatedComponents:   make(map[uint32]Component),
		localComponents:        make(map[uint32]Component),
		nodeTagCache:           make(map[string][]*Node),
		networkDirtyNodes:      make(map[uint32]struct{}),
		networkDirtyComponents: make(map[uint32]struct{}),
		animations:             make(map[animationKey]*attributeAnimationInfo),
		replicatedNodeID:       FirstReplicatedID,
		localNodeID:            FirstLocalID,
		replicatedComponentID:  FirstReplicatedID,
		localComponentID:       FirstLocalID,
		asyncLoadingMs:         defaultAsyncLoadingMs,
		updateEnabled:          true,
		timeScale:              1,
		smoothingConstant:      defaultSmoothingConstant,
		snapThreshold:          defaultSnapThreshold,
	}
	s.Node = *NewNode("")
	s.Node.scene = s
	s.Node.id = s.freeNodeID(Replicated)
	s.replicatedNodes[s.Node.id] = &s.Node
	return s
}

// Bus returns the scene's event bus.
func (s *Scene) Bus() *events.Bus { return s.bus }

// Logger returns the scene's logger.
func (s *Scene) Logger() log.Log { return s.logger }

// SetResourceCache wires the cache used for async resource preloading.
func (s *Scene) SetResourceCache(cache resource.Cache) { s.resources = cache }

// --- Per-frame update ---

// Update advances the scene by timeStep seconds. The phase order is fixed:
// async load continuation, scene update, attribute animation, subsystem
// update, transform smoothing, post update. Consumers that need final
// transforms must subscribe after the subsystem phase.
func (s *Scene) Update(timeStep float32) {
	if s.asyncLoading {
		s.updateAsyncLoading()
		// Resource-only preloading may run alongside normal updates;
		// structural loading may not.
		if s.asyncLoading && s.async != nil && s.async.mode != LoadResourcesOnly {
			return
		}
	}
	if !s.updateEnabled {
		return
	}

	timeStep *= s.timeScale
	ev := UpdateEvent{Scene: s, TimeStep: timeStep}

	s.bus.Publish(events.SceneUpdate, ev)

	s.bus.Publish(events.AttributeAnimationUpdate, ev)
	s.advanceAnimations(timeStep)

	s.bus.Publish(events.SceneSubsystemUpdate, ev)

	s.updateSmoothing(timeStep)

	s.bus.Publish(events.ScenePostUpdate, ev)

	s.elapsedTime += timeStep
}

func (s *Scene) updateSmoothing(timeStep float32) {
	if len(s.smoothed) == 0 {
		return
	}
	constant := 1 - clamp01(float32(math.Pow(2, float64(-timeStep*s.smoothingConstant))))
	squaredSnap := s.snapThreshold * s.snapThreshold
	for _, st := range s.smoothed {
		if !expired(Component(st)) && st.IsEnabledEffective() {
			st.updateSmoothing(constant, squaredSnap)
		}
	}
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (s *Scene) IsUpdateEnabled() bool { return s.updateEnabled }

func (s *Scene) SetUpdateEnabled(enable bool) { s.updateEnabled = enable }

func (s *Scene) TimeScale() float32 { return s.timeScale }

// SetTimeScale adjusts simulation speed; non-positive values are rejected.
func (s *Scene) SetTimeScale(scale float32) {
	if scale <= 0 {
		return
	}
	s.timeScale = scale
}

func (s *Scene) ElapsedTime() float32 { return s.elapsedTime }

func (s *Scene) SetElapsedTime(t float32) { s.elapsedTime = t }

func (s *Scene) SmoothingConstant() float32 { return s.smoothingConstant }

func (s *Scene) SetSmoothingConstant(constant float32) { s.smoothingConstant = constant }

func (s *Scene) SnapThreshold() float32 { return s.snapThreshold }

func (s *Scene) SetSnapThreshold(threshold float32) { s.snapThreshold = threshold }

// AsyncLoadingMs returns the per-frame async loading budget.
func (s *Scene) AsyncLoadingMs() int { return s.asyncLoadingMs }

// SetAsyncLoadingMs sets how many milliseconds of each Update call the
// async loader may spend instantiating nodes.
func (s *Scene) SetAsyncLoadingMs(ms int) {
	if ms < 1 {
		ms = 1
	}
	s.asyncLoadingMs = ms
}

// --- Threaded update ---

// BeginThreadedUpdate marks the start of a phase during which components
// may be updated from worker goroutines. While active, dirty-notification
// side effects are deferred through DelayedMarkedDirty instead of applied
// in place.
func (s *Scene) BeginThreadedUpdate() { s.threadedUpdate = true }

// EndThreadedUpdate flushes the deferred dirty notifications on the
// calling (logic) goroutine.
func (s *Scene) EndThreadedUpdate() {
	if !s.threadedUpdate {
		return
	}
	s.threadedUpdate = false

	s.delayedDirtyMu.Lock()
	queue := s.delayedDirty
	s.delayedDirty = nil
	s.delayedDirtyMu.Unlock()

	for _, c := range queue {
		if !expired(c) {
			c.OnMarkedDirty(c.Node())
		}
	}
}

// IsThreadedUpdate reports whether a threaded update phase is active.
func (s *Scene) IsThreadedUpdate() bool { return s.threadedUpdate }

// DelayedMarkedDirty queues a component for dirty notification after the
// threaded update ends. Safe to call from worker goroutines.
func (s *Scene) DelayedMarkedDirty(c Component) {
	if c == nil {
		return
	}
	s.delayedDirtyMu.Lock()
	defer s.delayedDirtyMu.Unlock()
	for _, existing := range s.delayedDirty {
		if existing == c {
			return
		}
	}
	s.delayedDirty = append(s.delayedDirty, c)
}

// --- ID allocation ---

// freeNodeID returns the next unoccupied node ID in the pool. The cursor
// wraps within its range; if it comes back around to where it started the
// pool is saturated and 0 is returned with an error logged, rather than
// spinning forever.
func (s *Scene) freeNodeID(mode CreateMode) uint32 {
	if mode == Replicated {
		id, ok := nextFreeID(&s.replicatedNodeID, FirstReplicatedID, LastReplicatedID, func(id uint32) bool {
			_, used := s.replicatedNodes[id]
			return used
		})
		if !ok {
			s.logger.Error("replicated node ID pool is exhausted")
		}
		return id
	}
	id, ok := nextFreeID(&s.localNodeID, FirstLocalID, LastLocalID, func(id uint32) bool {
		_, used := s.localNodes[id]
		return used
	})
	if !ok {
		s.logger.Error("local node ID pool is exhausted")
	}
	return id
}

// freeComponentID is the component-pool counterpart of freeNodeID.
func (s *Scene) freeComponentID(mode CreateMode) uint32 {
	if mode == Replicated {
		id, ok := nextFreeID(&s.replicatedComponentID, FirstReplicatedID, LastReplicatedID, func(id uint32) bool {
			_, used := s.replicatedComponents[id]
			return used
		})
		if !ok {
			s.logger.Error("replicated component ID pool is exhausted")
		}
		return id
	}
	id, ok := nextFreeID(&s.localComponentID, FirstLocalID, LastLocalID, func(id uint32) bool {
		_, used := s.localComponents[id]
		return used
	})
	if !ok {
		s.logger.Error("local component ID pool is exhausted")
	}
	return id
}

func nextFreeID(cursor *uint32, first, last uint32, used func(uint32) bool) (uint32, bool) {
	start := *cursor
	for {
		id := *cursor
		if *cursor == last {
			*cursor = first
		} else {
			*cursor++
		}
		if !used(id) {
			return id, true
		}
		if *cursor == start {
			return 0, false
		}
	}
}

// --- Node and component registration ---

// nodeAdded registers a node and, recursively, its pre-existing children
// and components, so an already built subtree can be attached in one call.
// A colliding ID evicts the previous occupant: last write wins.
func (s *Scene) nodeAdded(node *Node, mode CreateMode) {
	if node == nil || node.scene == s {
		return
	}
	// Remove from a previous scene first; a node lives in one scene only.
	if node.scene != nil {
		node.scene.nodeRemoved(node)
	}
	node.scene = s

	if node.id == 0 {
		node.id = s.freeNodeID(mode)
	}

	registry := s.localNodes
	if IsReplicatedID(node.id) {
		registry = s.replicatedNodes
	}
	if existing, ok := registry[node.id]; ok && existing != node {
		s.logger.Warn("overwriting node with duplicate ID", log.Uint32("id", node.id))
		s.nodeRemoved(existing)
	}
	registry[node.id] = node
	if IsReplicatedID(node.id) {
		node.netState.Reset()
		s.markNodeNetworkDirty(node)
	}

	for _, tag := range node.tags {
		s.nodeTagAdded(node, tag)
	}

	for _, c := range node.components {
		s.componentAdded(c, mode)
		c.OnSceneSet(s)
	}
	for _, child := range node.children {
		s.nodeAdded(child, mode)
	}
}

// nodeRemoved unregisters a node and its subtree from the ID maps and the
// tag cache, and resets the scene back reference.
func (s *Scene) nodeRemoved(node *Node) {
	if node == nil || node.scene != s {
		return
	}
	if IsReplicatedID(node.id) && node.id != 0 {
		s.pendingRemovals.Nodes = append(s.pendingRemovals.Nodes, node.id)
		delete(s.replicatedNodes, node.id)
		delete(s.networkDirtyNodes, node.id)
	} else {
		delete(s.localNodes, node.id)
	}
	for _, tag := range node.tags {
		s.nodeTagRemoved(node, tag)
	}
	node.scene = nil

	for _, c := range node.components {
		s.componentRemoved(c)
		c.OnSceneSet(nil)
	}
	for _, child := range node.children {
		s.nodeRemoved(child)
	}
}

// componentAdded registers a component into the ID maps, allocating an ID
// when it has none. Duplicate IDs evict the previous occupant.
func (s *Scene) componentAdded(c Component, mode CreateMode) {
	if c == nil {
		return
	}
	b := c.base()
	if b.id == 0 {
		b.id = s.freeComponentID(mode)
	}
	registry := s.localComponents
	if IsReplicatedID(b.id) {
		registry = s.replicatedComponents
	}
	if existing, ok := registry[b.id]; ok && existing != c {
		s.logger.Warn("overwriting component with duplicate ID", log.Uint32("id", b.id))
		s.componentRemoved(existing)
		if node := existing.base().node; node != nil {
			node.RemoveComponent(existing)
		}
	}
	registry[b.id] = c
	if IsReplicatedID(b.id) {
		b.netState.Reset()
		s.markComponentNetworkDirty(c)
	}
}

func (s *Scene) componentRemoved(c Component) {
	if c == nil {
		return
	}
	id := c.base().id
	if IsReplicatedID(id) && id != 0 {
		s.pendingRemovals.Components = append(s.pendingRemovals.Components, id)
		delete(s.replicatedComponents, id)
		delete(s.networkDirtyComponents, id)
	} else {
		delete(s.localComponents, id)
	}
}

// GetNode looks a node up by ID in the registry its ID range selects.
func (s *Scene) GetNode(id uint32) *Node {
	if IsReplicatedID(id) {
		return s.replicatedNodes[id]
	}
	return s.localNodes[id]
}

// GetComponent looks a component up by ID.
func (s *Scene) GetComponent(id uint32) Component {
	if IsReplicatedID(id) {
		return s.replicatedComponents[id]
	}
	return s.localComponents[id]
}

// NumNodes returns the total registered node count, root included.
func (s *Scene) NumNodes() int { return len(s.replicatedNodes) + len(s.localNodes) }

// --- Tag cache ---

// NodesWithTag returns the nodes carrying the tag anywhere in the scene.
func (s *Scene) NodesWithTag(tag string) []*Node {
	return append([]*Node(nil), s.nodeTagCache[tag]...)
}

func (s *Scene) nodeTagAdded(node *Node, tag string) {
	s.nodeTagCache[tag] = append(s.nodeTagCache[tag], node)
}

func (s *Scene) nodeTagRemoved(node *Node, tag string) {
	nodes := s.nodeTagCache[tag]
	for i, n := range nodes {
		if n == node {
			nodes = append(nodes[:i], nodes[i+1:]...)
			if len(nodes) == 0 {
				delete(s.nodeTagCache, tag)
			} else {
				s.nodeTagCache[tag] = nodes
			}
			return
		}
	}
	// Reaching here means the cache and the node's tag list disagree,
	// which is a bookkeeping bug, not a recoverable condition.
	s.logger.Error("tag cache inconsistency", log.String("tag", tag), log.Uint32("node", node.id))
}

// --- Replication dirty tracking ---

func (s *Scene) markNodeNetworkDirty(node *Node) {
	s.networkDirtyNodes[node.id] = struct{}{}
}

func (s *Scene) markComponentNetworkDirty(c Component) {
	id := c.base().id
	if id != 0 && IsReplicatedID(id) {
		s.networkDirtyComponents[id] = struct{}{}
	}
}

// PrepareNetworkUpdate diffs every object flagged since the last call
// against its last-sent state and returns the resulting deltas plus the
// removals of replicated objects. Dirty sets are cleared.
func (s *Scene) PrepareNetworkUpdate() ([]replication.Delta, replication.Removals) {
	var deltas []replication.Delta

	for _, id := range sortedIDs(s.networkDirtyNodes) {
		node, ok := s.replicatedNodes[id]
		if !ok {
			continue
		}
		st := node.NetworkState()
		changes := st.DiffAttributes(node, nodeAttributes())
		varChanges, varRemovals := st.DiffVars(node.vars)
		if len(changes) == 0 && len(varChanges) == 0 && len(varRemovals) == 0 {
			continue
		}
		deltas = append(deltas, replication.Delta{
			Kind:        replication.KindNode,
			ID:          id,
			TypeHash:    nodeTypeHash,
			Changes:     changes,
			VarChanges:  varChanges,
			VarRemovals: varRemovals,
		})
	}
	clear(s.networkDirtyNodes)

	for _, id := range sortedIDs(s.networkDirtyComponents) {
		c, ok := s.replicatedComponents[id]
		if !ok {
			continue
		}
		changes := c.base().netState.DiffAttributes(c, attribute.Infos(c.TypeHash()))
		if len(changes) == 0 {
			continue
		}
		deltas = append(deltas, replication.Delta{
			Kind:     replication.KindComponent,
			ID:       id,
			TypeHash: c.TypeHash(),
			Changes:  changes,
		})
	}
	clear(s.networkDirtyComponents)

	removals := s.pendingRemovals
	s.pendingRemovals = replication.Removals{}
	return deltas, removals
}

func sortedIDs(set map[uint32]struct{}) []uint32 {
	ids := make([]uint32, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// --- Clearing ---

// Clear removes everything from the scene and resets the ID cursors.
// An in-progress async load is cancelled first.
func (s *Scene) Clear() {
	s.StopAsyncLoading()
	s.RemoveAllChildren()
	s.RemoveAllComponents()
	s.replicatedNodeID = FirstReplicatedID
	s.localNodeID = FirstLocalID
	s.replicatedComponentID = FirstReplicatedID
	s.localComponentID = FirstLocalID
	s.pendingRemovals = replication.Removals{}
	clear(s.networkDirtyNodes)
	clear(s.networkDirtyComponents)
	clear(s.animations)
	s.vars = nil
	s.elapsedTime = 0
}

// Instantiate clones a node subtree into this scene under the root at the
// given pose, rewriting ID references through a resolver.
func (s *Scene) Instantiate(source *Node, position mgl32.Vec3, rotation mgl32.Quat, mode CreateMode) *Node {
	if source == nil {
		return nil
	}
	clone := source.CloneInto(&s.Node, mode)
	if clone != nil {
		clone.SetPosition(position)
		clone.SetRotation(rotation)
	}
	return clone
}
