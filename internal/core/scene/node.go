// Package scene implements the hierarchical scene graph: nodes with lazily
// cached world transforms, attached components, per-scene ID registries,
// serialization in three formats, cooperative async loading and incremental
// replication tracking.
package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/scenesync/scenesync/internal/core/attribute"
	"github.com/scenesync/scenesync/internal/core/events"
	"github.com/scenesync/scenesync/internal/core/replication"
	"github.com/scenesync/scenesync/internal/core/variant"
)

// ID ranges. A node or component ID below FirstLocalID is replicated
// (network-visible); everything from FirstLocalID up is local-only. The
// numeric value alone decides which registry an object lives in, and that
// never changes after assignment.
const (
	FirstReplicatedID uint32 = 0x1
	LastReplicatedID  uint32 = 0xffffff
	FirstLocalID      uint32 = 0x01000000
	LastLocalID       uint32 = 0xffffffff
)

// IsReplicatedID reports whether an ID belongs to the replicated range.
func IsReplicatedID(id uint32) bool { return id < FirstLocalID }

// CreateMode selects the ID pool for new nodes and components.
type CreateMode uint8

const (
	Replicated CreateMode = iota
	Local
)

// scaleEpsilon is the smallest permitted scale component. Zero scale would
// make the world matrix singular and break decomposition.
const scaleEpsilon float32 = 1e-6

// Node is one entity in the scene graph. It owns its children and
// components; parent and scene are non-owning back references.
type Node struct {
	id       uint32
	name     string
	nameHash variant.StringHash

	parent *Node
	scene  *Scene

	children   []*Node
	components []Component
	listeners  []Component
	tags       []string
	vars       variant.Map

	position mgl32.Vec3
	rotation mgl32.Quat
	scale    mgl32.Vec3

	worldTransform mgl32.Mat4
	worldRotation  mgl32.Quat
	dirty          bool

	enabled     bool
	enabledPrev bool
	temporary   bool

	netState replication.State
}

var nodeTypeHash = variant.Hash("Node")

// NewNode creates a detached node with identity transform and no ID. The
// node receives a real ID when it is first attached into a scene.
func NewNode(name string) *Node {
	n := &Node{
		rotation:       mgl32.QuatIdent(),
		scale:          mgl32.Vec3{1, 1, 1},
		worldTransform: mgl32.Ident4(),
		worldRotation:  mgl32.QuatIdent(),
		enabled:        true,
		enabledPrev:    true,
	}
	n.SetName(name)
	return n
}

func (n *Node) TypeName() string { return "Node" }

func (n *Node) TypeHash() variant.StringHash { return nodeTypeHash }

func (n *Node) ID() uint32 { return n.id }

// SetID assigns an explicit ID. Only valid before the node is attached to
// a scene; afterwards the ID is immutable.
func (n *Node) SetID(id uint32) {
	if n.scene != nil {
		n.logWarn("ID of a scene node can not be changed")
		return
	}
	n.id = id
}

func (n *Node) Name() string { return n.name }

func (n *Node) NameHash() variant.StringHash { return n.nameHash }

func (n *Node) SetName(name string) {
	if name == n.name {
		return
	}
	n.name = name
	n.nameHash = variant.Hash(name)
	n.MarkNetworkUpdate()
}

func (n *Node) Scene() *Scene { return n.scene }

func (n *Node) Parent() *Node { return n.parent }

// IsTemporary reports whether the node is skipped by scene saving.
func (n *Node) IsTemporary() bool { return n.temporary }

func (n *Node) SetTemporary(temporary bool) { n.temporary = temporary }

// isSceneRoot reports whether this node is a Scene's own root node. The
// root contributes an implicit identity transform to its children.
func (n *Node) isSceneRoot() bool {
	return n.scene != nil && &n.scene.Node == n
}

// --- Transform ---

func (n *Node) Position() mgl32.Vec3 { return n.position }

func (n *Node) Rotation() mgl32.Quat { return n.rotation }

func (n *Node) Scale() mgl32.Vec3 { return n.scale }

func (n *Node) SetPosition(position mgl32.Vec3) {
	n.position = position
	n.MarkDirty()
	n.MarkNetworkUpdate()
}

func (n *Node) SetRotation(rotation mgl32.Quat) {
	n.rotation = rotation
	n.MarkDirty()
	n.MarkNetworkUpdate()
}

// SetScale clamps each component away from zero before storing.
func (n *Node) SetScale(scale mgl32.Vec3) {
	n.scale = clampScale(scale)
	n.MarkDirty()
	n.MarkNetworkUpdate()
}

// SetUniformScale sets the same scale on all three axes.
func (n *Node) SetUniformScale(scale float32) {
	n.SetScale(mgl32.Vec3{scale, scale, scale})
}

// SetTransform sets position, rotation and scale in one dirtying pass.
func (n *Node) SetTransform(position mgl32.Vec3, rotation mgl32.Quat, scale mgl32.Vec3) {
	n.position = position
	n.rotation = rotation
	n.scale = clampScale(scale)
	n.MarkDirty()
	n.MarkNetworkUpdate()
}

// clampScale pushes near-zero components to epsilon, keeping their sign so
// mirror scales survive. Exactly zero becomes positive epsilon.
func clampScale(scale mgl32.Vec3) mgl32.Vec3 {
	for i := 0; i < 3; i++ {
		switch {
		case scale[i] >= 0 && scale[i] < scaleEpsilon:
			scale[i] = scaleEpsilon
		case scale[i] < 0 && scale[i] > -scaleEpsilon:
			scale[i] = -scaleEpsilon
		}
	}
	return scale
}

// Translate moves the node in its own rotated frame.
func (n *Node) Translate(delta mgl32.Vec3) {
	n.SetPosition(n.position.Add(n.rotation.Rotate(delta)))
}

// Rotate applies an additional local-space rotation.
func (n *Node) Rotate(delta mgl32.Quat) {
	n.SetRotation(n.rotation.Mul(delta).Normalize())
}

// LocalTransform composes the node's local TRS matrix.
func (n *Node) LocalTransform() mgl32.Mat4 {
	return mgl32.Translate3D(n.position.X(), n.position.Y(), n.position.Z()).
		Mul4(n.rotation.Mat4()).
		Mul4(mgl32.Scale3D(n.scale.X(), n.scale.Y(), n.scale.Z()))
}

// IsDirty reports whether the cached world transform is stale.
func (n *Node) IsDirty() bool { return n.dirty }

// MarkDirty invalidates the cached world transform of the node and its
// whole subtree and notifies transform listeners. If the node is already
// dirty its subtree is guaranteed dirty too, so the walk stops here; that
// keeps repeated dirtying bounded by the frontier of newly dirtied nodes.
func (n *Node) MarkDirty() {
	if n.dirty {
		return
	}
	n.dirty = true

	// Notify listeners, compacting expired entries by swapping with the
	// last unvisited slot so compaction stays linear.
	i := 0
	for i < len(n.listeners) {
		c := n.listeners[i]
		if !expired(c) {
			c.OnMarkedDirty(n)
			i++
			continue
		}
		last := len(n.listeners) - 1
		n.listeners[i] = n.listeners[last]
		n.listeners[last] = nil
		n.listeners = n.listeners[:last]
	}

	for _, child := range n.children {
		child.MarkDirty()
	}
}

// updateWorldTransform recomputes the cached world transform. Ancestors
// are recomputed first, so a clean node always has a clean parent.
func (n *Node) updateWorldTransform() {
	local := n.LocalTransform()
	if n.parent == nil || n.parent.isSceneRoot() {
		n.worldTransform = local
		n.worldRotation = n.rotation
	} else {
		n.worldTransform = n.parent.WorldTransform().Mul4(local)
		n.worldRotation = n.parent.WorldRotation().Mul(n.rotation)
	}
	n.dirty = false
}

// WorldTransform returns the node's world matrix, recomputing it if dirty.
func (n *Node) WorldTransform() mgl32.Mat4 {
	if n.dirty {
		n.updateWorldTransform()
	}
	return n.worldTransform
}

// WorldRotation returns the node's world-space rotation.
func (n *Node) WorldRotation() mgl32.Quat {
	if n.dirty {
		n.updateWorldTransform()
	}
	return n.worldRotation
}

// WorldPosition returns the node's world-space position.
func (n *Node) WorldPosition() mgl32.Vec3 {
	m := n.WorldTransform()
	return m.Col(3).Vec3()
}

// WorldScale extracts the world-space scale from the cached matrix.
func (n *Node) WorldScale() mgl32.Vec3 {
	m := n.WorldTransform()
	return mgl32.Vec3{
		m.Col(0).Vec3().Len(),
		m.Col(1).Vec3().Len(),
		m.Col(2).Vec3().Len(),
	}
}

// SetWorldPosition positions the node in world space by converting into
// the parent's local frame.
func (n *Node) SetWorldPosition(position mgl32.Vec3) {
	if n.parent == nil || n.parent.isSceneRoot() {
		n.SetPosition(position)
		return
	}
	inv := n.parent.WorldTransform().Inv()
	n.SetPosition(mgl32.TransformCoordinate(position, inv))
}

// SetWorldRotation orients the node in world space.
func (n *Node) SetWorldRotation(rotation mgl32.Quat) {
	if n.parent == nil || n.parent.isSceneRoot() {
		n.SetRotation(rotation)
		return
	}
	n.SetRotation(n.parent.WorldRotation().Inverse().Mul(rotation).Normalize())
}

// --- Hierarchy ---

// Children returns a copy of the child list.
func (n *Node) Children() []*Node {
	return append([]*Node(nil), n.children...)
}

func (n *Node) NumChildren() int { return len(n.children) }

// ChildrenRecursive appends the whole subtree below the node, depth first.
func (n *Node) ChildrenRecursive() []*Node {
	var out []*Node
	for _, child := range n.children {
		out = append(out, child)
		out = append(out, child.ChildrenRecursive()...)
	}
	return out
}

// Child returns the direct child at index, or nil when out of range.
func (n *Node) Child(index int) *Node {
	if index < 0 || index >= len(n.children) {
		return nil
	}
	return n.children[index]
}

// ChildByName finds a child by name, optionally searching the whole
// subtree depth first.
func (n *Node) ChildByName(name string, recursive bool) *Node {
	hash := variant.Hash(name)
	for _, child := range n.children {
		if child.nameHash == hash && child.name == name {
			return child
		}
	}
	if recursive {
		for _, child := range n.children {
			if found := child.ChildByName(name, true); found != nil {
				return found
			}
		}
	}
	return nil
}

// CreateChild creates a named child node, assigns it an ID from the given
// pool if the node is in a scene, and attaches it.
func (n *Node) CreateChild(name string, mode CreateMode) *Node {
	child := NewNode(name)
	if n.scene != nil {
		child.id = n.scene.freeNodeID(mode)
	}
	n.AddChild(child)
	return child
}

// AddChild appends a child. Invalid input (nil, self, already a child, or
// an attachment that would create a cycle) is a silent no-op.
func (n *Node) AddChild(child *Node) {
	n.addChild(child, len(n.children))
}

// InsertChild attaches a child at the given index, clamped to range.
func (n *Node) InsertChild(index int, child *Node) {
	if index < 0 {
		index = 0
	}
	if index > len(n.children) {
		index = len(n.children)
	}
	n.addChild(child, index)
}

func (n *Node) addChild(child *Node, index int) {
	if child == nil || child == n || child.parent == n {
		return
	}
	// Reject attachment of an ancestor; it would create a cycle.
	for p := n.parent; p != nil; p = p.parent {
		if p == child {
			return
		}
	}

	oldScene := child.scene
	sameScene := oldScene != nil && oldScene == n.scene

	if child.parent != nil {
		child.parent.detachChild(child)
	}
	if !sameScene && oldScene != nil {
		oldScene.nodeRemoved(child)
	}

	n.children = append(n.children, nil)
	copy(n.children[index+1:], n.children[index:])
	n.children[index] = child
	child.parent = n

	if !sameScene && n.scene != nil {
		n.scene.nodeAdded(child, Replicated)
	}

	child.MarkDirty()
	// The child and everything it carries must be re-evaluated on the
	// next replication pass.
	child.markNetworkUpdateRecursive()

	if n.scene != nil {
		n.scene.bus.Publish(events.NodeAdded, NodeAddedEvent{Scene: n.scene, Parent: n, Node: child})
	}
}

// detachChild unlinks a child from the child vector only; registry upkeep
// is the caller's concern.
func (n *Node) detachChild(child *Node) {
	for i, c := range n.children {
		if c == child {
			n.children = append(n.children[:i], n.children[i+1:]...)
			child.parent = nil
			return
		}
	}
}

// SetParent reparents the node while preserving its world-space pose. With
// the scene root as the new parent the world transform is used directly.
func (n *Node) SetParent(parent *Node) {
	if parent == nil {
		return
	}
	worldPos := n.WorldPosition()
	worldRot := n.WorldRotation()
	worldScale := n.WorldScale()

	oldParent := n.parent
	parent.AddChild(n)
	if n.parent != parent {
		// attachment was rejected; keep the old pose untouched
		_ = oldParent
		return
	}

	if parent.isSceneRoot() {
		n.SetTransform(worldPos, worldRot, worldScale)
		return
	}
	parentRot := parent.WorldRotation()
	parentScale := parent.WorldScale()
	localPos := mgl32.TransformCoordinate(worldPos, parent.WorldTransform().Inv())
	localRot := parentRot.Inverse().Mul(worldRot).Normalize()
	localScale := mgl32.Vec3{
		worldScale.X() / parentScale.X(),
		worldScale.Y() / parentScale.Y(),
		worldScale.Z() / parentScale.Z(),
	}
	n.SetTransform(localPos, localRot, localScale)
}

// RemoveChild detaches a direct child and unregisters its subtree from the
// scene. The local variable keeps the child strongly referenced while
// component teardown runs, which may itself trigger further removals.
func (n *Node) RemoveChild(child *Node) {
	if child == nil || child.parent != n {
		return
	}
	removed := child
	n.detachChild(removed)
	if n.scene != nil {
		n.scene.bus.Publish(events.NodeRemoved, NodeRemovedEvent{Scene: n.scene, Parent: n, Node: removed})
		n.scene.nodeRemoved(removed)
	}
	removed.MarkDirty()
}

// RemoveAllChildren detaches every child.
func (n *Node) RemoveAllChildren() {
	for len(n.children) > 0 {
		n.RemoveChild(n.children[len(n.children)-1])
	}
}

// Remove detaches the node from its parent, unregistering the subtree.
// A node without a parent cannot be removed (the scene root in particular).
func (n *Node) Remove() {
	if n.parent != nil {
		n.parent.RemoveChild(n)
	}
}

// --- Components ---

// Components returns a copy of the attached component list.
func (n *Node) Components() []Component {
	return append([]Component(nil), n.components...)
}

func (n *Node) NumComponents() int { return len(n.components) }

// Component returns the first attached component of the given type, or nil.
func (n *Node) Component(typeHash variant.StringHash) Component {
	for _, c := range n.components {
		if c.TypeHash() == typeHash {
			return c
		}
	}
	return nil
}

// ComponentRecursive searches the node and then its subtree depth first.
func (n *Node) ComponentRecursive(typeHash variant.StringHash) Component {
	if c := n.Component(typeHash); c != nil {
		return c
	}
	for _, child := range n.children {
		if c := child.ComponentRecursive(typeHash); c != nil {
			return c
		}
	}
	return nil
}

// CreateComponent instantiates a registered component type and attaches it.
// Returns nil if the type is not registered.
func (n *Node) CreateComponent(typeName string, mode CreateMode) Component {
	c := NewComponent(variant.Hash(typeName))
	if c == nil {
		n.logError("could not create unknown component type", typeName)
		return nil
	}
	n.addComponent(c, 0, mode)
	return c
}

// AddComponent attaches an externally created component.
func (n *Node) AddComponent(c Component, id uint32, mode CreateMode) {
	if c == nil || c.base().node != nil {
		return
	}
	n.addComponent(c, id, mode)
}

func (n *Node) addComponent(c Component, id uint32, mode CreateMode) {
	b := c.base()
	b.self = c
	b.node = n
	n.components = append(n.components, c)

	if n.scene != nil {
		b.id = id
		n.scene.componentAdded(c, mode)
	} else {
		b.id = id
	}

	c.OnNodeSet(n)
	if n.scene != nil {
		c.OnSceneSet(n.scene)
	}

	// A listener attached to an already dirty node must not miss the
	// dirty state it registered into.
	if n.dirty {
		c.OnMarkedDirty(n)
	}
	c.MarkNetworkUpdate()

	if n.scene != nil {
		n.scene.bus.Publish(events.ComponentAdded, ComponentAddedEvent{Scene: n.scene, Node: n, Component: c})
	}
}

// RemoveComponent detaches a component. The component is unregistered from
// the listener list first so teardown cannot re-notify it.
func (n *Node) RemoveComponent(c Component) {
	if c == nil || c.base().node != n {
		return
	}
	n.RemoveListener(c)
	for i, existing := range n.components {
		if existing == c {
			n.components = append(n.components[:i], n.components[i+1:]...)
			break
		}
	}
	if n.scene != nil {
		n.scene.bus.Publish(events.ComponentRemoved, ComponentRemovedEvent{Scene: n.scene, Node: n, Component: c})
		n.scene.componentRemoved(c)
		c.OnSceneSet(nil)
	}
	c.OnNodeSet(nil)
	c.base().node = nil
}

// RemoveComponentByType removes the first component of the given type.
func (n *Node) RemoveComponentByType(typeHash variant.StringHash) {
	n.RemoveComponent(n.Component(typeHash))
}

// RemoveAllComponents detaches every component.
func (n *Node) RemoveAllComponents() {
	for len(n.components) > 0 {
		n.RemoveComponent(n.components[len(n.components)-1])
	}
}

// --- Listeners ---

// AddListener registers a component for transform-dirty notification.
// Registering twice is a no-op. A listener added to an already dirty node
// is notified immediately.
func (n *Node) AddListener(c Component) {
	if c == nil {
		return
	}
	for _, existing := range n.listeners {
		if existing == c {
			return
		}
	}
	n.listeners = append(n.listeners, c)
	if n.dirty {
		c.OnMarkedDirty(n)
	}
}

// RemoveListener unregisters a transform listener.
func (n *Node) RemoveListener(c Component) {
	for i, existing := range n.listeners {
		if existing == c {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return
		}
	}
}

// --- Tags ---

func (n *Node) Tags() []string { return append([]string(nil), n.tags...) }

func (n *Node) HasTag(tag string) bool {
	for _, t := range n.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// AddTag adds a tag and mirrors it into the scene's tag cache.
func (n *Node) AddTag(tag string) {
	if tag == "" || n.HasTag(tag) {
		return
	}
	n.tags = append(n.tags, tag)
	if n.scene != nil {
		n.scene.nodeTagAdded(n, tag)
	}
	n.MarkNetworkUpdate()
}

// AddTags adds several tags.
func (n *Node) AddTags(tags ...string) {
	for _, tag := range tags {
		n.AddTag(tag)
	}
}

// RemoveTag removes a tag; returns false if the node did not carry it.
func (n *Node) RemoveTag(tag string) bool {
	for i, t := range n.tags {
		if t == tag {
			n.tags = append(n.tags[:i], n.tags[i+1:]...)
			if n.scene != nil {
				n.scene.nodeTagRemoved(n, tag)
			}
			n.MarkNetworkUpdate()
			return true
		}
	}
	return false
}

// RemoveAllTags clears the node's tags.
func (n *Node) RemoveAllTags() {
	for len(n.tags) > 0 {
		n.RemoveTag(n.tags[len(n.tags)-1])
	}
}

// SetTags replaces the tag list.
func (n *Node) SetTags(tags []string) {
	n.RemoveAllTags()
	n.AddTags(tags...)
}

// ChildrenWithTag collects children carrying the tag, optionally from the
// whole subtree.
func (n *Node) ChildrenWithTag(tag string, recursive bool) []*Node {
	var out []*Node
	for _, child := range n.children {
		if child.HasTag(tag) {
			out = append(out, child)
		}
		if recursive {
			out = append(out, child.ChildrenWithTag(tag, true)...)
		}
	}
	return out
}

// --- User variables ---

// Var returns a user variable, or an empty variant if unset.
func (n *Node) Var(key variant.StringHash) variant.Variant {
	return n.vars[key]
}

// Vars returns the live user-variable map. Mutating it directly bypasses
// replication marking; prefer SetVar.
func (n *Node) Vars() variant.Map { return n.vars }

// SetVar sets a user variable and flags the node for replication.
func (n *Node) SetVar(key variant.StringHash, value variant.Variant) {
	if n.vars == nil {
		n.vars = make(variant.Map)
	}
	n.vars[key] = value
	n.MarkNetworkUpdate()
}

// DeleteVar removes a user variable.
func (n *Node) DeleteVar(key variant.StringHash) {
	delete(n.vars, key)
	n.MarkNetworkUpdate()
}

func (n *Node) setVars(m variant.Map) {
	n.vars = m.Clone()
	n.MarkNetworkUpdate()
}

// --- Enabled state ---

func (n *Node) IsEnabled() bool { return n.enabled }

// SetEnabled toggles the node itself and remembers the state as the one to
// restore after a deep-enable override.
func (n *Node) SetEnabled(enabled bool) {
	n.setEnabled(enabled, false, true)
}

// SetDeepEnabled toggles the node and its subtree without touching the
// remembered per-node state, so ResetDeepEnabled can restore it.
func (n *Node) SetDeepEnabled(enabled bool) {
	n.setEnabled(enabled, true, false)
}

// ResetDeepEnabled restores every node in the subtree to its remembered
// enabled state.
func (n *Node) ResetDeepEnabled() {
	n.setEnabled(n.enabledPrev, false, false)
	for _, child := range n.children {
		child.ResetDeepEnabled()
	}
}

// SetEnabledRecursive toggles the subtree and rewrites the remembered
// states as well.
func (n *Node) SetEnabledRecursive(enabled bool) {
	n.setEnabled(enabled, true, true)
}

func (n *Node) setEnabled(enabled, recursive, storeSelf bool) {
	if storeSelf {
		n.enabledPrev = enabled
	}
	if enabled != n.enabled {
		n.enabled = enabled
		n.MarkNetworkUpdate()
		for _, c := range n.components {
			c.OnSetEnabled()
		}
	}
	if recursive {
		for _, child := range n.children {
			child.setEnabled(enabled, true, storeSelf)
		}
	}
}

// --- Replication ---

// MarkNetworkUpdate flags the node for the next replication diff pass.
// Local-ID and unattached nodes are never flagged.
func (n *Node) MarkNetworkUpdate() {
	if n.scene != nil && n.id != 0 && IsReplicatedID(n.id) {
		n.scene.markNodeNetworkDirty(n)
	}
}

func (n *Node) markNetworkUpdateRecursive() {
	n.MarkNetworkUpdate()
	for _, c := range n.components {
		c.MarkNetworkUpdate()
	}
	for _, child := range n.children {
		child.markNetworkUpdateRecursive()
	}
}

// NetworkState exposes the node's replication diff state.
func (n *Node) NetworkState() *replication.State { return &n.netState }

// --- Cloning ---

// Clone duplicates the node and its subtree under the same parent,
// rewriting internal ID references so that cloned components point at
// their cloned siblings. Returns nil on a parentless node.
func (n *Node) Clone(mode CreateMode) *Node {
	if n.parent == nil {
		n.logError("can not clone a node without a parent", n.name)
		return nil
	}
	resolver := NewResolver(n.sceneLog())
	clone := n.cloneRecursive(n.parent, resolver, mode)
	resolver.Resolve()
	return clone
}

// CloneInto duplicates the subtree under a different parent.
func (n *Node) CloneInto(parent *Node, mode CreateMode) *Node {
	if parent == nil {
		return nil
	}
	resolver := NewResolver(n.sceneLog())
	clone := n.cloneRecursive(parent, resolver, mode)
	resolver.Resolve()
	return clone
}

func (n *Node) cloneRecursive(parent *Node, resolver *Resolver, mode CreateMode) *Node {
	clone := parent.CreateChild(n.name, mode)
	resolver.AddNode(n.id, clone)

	copyAttributes(n, clone, nodeAttributes())

	for _, c := range n.components {
		if c.IsTemporary() {
			continue
		}
		cloneComp := NewComponent(c.TypeHash())
		if cloneComp == nil {
			n.logWarn("could not clone component of unknown type", c.TypeName())
			continue
		}
		clone.addComponent(cloneComp, 0, mode)
		resolver.AddComponent(c.ID(), cloneComp)
		copyAttributes(c, cloneComp, attribute.Infos(c.TypeHash()))
	}

	for _, child := range n.children {
		if child.IsTemporary() {
			continue
		}
		child.cloneRecursive(clone, resolver, mode)
	}
	return clone
}

func copyAttributes(src, dst attribute.Serializable, infos []attribute.Info) {
	for _, info := range infos {
		if info.Mode&attribute.File == 0 || info.Get == nil || info.Set == nil {
			continue
		}
		info.Set(dst, info.Get(src))
	}
}

// --- Logging helpers ---

func (n *Node) sceneLog() logSink {
	if n.scene != nil {
		return n.scene.logger
	}
	return nil
}

func (n *Node) logWarn(msg string, args ...string) {
	if l := n.sceneLog(); l != nil {
		l.Warn(msg, stringFields(args)...)
	}
}

func (n *Node) logError(msg string, args ...string) {
	if l := n.sceneLog(); l != nil {
		l.Error(msg, stringFields(args)...)
	}
}
