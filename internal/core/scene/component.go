package scene

import (
	"sync"

	"github.com/scenesync/scenesync/internal/core/attribute"
	"github.com/scenesync/scenesync/internal/core/replication"
	"github.com/scenesync/scenesync/internal/core/variant"
)

// Component is the unit of behavior attached to a Node. Concrete components
// embed BaseComponent and register themselves with RegisterComponent; the
// unexported base method keeps outside implementations from skipping that.
type Component interface {
	attribute.Serializable

	ID() uint32
	Node() *Node
	Scene() *Scene
	IsEnabled() bool
	IsEnabledEffective() bool
	SetEnabled(enabled bool)
	IsTemporary() bool
	SetTemporary(temporary bool)
	Remove()
	MarkNetworkUpdate()

	// OnNodeSet is called after attach (with the node) and detach (nil).
	OnNodeSet(node *Node)
	// OnSceneSet is called when the owning node joins or leaves a scene.
	OnSceneSet(scene *Scene)
	// OnMarkedDirty is called for registered listeners when the node's
	// transform is dirtied.
	OnMarkedDirty(node *Node)
	// OnSetEnabled is called after the effective enabled state changes.
	OnSetEnabled()

	base() *BaseComponent
}

// BaseComponent carries the identity and wiring shared by all components.
type BaseComponent struct {
	self      Component
	id        uint32
	node      *Node
	enabled   bool
	temporary bool
	netState  replication.State
}

func (c *BaseComponent) base() *BaseComponent { return c }

func (c *BaseComponent) ID() uint32 { return c.id }

func (c *BaseComponent) Node() *Node { return c.node }

func (c *BaseComponent) Scene() *Scene {
	if c.node == nil {
		return nil
	}
	return c.node.Scene()
}

func (c *BaseComponent) IsEnabled() bool { return c.enabled }

// IsEnabledEffective reports whether both the component and its owning node
// are enabled.
func (c *BaseComponent) IsEnabledEffective() bool {
	return c.enabled && c.node != nil && c.node.IsEnabled()
}

func (c *BaseComponent) SetEnabled(enabled bool) {
	if enabled == c.enabled {
		return
	}
	c.enabled = enabled
	if c.self != nil {
		c.self.OnSetEnabled()
		c.self.MarkNetworkUpdate()
	}
}

func (c *BaseComponent) IsTemporary() bool { return c.temporary }

// SetTemporary marks the component to be skipped by scene saving.
func (c *BaseComponent) SetTemporary(temporary bool) { c.temporary = temporary }

// Remove detaches the component from its node. No-op when unattached.
func (c *BaseComponent) Remove() {
	if c.node != nil && c.self != nil {
		c.node.RemoveComponent(c.self)
	}
}

// MarkNetworkUpdate flags the component for the next replication diff pass.
func (c *BaseComponent) MarkNetworkUpdate() {
	if c.self == nil || c.node == nil {
		return
	}
	if s := c.node.Scene(); s != nil {
		s.markComponentNetworkDirty(c.self)
	}
}

// NetworkState exposes the per-component replication diff state.
func (c *BaseComponent) NetworkState() *replication.State { return &c.netState }

// Default lifecycle hooks; concrete components override what they need.

func (c *BaseComponent) OnNodeSet(*Node) {}

func (c *BaseComponent) OnSceneSet(*Scene) {}

func (c *BaseComponent) OnMarkedDirty(*Node) {}

func (c *BaseComponent) OnSetEnabled() {}

// expired reports whether the component has been detached from its node.
// Listener lists compact expired entries out lazily during notification.
func expired(c Component) bool {
	return c == nil || c.base().node == nil
}

// Factory creates an empty instance of a component type.
type Factory func() Component

type componentRegistry struct {
	mu        sync.RWMutex
	factories map[variant.StringHash]Factory
}

var components = &componentRegistry{factories: make(map[variant.StringHash]Factory)}

// RegisterComponent installs a component type: its attribute list and its
// factory. Called from init funcs of component implementations.
func RegisterComponent(typeName string, infos []attribute.Info, factory Factory) variant.StringHash {
	h := attribute.Register(typeName, infos)
	components.mu.Lock()
	components.factories[h] = factory
	components.mu.Unlock()
	return h
}

// NewComponent instantiates a registered component type by hash. Returns
// nil for unknown types; loaders substitute UnknownComponent in that case.
func NewComponent(typeHash variant.StringHash) Component {
	components.mu.RLock()
	factory := components.factories[typeHash]
	components.mu.RUnlock()
	if factory == nil {
		return nil
	}
	c := factory()
	c.base().self = c
	c.base().enabled = true
	return c
}

// UnknownComponent preserves the raw attribute values of a component whose
// type is not registered, so a loaded scene re-saves losslessly instead of
// dropping data.
type UnknownComponent struct {
	BaseComponent
	typeHash variant.StringHash
	typeName string
	values   []variant.Variant
}

// NewUnknownComponent creates a placeholder for an unregistered type hash.
func NewUnknownComponent(typeHash variant.StringHash) *UnknownComponent {
	u := &UnknownComponent{typeHash: typeHash, typeName: attribute.TypeName(typeHash)}
	u.self = u
	u.enabled = true
	return u
}

func (u *UnknownComponent) TypeName() string {
	if u.typeName != "" {
		return u.typeName
	}
	return "Unknown"
}

func (u *UnknownComponent) TypeHash() variant.StringHash { return u.typeHash }

// RawValues returns the attribute values captured at load time.
func (u *UnknownComponent) RawValues() []variant.Variant { return u.values }

// SetRawValues replaces the captured attribute values.
func (u *UnknownComponent) SetRawValues(values []variant.Variant) { u.values = values }
