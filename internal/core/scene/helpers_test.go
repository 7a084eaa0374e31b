package scene

import (
	"github.com/scenesync/scenesync/internal/core/attribute"
	"github.com/scenesync/scenesync/internal/core/observability/log"
	"github.com/scenesync/scenesync/internal/core/variant"
)

// trackerComponent records every lifecycle callback it receives.
type trackerComponent struct {
	BaseComponent

	dirtyCalls   int
	enabledCalls int
	nodeSets     []*Node
	sceneSets    []*Scene
	health       int
}

var trackerType = RegisterComponent("Tracker", []attribute.Info{
	{
		Name: "Is Enabled", Type: variant.TypeBool, Mode: attribute.Default,
		Default: variant.Bool(true),
		Get: func(s attribute.Serializable) variant.Variant {
			return variant.Bool(s.(*trackerComponent).enabled)
		},
		Set: func(s attribute.Serializable, v variant.Variant) {
			s.(*trackerComponent).SetEnabled(v.Bool())
		},
	},
	{
		Name: "Health", Type: variant.TypeInt, Mode: attribute.Default,
		Get: func(s attribute.Serializable) variant.Variant {
			return variant.Int(s.(*trackerComponent).health)
		},
		Set: func(s attribute.Serializable, v variant.Variant) {
			s.(*trackerComponent).health = v.Int()
		},
	},
}, func() Component { return &trackerComponent{} })

func (t *trackerComponent) TypeName() string             { return "Tracker" }
func (t *trackerComponent) TypeHash() variant.StringHash { return trackerType }

func (t *trackerComponent) OnMarkedDirty(*Node) { t.dirtyCalls++ }
func (t *trackerComponent) OnSetEnabled()       { t.enabledCalls++ }
func (t *trackerComponent) OnNodeSet(n *Node)   { t.nodeSets = append(t.nodeSets, n) }
func (t *trackerComponent) OnSceneSet(s *Scene) { t.sceneSets = append(t.sceneSets, s) }

// refComponent holds ID references of all three kinds, for resolver tests.
type refComponent struct {
	BaseComponent

	targetNode  uint32
	partnerComp uint32
	linkedNodes []uint32
}

var refType = RegisterComponent("RefHolder", []attribute.Info{
	{
		Name: "Target Node", Type: variant.TypeNodeID, Mode: attribute.Default | attribute.NodeIDRef,
		Get: func(s attribute.Serializable) variant.Variant {
			return variant.NodeID(s.(*refComponent).targetNode)
		},
		Set: func(s attribute.Serializable, v variant.Variant) {
			s.(*refComponent).targetNode = v.NodeID()
		},
	},
	{
		Name: "Partner", Type: variant.TypeComponentID, Mode: attribute.Default | attribute.ComponentIDRef,
		Get: func(s attribute.Serializable) variant.Variant {
			return variant.ComponentID(s.(*refComponent).partnerComp)
		},
		Set: func(s attribute.Serializable, v variant.Variant) {
			s.(*refComponent).partnerComp = v.ComponentID()
		},
	},
	{
		Name: "Linked Nodes", Type: variant.TypeNodeIDVector, Mode: attribute.Default | attribute.NodeIDVectorRef,
		Get: func(s attribute.Serializable) variant.Variant {
			return variant.NodeIDs(s.(*refComponent).linkedNodes)
		},
		Set: func(s attribute.Serializable, v variant.Variant) {
			s.(*refComponent).linkedNodes = v.NodeIDVector()
		},
	},
}, func() Component { return &refComponent{} })

func (r *refComponent) TypeName() string             { return "RefHolder" }
func (r *refComponent) TypeHash() variant.StringHash { return refType }

func newTestScene() *Scene {
	return NewScene(log.Nop())
}
