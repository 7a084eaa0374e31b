package scene

import (
	"github.com/scenesync/scenesync/internal/core/attribute"
	"github.com/scenesync/scenesync/internal/core/variant"
)

// Node's serialized attribute list. Ordering is part of the binary format
// and of the replication delta indices; append only.
func nodeAttributes() []attribute.Info {
	return attribute.Infos(nodeTypeHash)
}

func init() {
	attribute.Register("Node", []attribute.Info{
		{
			Name: "Is Enabled", Type: variant.TypeBool, Mode: attribute.Default,
			Default: variant.Bool(true),
			Get: func(s attribute.Serializable) variant.Variant {
				return variant.Bool(s.(*Node).enabled)
			},
			Set: func(s attribute.Serializable, v variant.Variant) {
				s.(*Node).setEnabled(v.Bool(), false, true)
			},
		},
		{
			Name: "Name", Type: variant.TypeString, Mode: attribute.Default,
			Get: func(s attribute.Serializable) variant.Variant {
				return variant.Str(s.(*Node).name)
			},
			Set: func(s attribute.Serializable, v variant.Variant) {
				s.(*Node).SetName(v.Str())
			},
		},
		{
			Name: "Tags", Type: variant.TypeStringVector, Mode: attribute.Default,
			Get: func(s attribute.Serializable) variant.Variant {
				return variant.Strings(s.(*Node).tags)
			},
			Set: func(s attribute.Serializable, v variant.Variant) {
				s.(*Node).SetTags(v.StringVector())
			},
		},
		{
			Name: "Position", Type: variant.TypeVector3, Mode: attribute.Default | attribute.Latest,
			Get: func(s attribute.Serializable) variant.Variant {
				return variant.Vec3(s.(*Node).position)
			},
			Set: func(s attribute.Serializable, v variant.Variant) {
				s.(*Node).SetPosition(v.Vec3())
			},
		},
		{
			Name: "Rotation", Type: variant.TypeQuaternion, Mode: attribute.Default | attribute.Latest,
			Get: func(s attribute.Serializable) variant.Variant {
				return variant.Quat(s.(*Node).rotation)
			},
			Set: func(s attribute.Serializable, v variant.Variant) {
				s.(*Node).SetRotation(v.Quat())
			},
		},
		{
			Name: "Scale", Type: variant.TypeVector3, Mode: attribute.Default,
			Get: func(s attribute.Serializable) variant.Variant {
				return variant.Vec3(s.(*Node).scale)
			},
			Set: func(s attribute.Serializable, v variant.Variant) {
				s.(*Node).SetScale(v.Vec3())
			},
		},
		{
			// User variables travel in scene files; replication ships them
			// separately as per-key diffs.
			Name: "Variables", Type: variant.TypeVariantMap, Mode: attribute.File,
			Get: func(s attribute.Serializable) variant.Variant {
				return variant.MapValue(s.(*Node).vars)
			},
			Set: func(s attribute.Serializable, v variant.Variant) {
				s.(*Node).setVars(v.Map())
			},
		},
	})
}
