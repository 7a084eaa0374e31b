package scene

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/scenesync/scenesync/internal/core/attribute"
	"github.com/scenesync/scenesync/internal/core/variant"
)

// SmoothedTransform eases its node toward a target position and rotation
// during the smoothing phase of Scene.Update. Replication clients attach
// one per mirrored node so that sparse network updates do not teleport
// objects; the incoming values land in the targets instead of the node.
type SmoothedTransform struct {
	BaseComponent

	targetPosition mgl32.Vec3
	targetRotation mgl32.Quat

	smoothPosition bool
	smoothRotation bool

	// scene whose smoothing list currently holds this component
	registered *Scene
}

var smoothedTransformType = RegisterComponent("SmoothedTransform", []attribute.Info{
	{
		Name: "Is Enabled", Type: variant.TypeBool, Mode: attribute.Default,
		Default: variant.Bool(true),
		Get: func(s attribute.Serializable) variant.Variant {
			return variant.Bool(s.(*SmoothedTransform).enabled)
		},
		Set: func(s attribute.Serializable, v variant.Variant) {
			s.(*SmoothedTransform).SetEnabled(v.Bool())
		},
	},
	{
		Name: "Target Position", Type: variant.TypeVector3, Mode: attribute.Default | attribute.Latest,
		Get: func(s attribute.Serializable) variant.Variant {
			return variant.Vec3(s.(*SmoothedTransform).targetPosition)
		},
		Set: func(s attribute.Serializable, v variant.Variant) {
			s.(*SmoothedTransform).SetTargetPosition(v.Vec3())
		},
	},
	{
		Name: "Target Rotation", Type: variant.TypeQuaternion, Mode: attribute.Default | attribute.Latest,
		Get: func(s attribute.Serializable) variant.Variant {
			return variant.Quat(s.(*SmoothedTransform).targetRotation)
		},
		Set: func(s attribute.Serializable, v variant.Variant) {
			s.(*SmoothedTransform).SetTargetRotation(v.Quat())
		},
	},
}, func() Component {
	return &SmoothedTransform{targetRotation: mgl32.QuatIdent()}
})

func (t *SmoothedTransform) TypeName() string { return "SmoothedTransform" }

func (t *SmoothedTransform) TypeHash() variant.StringHash { return smoothedTransformType }

// TargetPosition returns the position being eased toward.
func (t *SmoothedTransform) TargetPosition() mgl32.Vec3 { return t.targetPosition }

// TargetRotation returns the rotation being eased toward.
func (t *SmoothedTransform) TargetRotation() mgl32.Quat { return t.targetRotation }

// SetTargetPosition starts easing toward a new position.
func (t *SmoothedTransform) SetTargetPosition(position mgl32.Vec3) {
	t.targetPosition = position
	t.smoothPosition = true
	t.MarkNetworkUpdate()
}

// SetTargetRotation starts easing toward a new rotation.
func (t *SmoothedTransform) SetTargetRotation(rotation mgl32.Quat) {
	t.targetRotation = rotation
	t.smoothRotation = true
	t.MarkNetworkUpdate()
}

// IsInProgress reports whether the node has not yet reached its targets.
func (t *SmoothedTransform) IsInProgress() bool {
	return t.smoothPosition || t.smoothRotation
}

// OnSceneSet registers the component with the scene's smoothing phase.
func (t *SmoothedTransform) OnSceneSet(scene *Scene) {
	if t.registered != nil {
		t.registered.removeSmoothed(t)
	}
	if scene != nil {
		scene.smoothed = append(scene.smoothed, t)
	}
	t.registered = scene
}

// OnMarkedDirty defers its work while a threaded update is running; the
// scene replays it on the logic goroutine afterwards.
func (t *SmoothedTransform) OnMarkedDirty(node *Node) {
	if s := t.Scene(); s != nil && s.IsThreadedUpdate() {
		s.DelayedMarkedDirty(t)
	}
}

func (s *Scene) removeSmoothed(t *SmoothedTransform) {
	for i, existing := range s.smoothed {
		if existing == t {
			s.smoothed = append(s.smoothed[:i], s.smoothed[i+1:]...)
			return
		}
	}
}

const (
	// snap distances below this squared epsilon end position smoothing
	smoothPositionEpsilon float32 = 1e-6
	// dot products above this end rotation smoothing
	smoothRotationEpsilon float32 = 0.99999
)

// updateSmoothing advances one smoothing step. constant is the frame's
// exponential blend factor; squaredSnap is the squared distance beyond
// which easing gives up and teleports.
func (t *SmoothedTransform) updateSmoothing(constant, squaredSnap float32) {
	node := t.node
	if node == nil {
		return
	}

	if t.smoothPosition {
		delta := t.targetPosition.Sub(node.Position())
		switch {
		case delta.LenSqr() > squaredSnap:
			node.SetPosition(t.targetPosition)
			t.smoothPosition = false
		case delta.LenSqr() < smoothPositionEpsilon:
			node.SetPosition(t.targetPosition)
			t.smoothPosition = false
		default:
			node.SetPosition(lerpVec3(node.Position(), t.targetPosition, constant))
		}
	}

	if t.smoothRotation {
		current := node.Rotation()
		if dot := current.Dot(t.targetRotation); dot > smoothRotationEpsilon || dot < -smoothRotationEpsilon {
			node.SetRotation(t.targetRotation)
			t.smoothRotation = false
		} else {
			node.SetRotation(mgl32.QuatSlerp(current, t.targetRotation, constant))
		}
	}
}
