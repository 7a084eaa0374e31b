package scene

import (
	"sort"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"

	"github.com/scenesync/scenesync/internal/core/attribute"
	"github.com/scenesync/scenesync/internal/core/variant"
)

// WrapMode controls what happens when an animation passes its last keyframe.
type WrapMode uint8

const (
	// WrapLoop restarts from the beginning.
	WrapLoop WrapMode = iota
	// WrapOnce plays through and removes the animation.
	WrapOnce
	// WrapClamp holds the final value forever.
	WrapClamp
)

// Keyframe is one sample of a ValueAnimation.
type Keyframe struct {
	Time  float32
	Value variant.Variant
}

// ValueAnimation is a keyframed curve over variant values. Numeric, vector
// and quaternion types interpolate; everything else steps at keyframe
// boundaries.
type ValueAnimation struct {
	keyframes []Keyframe
}

// NewValueAnimation creates an empty animation.
func NewValueAnimation() *ValueAnimation { return &ValueAnimation{} }

// AddKeyframe inserts a sample, keeping keyframes sorted by time.
func (a *ValueAnimation) AddKeyframe(t float32, value variant.Variant) {
	kf := Keyframe{Time: t, Value: value}
	i := sort.Search(len(a.keyframes), func(i int) bool { return a.keyframes[i].Time > t })
	a.keyframes = append(a.keyframes, Keyframe{})
	copy(a.keyframes[i+1:], a.keyframes[i:])
	a.keyframes[i] = kf
}

// Length returns the time of the last keyframe.
func (a *ValueAnimation) Length() float32 {
	if len(a.keyframes) == 0 {
		return 0
	}
	return a.keyframes[len(a.keyframes)-1].Time
}

// IsValid reports whether the animation can be played.
func (a *ValueAnimation) IsValid() bool { return len(a.keyframes) > 0 }

// Value samples the curve at time t, clamped to the keyframe range.
func (a *ValueAnimation) Value(t float32) variant.Variant {
	if len(a.keyframes) == 0 {
		return variant.Variant{}
	}
	if t <= a.keyframes[0].Time {
		return a.keyframes[0].Value
	}
	last := a.keyframes[len(a.keyframes)-1]
	if t >= last.Time {
		return last.Value
	}
	i := sort.Search(len(a.keyframes), func(i int) bool { return a.keyframes[i].Time > t })
	prev, next := a.keyframes[i-1], a.keyframes[i]
	span := next.Time - prev.Time
	if span <= 0 {
		return next.Value
	}
	return interpolate(prev.Value, next.Value, (t-prev.Time)/span)
}

func interpolate(a, b variant.Variant, t float32) variant.Variant {
	if a.Type() != b.Type() {
		return a
	}
	switch a.Type() {
	case variant.TypeFloat:
		return variant.Float(lerp(a.Float(), b.Float(), t))
	case variant.TypeDouble:
		return variant.Double(a.Double() + (b.Double()-a.Double())*float64(t))
	case variant.TypeInt:
		return variant.Int(a.Int() + int(float32(b.Int()-a.Int())*t))
	case variant.TypeVector3:
		return variant.Vec3(lerpVec3(a.Vec3(), b.Vec3(), t))
	case variant.TypeQuaternion:
		return variant.Quat(mgl32.QuatSlerp(a.Quat(), b.Quat(), t))
	default:
		return a
	}
}

func lerp(a, b, t float32) float32 { return a + (b-a)*t }

func lerpVec3(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Mul(1 - t).Add(b.Mul(t))
}

// --- Scene-driven attribute animation ---

type animationKey struct {
	objectID uint32
	isNode   bool
	attr     string
}

type attributeAnimationInfo struct {
	object attribute.Serializable
	alive  func() bool
	info   attribute.Info
	anim   *ValueAnimation
	wrap   WrapMode
	speed  float32
	time   float32
}

// AnimateNodeAttribute drives a node attribute from a value animation,
// advanced during the animation phase of Update. A second call for the
// same attribute replaces the running animation.
func (s *Scene) AnimateNodeAttribute(node *Node, attrName string, anim *ValueAnimation, wrap WrapMode, speed float32) error {
	if node == nil || node.scene != s {
		return errors.New("node is not in this scene")
	}
	if anim == nil || !anim.IsValid() {
		return errors.New("animation has no keyframes")
	}
	info, err := findAttr(nodeAttributes(), attrName)
	if err != nil {
		return err
	}
	s.animations[animationKey{objectID: node.id, isNode: true, attr: attrName}] = &attributeAnimationInfo{
		object: node,
		alive:  func() bool { return node.scene == s },
		info:   info,
		anim:   anim,
		wrap:   wrap,
		speed:  speed,
	}
	return nil
}

// AnimateComponentAttribute drives a component attribute.
func (s *Scene) AnimateComponentAttribute(c Component, attrName string, anim *ValueAnimation, wrap WrapMode, speed float32) error {
	if c == nil || c.Scene() != s {
		return errors.New("component is not in this scene")
	}
	if anim == nil || !anim.IsValid() {
		return errors.New("animation has no keyframes")
	}
	info, err := findAttr(attribute.Infos(c.TypeHash()), attrName)
	if err != nil {
		return err
	}
	s.animations[animationKey{objectID: c.ID(), attr: attrName}] = &attributeAnimationInfo{
		object: c,
		alive:  func() bool { return !expired(c) },
		info:   info,
		anim:   anim,
		wrap:   wrap,
		speed:  speed,
	}
	return nil
}

// StopNodeAttributeAnimation cancels a running node attribute animation.
func (s *Scene) StopNodeAttributeAnimation(node *Node, attrName string) {
	if node != nil {
		delete(s.animations, animationKey{objectID: node.id, isNode: true, attr: attrName})
	}
}

// StopComponentAttributeAnimation cancels a running component attribute
// animation.
func (s *Scene) StopComponentAttributeAnimation(c Component, attrName string) {
	if c != nil {
		delete(s.animations, animationKey{objectID: c.ID(), attr: attrName})
	}
}

func findAttr(infos []attribute.Info, name string) (attribute.Info, error) {
	for _, info := range infos {
		if info.Name == name {
			if info.Set == nil {
				return attribute.Info{}, errors.Errorf("attribute %q is read only", name)
			}
			return info, nil
		}
	}
	return attribute.Info{}, errors.Errorf("no attribute %q", name)
}

func (s *Scene) advanceAnimations(timeStep float32) {
	for key, a := range s.animations {
		if !a.alive() || !a.anim.IsValid() {
			delete(s.animations, key)
			continue
		}
		a.time += timeStep * a.speed
		length := a.anim.Length()
		finished := false
		t := a.time
		switch a.wrap {
		case WrapLoop:
			if length > 0 {
				for t >= length {
					t -= length
				}
				a.time = t
			}
		case WrapOnce:
			if t >= length {
				t = length
				finished = true
			}
		case WrapClamp:
			if t >= length {
				t = length
			}
		}
		a.info.Set(a.object, a.anim.Value(t))
		if finished {
			delete(s.animations, key)
		}
	}
}
