package variant

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pkg/errors"
)

// ToString renders the scalar text form used by the XML scene format.
// VariantMap has no flat text form; the XML serializer emits it as nested
// elements instead.
func (v Variant) ToString() string {
	switch v.typ {
	case TypeNone:
		return ""
	case TypeBool:
		return strconv.FormatBool(v.num != 0)
	case TypeInt:
		return strconv.FormatInt(int64(v.num), 10)
	case TypeInt64:
		return strconv.FormatInt(int64(v.num), 10)
	case TypeFloat:
		return formatFloat(float64(v.Float()))
	case TypeDouble:
		return formatFloat(v.Double())
	case TypeVector3:
		return fmt.Sprintf("%s %s %s",
			formatFloat(float64(v.vec.X())), formatFloat(float64(v.vec.Y())), formatFloat(float64(v.vec.Z())))
	case TypeQuaternion:
		return fmt.Sprintf("%s %s %s %s",
			formatFloat(float64(v.quat.W)),
			formatFloat(float64(v.quat.V.X())), formatFloat(float64(v.quat.V.Y())), formatFloat(float64(v.quat.V.Z())))
	case TypeString:
		return v.str
	case TypeBuffer:
		return base64.StdEncoding.EncodeToString(v.buf)
	case TypeResourceRef:
		return strconv.FormatUint(uint64(v.hash), 10) + ";" + v.str
	case TypeStringVector:
		return strings.Join(v.strs, ";")
	case TypeNodeID, TypeComponentID:
		return strconv.FormatUint(v.num, 10)
	case TypeNodeIDVector:
		parts := make([]string, len(v.ids))
		for i, id := range v.ids {
			parts[i] = strconv.FormatUint(uint64(id), 10)
		}
		return strings.Join(parts, " ")
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 32)
}

// FromString parses the text form produced by ToString for the given type.
func FromString(typ Type, s string) (Variant, error) {
	switch typ {
	case TypeNone:
		return Variant{}, nil
	case TypeBool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return Variant{}, errors.Wrap(err, "variant: parse bool")
		}
		return Bool(b), nil
	case TypeInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Variant{}, errors.Wrap(err, "variant: parse int")
		}
		return Int(int(i)), nil
	case TypeInt64:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Variant{}, errors.Wrap(err, "variant: parse int64")
		}
		return Int64(i), nil
	case TypeFloat:
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return Variant{}, errors.Wrap(err, "variant: parse float")
		}
		return Float(float32(f)), nil
	case TypeDouble:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Variant{}, errors.Wrap(err, "variant: parse double")
		}
		return Double(f), nil
	case TypeVector3:
		fs, err := parseFloats(s, 3)
		if err != nil {
			return Variant{}, err
		}
		return Vec3(mgl32.Vec3{fs[0], fs[1], fs[2]}), nil
	case TypeQuaternion:
		fs, err := parseFloats(s, 4)
		if err != nil {
			return Variant{}, err
		}
		return Quat(mgl32.Quat{W: fs[0], V: mgl32.Vec3{fs[1], fs[2], fs[3]}}), nil
	case TypeString:
		return Str(s), nil
	case TypeBuffer:
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return Variant{}, errors.Wrap(err, "variant: parse buffer")
		}
		return Buffer(b), nil
	case TypeResourceRef:
		hashStr, name, found := strings.Cut(s, ";")
		if !found {
			return Variant{}, errors.New("variant: malformed resource ref")
		}
		h, err := strconv.ParseUint(hashStr, 10, 32)
		if err != nil {
			return Variant{}, errors.Wrap(err, "variant: parse resource ref hash")
		}
		return Resource(ResourceRef{Type: StringHash(h), Name: name}), nil
	case TypeStringVector:
		if s == "" {
			return Strings(nil), nil
		}
		return Strings(strings.Split(s, ";")), nil
	case TypeNodeID, TypeComponentID:
		id, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return Variant{}, errors.Wrap(err, "variant: parse object id")
		}
		if typ == TypeNodeID {
			return NodeID(uint32(id)), nil
		}
		return ComponentID(uint32(id)), nil
	case TypeNodeIDVector:
		fields := strings.Fields(s)
		ids := make([]uint32, 0, len(fields))
		for _, f := range fields {
			id, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return Variant{}, errors.Wrap(err, "variant: parse id vector")
			}
			ids = append(ids, uint32(id))
		}
		return NodeIDs(ids), nil
	default:
		return Variant{}, errors.Errorf("variant: no text form for type %s", typ)
	}
}

func parseFloats(s string, n int) ([]float32, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, errors.Errorf("variant: expected %d components, got %d", n, len(fields))
	}
	out := make([]float32, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 32)
		if err != nil {
			return nil, errors.Wrapf(err, "variant: component %d", i)
		}
		out[i] = float32(v)
	}
	return out, nil
}
