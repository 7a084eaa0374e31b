package variant

import (
	"encoding/json"

	"github.com/pkg/errors"
)

type jsonVariant struct {
	Type  string         `json:"type"`
	Value string         `json:"value,omitempty"`
	Map   []jsonMapEntry `json:"map,omitempty"`
}

type jsonMapEntry struct {
	Key uint32 `json:"key"`
	jsonVariant
}

func (v Variant) toJSON() jsonVariant {
	jv := jsonVariant{Type: v.typ.String()}
	if v.typ == TypeVariantMap {
		jv.Map = make([]jsonMapEntry, 0, len(v.m))
		for _, k := range v.m.SortedKeys() {
			jv.Map = append(jv.Map, jsonMapEntry{Key: uint32(k), jsonVariant: v.m[k].toJSON()})
		}
		return jv
	}
	jv.Value = v.ToString()
	return jv
}

func fromJSON(jv jsonVariant) (Variant, error) {
	typ := TypeFromName(jv.Type)
	if typ == TypeVariantMap {
		m := make(Map, len(jv.Map))
		for _, e := range jv.Map {
			mv, err := fromJSON(e.jsonVariant)
			if err != nil {
				return Variant{}, err
			}
			m[StringHash(e.Key)] = mv
		}
		return MapValue(m), nil
	}
	if typ == TypeNone && jv.Type != TypeNone.String() {
		return Variant{}, errors.Errorf("variant: unknown type name %q", jv.Type)
	}
	return FromString(typ, jv.Value)
}

func (v Variant) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.toJSON())
}

func (v *Variant) UnmarshalJSON(data []byte) error {
	var jv jsonVariant
	if err := json.Unmarshal(data, &jv); err != nil {
		return err
	}
	parsed, err := fromJSON(jv)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
