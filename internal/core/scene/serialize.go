package scene

import (
	"github.com/pkg/errors"

	"github.com/scenesync/scenesync/internal/core/attribute"
	"github.com/scenesync/scenesync/internal/core/variant"
)

// The three on-disk formats share one in-memory document model. A format
// codec only converts between bytes and records; building records from a
// live hierarchy and instantiating a hierarchy from records lives here, so
// binary, XML and JSON loads are guaranteed to agree on semantics. The
// async loader also runs off this model: the document is decoded up front
// and the root's children are instantiated incrementally.

type attrRecord struct {
	// Name is empty in the binary format, which stores attributes
	// positionally over the File-mode list.
	Name  string
	Value variant.Variant
}

type componentRecord struct {
	TypeName string
	TypeHash variant.StringHash
	ID       uint32
	Attrs    []attrRecord
}

type nodeRecord struct {
	ID         uint32
	Attrs      []attrRecord
	Components []componentRecord
	Children   []*nodeRecord
}

// --- Building records from a live hierarchy ---

// buildNodeRecord captures a node and its subtree. Temporary nodes and
// components are skipped. withNames selects the named (text) or positional
// (binary) attribute form.
func buildNodeRecord(n *Node, withNames bool) *nodeRecord {
	rec := &nodeRecord{
		ID:    n.id,
		Attrs: buildAttrRecords(n, nodeAttributes(), withNames),
	}
	for _, c := range n.components {
		if c.IsTemporary() {
			continue
		}
		rec.Components = append(rec.Components, buildComponentRecord(c, withNames))
	}
	for _, child := range n.children {
		if child.IsTemporary() {
			continue
		}
		rec.Children = append(rec.Children, buildNodeRecord(child, withNames))
	}
	return rec
}

func buildComponentRecord(c Component, withNames bool) componentRecord {
	rec := componentRecord{
		TypeName: c.TypeName(),
		TypeHash: c.TypeHash(),
		ID:       c.ID(),
	}
	if u, ok := c.(*UnknownComponent); ok {
		// Raw values captured at load time pass through untouched.
		for _, v := range u.RawValues() {
			rec.Attrs = append(rec.Attrs, attrRecord{Value: v})
		}
		return rec
	}
	rec.Attrs = buildAttrRecords(c, attribute.Infos(c.TypeHash()), withNames)
	return rec
}

func buildAttrRecords(obj attribute.Serializable, infos []attribute.Info, withNames bool) []attrRecord {
	var out []attrRecord
	for _, info := range infos {
		if info.Mode&attribute.File == 0 || info.Get == nil {
			continue
		}
		rec := attrRecord{Value: info.Get(obj)}
		if withNames {
			rec.Name = info.Name
		}
		out = append(out, rec)
	}
	return out
}

// --- Instantiating a hierarchy from records ---

// modeForID keeps a loaded object in the ID space it was saved from. The
// recorded numeric ID itself is not reused; only its range matters.
func modeForID(id uint32, fallback CreateMode) CreateMode {
	if id == 0 {
		return fallback
	}
	if IsReplicatedID(id) {
		return Replicated
	}
	return Local
}

// instantiateNode creates the recorded subtree under parent. Recorded IDs
// are fed to the resolver, not assigned; every created object receives a
// fresh ID from the pool its recorded ID belonged to.
func instantiateNode(rec *nodeRecord, parent *Node, mode CreateMode, resolver *Resolver) (*Node, error) {
	node := parent.CreateChild("", modeForID(rec.ID, mode))
	if node == nil {
		return nil, errors.New("could not create child node")
	}
	resolver.AddNode(rec.ID, node)
	if err := populateNode(rec, node, mode, resolver); err != nil {
		return nil, err
	}
	return node, nil
}

// populateNode applies a record to an existing node and builds its
// components and children. The scene root is populated this way instead of
// being recreated.
func populateNode(rec *nodeRecord, node *Node, mode CreateMode, resolver *Resolver) error {
	applyAttrRecords(node, nodeAttributes(), rec.Attrs)

	for _, crec := range rec.Components {
		if err := instantiateComponent(crec, node, mode, resolver); err != nil {
			return err
		}
	}
	for _, child := range rec.Children {
		if _, err := instantiateNode(child, node, mode, resolver); err != nil {
			return err
		}
	}
	return nil
}

func instantiateComponent(rec componentRecord, node *Node, mode CreateMode, resolver *Resolver) error {
	typeHash := rec.TypeHash
	if typeHash == 0 && rec.TypeName != "" {
		typeHash = variant.Hash(rec.TypeName)
	}
	c := NewComponent(typeHash)
	if c == nil {
		// Preserve the data of unregistered types instead of dropping it.
		u := NewUnknownComponent(typeHash)
		if rec.TypeName != "" {
			u.typeName = rec.TypeName
		}
		values := make([]variant.Variant, len(rec.Attrs))
		for i, a := range rec.Attrs {
			values[i] = a.Value
		}
		u.SetRawValues(values)
		node.AddComponent(u, 0, modeForID(rec.ID, mode))
		resolver.AddComponent(rec.ID, u)
		return nil
	}
	node.AddComponent(c, 0, modeForID(rec.ID, mode))
	resolver.AddComponent(rec.ID, c)
	applyAttrRecords(c, attribute.Infos(typeHash), rec.Attrs)
	return nil
}

// applyAttrRecords writes recorded values back through the attribute
// setters. Named records match by name, so a reordered or extended
// attribute list still loads older files; unnamed records apply
// positionally over the File-mode attributes.
func applyAttrRecords(obj attribute.Serializable, infos []attribute.Info, attrs []attrRecord) {
	fileInfos := make([]attribute.Info, 0, len(infos))
	for _, info := range infos {
		if info.Mode&attribute.File != 0 {
			fileInfos = append(fileInfos, info)
		}
	}
	positional := 0
	for _, rec := range attrs {
		var info *attribute.Info
		if rec.Name != "" {
			for i := range fileInfos {
				if fileInfos[i].Name == rec.Name {
					info = &fileInfos[i]
					break
				}
			}
		} else if positional < len(fileInfos) {
			info = &fileInfos[positional]
			positional++
		}
		if info == nil || info.Set == nil {
			continue
		}
		info.Set(obj, rec.Value)
	}
}

// --- Scene-level record application ---

// saveRecord captures the whole scene, root attributes included.
func (s *Scene) saveRecord(withNames bool) *nodeRecord {
	return buildNodeRecord(&s.Node, withNames)
}

// loadRecord replaces the scene contents with the recorded document in one
// synchronous pass.
func (s *Scene) loadRecord(rec *nodeRecord) error {
	s.Clear()
	resolver := NewResolver(s.logger)
	resolver.AddNode(rec.ID, &s.Node)
	if err := populateNode(rec, &s.Node, Replicated, resolver); err != nil {
		return err
	}
	resolver.Resolve()
	return nil
}
