package scene

import (
	"encoding/json"
	"io"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/scenesync/scenesync/internal/core/events"
	"github.com/scenesync/scenesync/internal/core/observability/log"
	"github.com/scenesync/scenesync/internal/core/resource"
	"github.com/scenesync/scenesync/internal/core/variant"
)

// LoadMode selects what an async load touches.
type LoadMode uint8

const (
	// LoadResourcesOnly preloads the resources a scene file references
	// without modifying the scene. Regular updates keep running.
	LoadResourcesOnly LoadMode = iota
	// LoadScene replaces the scene contents, skipping resource preload.
	LoadScene
	// LoadSceneAndResources preloads resources first, then loads nodes.
	LoadSceneAndResources
)

// asyncProgress is the state of one in-flight async load. The document is
// decoded up front; what is spread across frames is resource preloading
// and the instantiation of the root's child subtrees.
type asyncProgress struct {
	mode     LoadMode
	doc      *nodeRecord
	resolver *Resolver

	// next root child subtree to instantiate
	cursor int

	loadedNodes int
	totalNodes  int

	// loadedResources is bumped from cache worker goroutines.
	loadedResources atomic.Int32
	totalResources  int
}

// IsAsyncLoading reports whether an async load is in flight.
func (s *Scene) IsAsyncLoading() bool { return s.asyncLoading }

// AsyncProgress returns load completion in [0, 1], counting both resource
// preloading and node instantiation.
func (s *Scene) AsyncProgress() float32 {
	if !s.asyncLoading {
		return 1
	}
	a := s.async
	total := a.totalResources + a.totalNodes
	if total == 0 {
		return 0
	}
	done := int(a.loadedResources.Load()) + a.loadedNodes
	return float32(done) / float32(total)
}

// LoadAsyncBinary starts an asynchronous load of a binary scene document.
func (s *Scene) LoadAsyncBinary(data []byte, mode LoadMode) error {
	rec, err := decodeBinaryScene(data)
	if err != nil {
		return err
	}
	return s.startAsyncLoading(rec, mode)
}

// LoadAsyncXML starts an asynchronous load of an XML scene document.
func (s *Scene) LoadAsyncXML(r io.Reader, mode LoadMode) error {
	rec, err := decodeXMLScene(r)
	if err != nil {
		return err
	}
	return s.startAsyncLoading(rec, mode)
}

// LoadAsyncJSON starts an asynchronous load of a JSON scene document.
func (s *Scene) LoadAsyncJSON(data []byte, mode LoadMode) error {
	var doc jsonNode
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.Wrap(err, "decode scene json")
	}
	return s.startAsyncLoading(jsonToRecord(doc), mode)
}

func (s *Scene) startAsyncLoading(rec *nodeRecord, mode LoadMode) error {
	if s.asyncLoading {
		return errors.New("an async load is already in progress")
	}

	a := &asyncProgress{
		mode:     mode,
		doc:      rec,
		resolver: NewResolver(s.logger),
	}
	if mode != LoadResourcesOnly {
		a.totalNodes = countNodes(rec) - 1 // the root itself is not recreated
	}

	if mode != LoadScene && s.resources != nil {
		refs := collectResourceRefs(rec, nil)
		a.totalResources = len(refs)
		for _, ref := range refs {
			s.resources.QueueBackground(ref, 0, func(resource.Ref, error) {
				a.loadedResources.Add(1)
			})
		}
	}

	if mode != LoadResourcesOnly {
		// The scene empties now; content appears over the coming frames.
		s.Clear()
		a.resolver.AddNode(rec.ID, &s.Node)
		applyAttrRecords(&s.Node, nodeAttributes(), rec.Attrs)
	}

	s.async = a
	s.asyncLoading = true
	return nil
}

// StopAsyncLoading abandons an in-flight async load. Nodes already
// instantiated stay in the scene.
func (s *Scene) StopAsyncLoading() {
	s.asyncLoading = false
	s.async = nil
}

// updateAsyncLoading runs one frame's worth of loading. Resource preload
// completion is only polled here, so all scene mutation stays on the logic
// goroutine.
func (s *Scene) updateAsyncLoading() {
	a := s.async
	if a == nil {
		s.asyncLoading = false
		return
	}

	if int(a.loadedResources.Load()) < a.totalResources {
		s.publishAsyncProgress(a)
		return
	}

	if a.mode == LoadResourcesOnly {
		s.finishAsyncLoading(a)
		return
	}

	deadline := time.Now().Add(time.Duration(s.asyncLoadingMs) * time.Millisecond)
	for a.cursor < len(a.doc.Children) {
		child := a.doc.Children[a.cursor]
		a.cursor++
		if _, err := instantiateNode(child, &s.Node, Replicated, a.resolver); err != nil {
			s.logger.Error("async load failed", log.Err(err))
			s.StopAsyncLoading()
			return
		}
		a.loadedNodes += countNodes(child)
		if !time.Now().Before(deadline) {
			break
		}
	}

	if a.cursor >= len(a.doc.Children) {
		a.resolver.Resolve()
		s.finishAsyncLoading(a)
		return
	}
	s.publishAsyncProgress(a)
}

func (s *Scene) publishAsyncProgress(a *asyncProgress) {
	s.bus.Publish(events.AsyncLoadProgress, AsyncProgressEvent{
		Scene:       s,
		Progress:    s.AsyncProgress(),
		LoadedNodes: a.loadedNodes,
		TotalNodes:  a.totalNodes,
	})
}

func (s *Scene) finishAsyncLoading(a *asyncProgress) {
	s.publishAsyncProgress(a)
	s.asyncLoading = false
	s.async = nil
	s.bus.Publish(events.AsyncLoadFinished, AsyncFinishedEvent{Scene: s})
}

// countNodes returns the node count of a recorded subtree, root included.
func countNodes(rec *nodeRecord) int {
	n := 1
	for _, child := range rec.Children {
		n += countNodes(child)
	}
	return n
}

// collectResourceRefs gathers every ResourceRef attribute in the document.
func collectResourceRefs(rec *nodeRecord, out []resource.Ref) []resource.Ref {
	for _, a := range rec.Attrs {
		out = appendRef(out, a.Value)
	}
	for _, c := range rec.Components {
		for _, a := range c.Attrs {
			out = appendRef(out, a.Value)
		}
	}
	for _, child := range rec.Children {
		out = collectResourceRefs(child, out)
	}
	return out
}

func appendRef(out []resource.Ref, v variant.Variant) []resource.Ref {
	if v.Type() != variant.TypeResourceRef {
		return out
	}
	ref := v.Resource()
	if ref.Name == "" {
		return out
	}
	for _, existing := range out {
		if existing == ref {
			return out
		}
	}
	return append(out, ref)
}

