// Package resource implements the background-loading resource cache the
// scene's async loader preloads through. The scene core never interprets
// resource bytes; it only needs resources present before nodes that
// reference them are instantiated.
package resource

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/scenesync/scenesync/internal/core/observability/log"
	"github.com/scenesync/scenesync/internal/core/variant"
	"github.com/scenesync/scenesync/pkg/sequence"
)

// Ref names a resource by type hash and relative path.
type Ref = variant.ResourceRef

// Resource is one loaded asset.
type Resource struct {
	Ref  Ref
	Data []byte
}

// Cache hands out resources by ref. Get blocks; QueueBackground schedules
// a load on the worker pool and reports completion through the callback,
// which runs on a worker goroutine.
type Cache interface {
	Get(ref Ref) (*Resource, error)
	QueueBackground(ref Ref, priority int, done func(ref Ref, err error))
	Close() error
}

// DirCache loads resources from a directory tree and memoizes them.
// Background loads are drained by a fixed worker pool in priority order.
type DirCache struct {
	root   string
	logger log.Log

	mu     sync.Mutex
	loaded map[Ref]*Resource
	queue  *sequence.PriorityQueue[request]
	wake   chan struct{}

	group  *errgroup.Group
	cancel context.CancelFunc
}

type request struct {
	ref  Ref
	done func(ref Ref, err error)
}

var _ Cache = (*DirCache)(nil)

// NewDirCache creates a cache rooted at dir with the given worker count.
func NewDirCache(dir string, workers int, logger log.Log) *DirCache {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = log.Provide()
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &DirCache{
		root:   dir,
		logger: logger,
		loaded: make(map[Ref]*Resource),
		queue:  sequence.NewPriorityQueue[request](),
		wake:   make(chan struct{}, 1),
		cancel: cancel,
	}
	c.group, ctx = errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		c.group.Go(func() error { return c.worker(ctx) })
	}
	return c
}

// Get returns the resource, loading it synchronously on a miss.
func (c *DirCache) Get(ref Ref) (*Resource, error) {
	c.mu.Lock()
	if res, ok := c.loaded[ref]; ok {
		c.mu.Unlock()
		return res, nil
	}
	c.mu.Unlock()
	return c.load(ref)
}

// QueueBackground schedules a load. Already cached refs complete
// immediately on the calling goroutine.
func (c *DirCache) QueueBackground(ref Ref, priority int, done func(ref Ref, err error)) {
	c.mu.Lock()
	if _, ok := c.loaded[ref]; ok {
		c.mu.Unlock()
		if done != nil {
			done(ref, nil)
		}
		return
	}
	c.queue.Enqueue(request{ref: ref, done: done}, priority)
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Close stops the worker pool. Queued loads that have not started are
// dropped without their callbacks firing.
func (c *DirCache) Close() error {
	c.cancel()
	return c.group.Wait()
}

func (c *DirCache) worker(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.wake:
		}
		for {
			c.mu.Lock()
			req, ok := c.queue.Dequeue()
			c.mu.Unlock()
			if !ok {
				break
			}
			_, err := c.load(req.ref)
			if err != nil {
				c.logger.Warn("background resource load failed",
					log.String("name", req.ref.Name), log.Err(err))
			}
			if req.done != nil {
				req.done(req.ref, err)
			}
		}
	}
}

func (c *DirCache) load(ref Ref) (*Resource, error) {
	path, err := c.resolvePath(ref.Name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "load resource %q", ref.Name)
	}
	res := &Resource{Ref: ref, Data: data}
	c.mu.Lock()
	c.loaded[ref] = res
	c.mu.Unlock()
	return res, nil
}

// resolvePath rejects names escaping the cache root.
func (c *DirCache) resolvePath(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) || filepath.IsAbs(clean) {
		return "", errors.Errorf("resource name %q escapes the cache root", name)
	}
	return filepath.Join(c.root, clean), nil
}
