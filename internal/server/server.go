package server

import (
	"context"
	"net"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/scenesync/scenesync/internal/core/observability/log"
	"github.com/scenesync/scenesync/internal/core/replication"
	"github.com/scenesync/scenesync/internal/core/resource"
	"github.com/scenesync/scenesync/internal/core/scene"
)

// Server runs one authoritative scene and streams its state to websocket
// clients. The scene is only ever touched from the tick goroutine; the HTTP
// surface serves data exported from there.
type Server struct {
	scene     *scene.Scene
	resources resource.Cache
	feed      *Feed
	metrics   *Metrics

	httpServer *http.Server
	listener   net.Listener

	// Server state
	running int32 // atomic bool
	closed  int32 // atomic bool

	config Config
	logger log.Log

	workerGroup sync.WaitGroup
	stopChan    chan struct{}

	// mutationChan hands scene edits to the tick goroutine.
	mutationChan chan func(*scene.Scene)
}

// Config holds server configuration.
type Config struct {
	// Network settings
	ListenAddr string

	// Simulation settings
	TickRate       int // scene updates per second
	AsyncLoadingMs int // per-frame budget for async scene loading

	// Content settings
	ScenePath      string // binary scene loaded at startup, optional
	ResourceDir    string // root of the resource cache, optional
	ResourceLoader int    // background loader goroutines

	// Export settings
	SceneJSONInterval time.Duration // how often /scene.json is refreshed

	// Logging
	LogLevel log.Level
}

// DefaultConfig returns default server configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:        "127.0.0.1:8080",
		TickRate:          30,
		AsyncLoadingMs:    5,
		ResourceLoader:    2,
		SceneJSONInterval: time.Second,
		LogLevel:          log.LevelInfo,
	}
}

// New creates a server with an empty scene.
func New(config Config, logger log.Log) *Server {
	if config.TickRate <= 0 {
		config.TickRate = DefaultConfig().TickRate
	}
	if config.SceneJSONInterval <= 0 {
		config.SceneJSONInterval = DefaultConfig().SceneJSONInterval
	}
	if logger == nil {
		logger = log.New(config.LogLevel)
	}
	logger = logger.With(log.String("component", "server"))

	metrics := NewMetrics()
	sc := scene.NewScene(logger)
	if config.AsyncLoadingMs > 0 {
		sc.SetAsyncLoadingMs(config.AsyncLoadingMs)
	}

	var cache resource.Cache
	if config.ResourceDir != "" {
		workers := config.ResourceLoader
		if workers <= 0 {
			workers = 1
		}
		cache = resource.NewDirCache(config.ResourceDir, workers, logger)
		sc.SetResourceCache(cache)
	}

	return &Server{
		scene:        sc,
		resources:    cache,
		feed:         NewFeed(logger, metrics),
		metrics:      metrics,
		config:       config,
		logger:       logger,
		stopChan:     make(chan struct{}),
		mutationChan: make(chan func(*scene.Scene), 64),
	}
}

// Scene returns the authoritative scene. Callers must only touch it from
// the same goroutine that calls Start, before the server runs, or from a
// Mutate callback.
func (s *Server) Scene() *scene.Scene { return s.scene }

// Feed returns the websocket feed, mainly for tests.
func (s *Server) Feed() *Feed { return s.feed }

// Start begins serving. It launches the tick loop and the HTTP listener
// and returns once both are running.
func (s *Server) Start() error {
	if atomic.LoadInt32(&s.closed) == 1 {
		return ErrServerClosed
	}
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		return ErrServerAlreadyRunning
	}

	if s.config.ScenePath != "" {
		if err := s.loadStartupScene(); err != nil {
			atomic.StoreInt32(&s.running, 0)
			return err
		}
	}

	listener, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		atomic.StoreInt32(&s.running, 0)
		return errors.Wrap(err, "listen")
	}
	s.listener = listener

	router := mux.NewRouter()
	s.feed.Routes(router)
	s.httpServer = &http.Server{
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	s.workerGroup.Add(2)
	go s.serveHTTP()
	go s.tickLoop()

	s.logger.Info("server started",
		log.String("addr", listener.Addr().String()),
		log.Int("tick_rate", s.config.TickRate))
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) loadStartupScene() error {
	data, err := os.ReadFile(s.config.ScenePath)
	if err != nil {
		return errors.Wrap(err, "read startup scene")
	}
	mode := scene.LoadScene
	if s.resources != nil {
		mode = scene.LoadSceneAndResources
	}
	if err = s.scene.LoadAsyncBinary(data, mode); err != nil {
		return errors.Wrap(err, "load startup scene")
	}
	s.logger.Info("startup scene loading", log.String("path", s.config.ScenePath))
	return nil
}

func (s *Server) serveHTTP() {
	defer s.workerGroup.Done()
	err := s.httpServer.Serve(s.listener)
	if err != nil && err != http.ErrServerClosed {
		s.logger.Error("http listener failed", log.Err(err))
	}
}

// tickLoop is the simulation heart: it updates the scene at the configured
// rate, diffs the replicated state and pushes the results to the feed.
func (s *Server) tickLoop() {
	defer s.workerGroup.Done()

	interval := time.Second / time.Duration(s.config.TickRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	jsonDue := time.Now()
	last := time.Now()
	for {
		select {
		case <-s.stopChan:
			return
		case now := <-ticker.C:
			dt := float32(now.Sub(last).Seconds())
			last = now
			s.tick(dt)
			if now.After(jsonDue) {
				s.exportSceneJSON()
				jsonDue = now.Add(s.config.SceneJSONInterval)
			}
		case fn := <-s.mutationChan:
			fn(s.scene)
		}
	}
}

// Mutate schedules fn to run on the tick goroutine with exclusive access
// to the scene. It returns ErrServerNotRunning if the server is stopped.
func (s *Server) Mutate(fn func(*scene.Scene)) error {
	if atomic.LoadInt32(&s.running) != 1 {
		return ErrServerNotRunning
	}
	select {
	case s.mutationChan <- fn:
		return nil
	case <-s.stopChan:
		return ErrServerNotRunning
	}
}

func (s *Server) tick(dt float32) {
	start := time.Now()

	s.scene.Update(dt)

	deltas, removals := s.scene.PrepareNetworkUpdate()
	if len(deltas) > 0 {
		data, err := replication.EncodeUpdate(deltas)
		if err != nil {
			s.logger.Error("encode update failed", log.Err(err))
		} else {
			s.feed.Broadcast(data)
		}
	}
	if len(removals.Nodes) > 0 || len(removals.Components) > 0 {
		data, err := replication.EncodeRemovals(removals)
		if err != nil {
			s.logger.Error("encode removals failed", log.Err(err))
		} else {
			s.feed.Broadcast(data)
		}
	}

	if s.feed.HasPending() && !s.scene.IsAsyncLoading() {
		s.flushJoins()
	}

	s.metrics.TickDuration.Observe(time.Since(start).Seconds())
}

func (s *Server) flushJoins() {
	sceneData, err := s.scene.ToBinary()
	if err != nil {
		s.logger.Error("snapshot serialization failed", log.Err(err))
		return
	}
	msg, err := replication.EncodeSnapshot(sceneData)
	if err != nil {
		s.logger.Error("snapshot framing failed", log.Err(err))
		return
	}
	s.feed.FlushJoins(msg)
}

func (s *Server) exportSceneJSON() {
	if s.scene.IsAsyncLoading() {
		return
	}
	data, err := s.scene.ToJSON()
	if err != nil {
		s.logger.Error("scene json export failed", log.Err(err))
		return
	}
	s.feed.SetSceneJSON(data)
}

// Stop shuts the server down gracefully: the tick loop halts, sessions are
// disconnected and the HTTP listener drains.
func (s *Server) Stop() error {
	if !atomic.CompareAndSwapInt32(&s.running, 1, 0) {
		return ErrServerNotRunning
	}

	close(s.stopChan)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown incomplete", log.Err(err))
	}
	s.feed.CloseAll()
	s.workerGroup.Wait()

	s.logger.Info("server stopped")
	return nil
}

// Close stops the server if running and releases its resources. The server
// cannot be restarted afterwards.
func (s *Server) Close() error {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return nil
	}
	var err error
	if atomic.LoadInt32(&s.running) == 1 {
		err = s.Stop()
	}
	if s.resources != nil {
		if cerr := s.resources.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
