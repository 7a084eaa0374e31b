package client

import (
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scenesync/scenesync/internal/core/observability/log"
	"github.com/scenesync/scenesync/internal/core/scene"
	"github.com/scenesync/scenesync/internal/server"
)

func newFeedServer(t *testing.T) *server.Server {
	t.Helper()
	cfg := server.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.TickRate = 120
	srv := server.New(cfg, log.Nop())
	require.NoError(t, srv.Start())
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

func mutate(t *testing.T, srv *server.Server, fn func(*scene.Scene)) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, srv.Mutate(func(s *scene.Scene) {
		fn(s)
		close(done)
	}))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("mutation was not applied")
	}
}

func newSyncedClient(t *testing.T, srv *server.Server) *Client {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.ServerAddr = srv.Addr()
	c := New(cfg, log.Nop())
	require.NoError(t, c.Connect())
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.WaitSynced(5*time.Second))
	return c
}

func TestConnectLifecycle(t *testing.T) {
	srv := newFeedServer(t)

	cfg := DefaultClientConfig()
	cfg.ServerAddr = srv.Addr()
	c := New(cfg, log.Nop())

	require.NoError(t, c.Connect())
	assert.ErrorIs(t, c.Connect(), ErrAlreadyConnected)
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Connect(), ErrClientClosed)
}

func TestWaitSyncedRequiresConnect(t *testing.T) {
	c := New(DefaultClientConfig(), log.Nop())
	assert.ErrorIs(t, c.WaitSynced(time.Millisecond), ErrNotConnected)
}

func TestMirrorReceivesSnapshot(t *testing.T) {
	srv := newFeedServer(t)

	var nodeID uint32
	mutate(t, srv, func(s *scene.Scene) {
		n := s.CreateChild("hero", scene.Replicated)
		n.SetPosition(mgl32.Vec3{1, 2, 3})
		nodeID = n.ID()
	})

	c := newSyncedClient(t, srv)

	c.View(func(s *scene.Scene) {
		hero := s.GetNode(nodeID)
		require.NotNil(t, hero)
		assert.Equal(t, "hero", hero.Name())
		assert.Equal(t, mgl32.Vec3{1, 2, 3}, hero.Position())
	})
}

func TestMirrorTracksLiveChanges(t *testing.T) {
	srv := newFeedServer(t)

	var nodeID uint32
	mutate(t, srv, func(s *scene.Scene) {
		nodeID = s.CreateChild("mover", scene.Replicated).ID()
	})

	c := newSyncedClient(t, srv)

	mutate(t, srv, func(s *scene.Scene) {
		s.GetNode(nodeID).SetPosition(mgl32.Vec3{7, 0, 0})
	})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var pos mgl32.Vec3
		c.View(func(s *scene.Scene) {
			if n := s.GetNode(nodeID); n != nil {
				pos = n.Position()
			}
		})
		if pos == (mgl32.Vec3{7, 0, 0}) {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("mirror never saw the position change")
}

func TestMirrorTracksRemoval(t *testing.T) {
	srv := newFeedServer(t)

	var nodeID uint32
	mutate(t, srv, func(s *scene.Scene) {
		nodeID = s.CreateChild("doomed", scene.Replicated).ID()
	})

	c := newSyncedClient(t, srv)

	mutate(t, srv, func(s *scene.Scene) {
		s.GetNode(nodeID).Remove()
	})

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		gone := false
		c.View(func(s *scene.Scene) {
			gone = s.GetNode(nodeID) == nil
		})
		if gone {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("mirror never saw the removal")
}
