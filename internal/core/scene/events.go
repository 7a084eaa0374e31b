package scene

// Payload types for the events the scene publishes on its bus. The event
// type constants live in the events package.

// UpdateEvent is the payload for SceneUpdate, SceneSubsystemUpdate,
// ScenePostUpdate and AttributeAnimationUpdate. Subsystems such as a
// physics world subscribe to SceneSubsystemUpdate to receive their
// per-frame step.
type UpdateEvent struct {
	Scene    *Scene
	TimeStep float32
}

// NodeAddedEvent is the payload for events.NodeAdded.
type NodeAddedEvent struct {
	Scene  *Scene
	Parent *Node
	Node   *Node
}

// NodeRemovedEvent is the payload for events.NodeRemoved.
type NodeRemovedEvent struct {
	Scene  *Scene
	Parent *Node
	Node   *Node
}

// ComponentAddedEvent is the payload for events.ComponentAdded.
type ComponentAddedEvent struct {
	Scene     *Scene
	Node      *Node
	Component Component
}

// ComponentRemovedEvent is the payload for events.ComponentRemoved.
type ComponentRemovedEvent struct {
	Scene     *Scene
	Node      *Node
	Component Component
}

// AsyncProgressEvent is the payload for events.AsyncLoadProgress.
type AsyncProgressEvent struct {
	Scene       *Scene
	Progress    float32
	LoadedNodes int
	TotalNodes  int
}

// AsyncFinishedEvent is the payload for events.AsyncLoadFinished.
type AsyncFinishedEvent struct {
	Scene *Scene
}
