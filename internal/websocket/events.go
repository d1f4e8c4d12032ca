package websocket

import (
	"context"
	"encoding/json"

	"github.com/openblog/backend/internal/logger"
)

const (
	EventPostCreated = "post_created"
	EventPostUpdated = "post_updated"
	EventPostDeleted = "post_deleted"
)

// PostEvent is the message pushed to clients when the post collection
// changes.
type PostEvent struct {
	Type   string `json:"type"`
	PostID string `json:"postId"`
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
}

// EventBroadcaster publishes post change events to the hub.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// PostChanged notifies all connected clients of a post change.
func (b *EventBroadcaster) PostChanged(ctx context.Context, eventType, postID, title, author string) {
	data, err := json.Marshal(&PostEvent{
		Type:   eventType,
		PostID: postID,
		Title:  title,
		Author: author,
	})
	if err != nil {
		logger.Warn(ctx, "failed to encode post event", map[string]any{"error": err.Error()})
		return
	}

	b.hub.Broadcast(data)
}
