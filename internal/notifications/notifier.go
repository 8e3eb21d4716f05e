// Package notifications publishes idea notifications into Redis channels.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"agora/internal/middleware"
	"agora/internal/models"

	"github.com/redis/go-redis/v9"
)

// ModerationChannel receives abusive-content events.
const ModerationChannel = "notifications:moderation"

// UserChannel is the per-recipient channel.
func UserChannel(userID uint) string {
	return fmt.Sprintf("notifications:user:%d", userID)
}

// Event is the JSON payload published for a notification.
type Event struct {
	Kind           string    `json:"kind"`
	NotificationID uint      `json:"notification_id,omitempty"`
	IdeaID         uint      `json:"idea_id"`
	SenderID       *uint     `json:"sender_id,omitempty"`
	RecipientID    uint      `json:"recipient_id"`
	Related        []uint    `json:"related,omitempty"`
	SentAt         time.Time `json:"sent_at"`
}

// Notifier publishes notification events. A nil client makes every call a no-op.
type Notifier struct {
	rdb *redis.Client
	now func() time.Time
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb, now: time.Now}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID uint, payload string) error {
	if n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

func (n *Notifier) publish(ctx context.Context, channel string, ev Event) error {
	if n.rdb == nil {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return n.rdb.Publish(ctx, channel, string(body)).Err()
}

// Dispatch delivers a persisted notification to its recipient.
func (n *Notifier) Dispatch(ctx context.Context, note *models.Notification) error {
	return n.publish(ctx, UserChannel(note.RecipientID), Event{
		Kind:           note.Kind,
		NotificationID: note.ID,
		IdeaID:         note.IdeaID,
		SenderID:       note.SenderID,
		RecipientID:    note.RecipientID,
		SentAt:         n.now(),
	})
}

// DoAbusive warns the owner of an idea marked abusive and reports it to moderation, listing
// the notifications that led to the decision.
func (n *Notifier) DoAbusive(ctx context.Context, ideaID, ownerID uint, related []*models.Notification) error {
	ids := make([]uint, 0, len(related))
	for _, r := range related {
		ids = append(ids, r.ID)
	}
	ev := Event{
		Kind:        models.NotificationIdeaAbusive,
		IdeaID:      ideaID,
		RecipientID: ownerID,
		Related:     ids,
		SentAt:      n.now(),
	}
	if err := n.publish(ctx, UserChannel(ownerID), ev); err != nil {
		return err
	}
	if err := n.publish(ctx, ModerationChannel, ev); err != nil {
		return err
	}
	middleware.Logger.InfoContext(ctx, "abusive idea reported",
		slog.Uint64("idea_id", uint64(ideaID)),
		slog.Uint64("owner_id", uint64(ownerID)),
		slog.Int("related", len(ids)),
	)
	return nil
}
