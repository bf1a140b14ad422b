package emit

import (
	"context"
	"encoding/json"
	"log/slog"

	"cloud.google.com/go/pubsub"
)

// PubSubEmitter publishes terminal events to a Pub/Sub topic. Publishing
// happens in the background; failures are logged and dropped, never
// surfaced to the investigation path.
type PubSubEmitter struct {
	ctx   context.Context
	topic *pubsub.Topic
}

// NewPubSubEmitter connects to projectID/topicID.
func NewPubSubEmitter(ctx context.Context, projectID, topicID string) (*PubSubEmitter, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &PubSubEmitter{ctx: ctx, topic: client.Topic(topicID)}, nil
}

func (e *PubSubEmitter) Emit(event Event) {
	b, err := json.Marshal(event)
	if err != nil {
		slog.Warn("pubsub event marshal failed", "err", err)
		return
	}
	res := e.topic.Publish(e.ctx, &pubsub.Message{
		Data: b,
		Attributes: map[string]string{
			"status":     event.Status,
			"risk_level": event.RiskLevel,
		},
	})
	go func() {
		if _, err := res.Get(e.ctx); err != nil {
			slog.Warn("pubsub publish failed", "investigation", event.InvestigationID, "err", err)
		}
	}()
}
