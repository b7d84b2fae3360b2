package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nimasrn/daily-mass/internal/model"
)

// InboundQueue carries normalized webhook events from the API to the
// processor.
type InboundQueue struct {
	*Queue
}

func NewInboundQueue(q *Queue) *InboundQueue {
	return &InboundQueue{q}
}

func (q *InboundQueue) PublishInbound(ctx context.Context, msg model.InboundMessage) (string, error) {
	return q.PublishJSON(ctx, msg, map[string]string{
		"channel":    string(msg.Channel),
		"message_id": msg.MessageID,
	})
}

func DecodeInbound(msg *Message) (model.InboundMessage, error) {
	var in model.InboundMessage
	if err := json.Unmarshal(msg.Data, &in); err != nil {
		return in, fmt.Errorf("decode inbound %s: %w", msg.ID, err)
	}
	return in, nil
}
