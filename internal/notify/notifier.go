package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/moajmalnk/skillmount-support/internal/shared/events"
	"github.com/moajmalnk/skillmount-support/internal/ticket"
)

// Notifier turns ticket events into notification rows, exactly once per
// event id.
type Notifier struct {
	Log   *slog.Logger
	Store *Store
}

func (n *Notifier) Handle(ctx context.Context, env events.Envelope) error {
	shouldProcess, err := n.Store.StartProcessing(ctx, ProcessedEvent{
		EventID:     env.EventID,
		EventType:   env.EventType,
		Aggregate:   env.Aggregate,
		AggregateID: env.AggregateID,
		Payload:     env.Payload,
	})
	if err != nil {
		return err
	}
	if !shouldProcess {
		n.Log.Info("event_skip_done", slog.String("event_id", env.EventID), slog.String("event_type", env.EventType))
		return nil
	}

	if err := n.process(ctx, env); err != nil {
		_ = n.Store.MarkFailed(ctx, env.EventID, err.Error())
		return err
	}

	if err := n.Store.MarkDone(ctx, env.EventID); err != nil {
		_ = n.Store.MarkFailed(ctx, env.EventID, err.Error())
		return err
	}
	return nil
}

func (n *Notifier) process(ctx context.Context, env events.Envelope) error {
	switch env.EventType {
	case events.MessageCreated:
		var m ticket.Message
		if err := json.Unmarshal(env.Payload, &m); err != nil {
			return err
		}
		return n.Store.InsertNotification(ctx, Notification{
			UserID:   m.Sender,
			TicketID: env.AggregateID,
			Kind:     env.EventType,
			Body:     fmt.Sprintf("%s replied on ticket %s", m.SenderName, env.AggregateID),
		})

	case events.StatusChanged:
		var p struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return err
		}
		return n.Store.InsertNotification(ctx, Notification{
			TicketID: env.AggregateID,
			Kind:     env.EventType,
			Body:     fmt.Sprintf("ticket %s is now %s", env.AggregateID, p.Status),
		})

	case events.TicketCreated:
		return n.Store.InsertNotification(ctx, Notification{
			TicketID: env.AggregateID,
			Kind:     env.EventType,
			Body:     fmt.Sprintf("ticket %s created", env.AggregateID),
		})

	default:
		n.Log.Warn("event_unknown_type", slog.String("event_type", env.EventType))
		return nil
	}
}
