package realtime

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

// EventQueue accepts serialized event envelopes.
type EventQueue interface {
	EnqueueEvent(ctx context.Context, message string) error
}

// QueueSink exports every event to a queue for downstream consumers.
type QueueSink struct {
	q   EventQueue
	now func() time.Time
}

func NewQueueSink(q EventQueue) *QueueSink {
	return &QueueSink{q: q, now: time.Now}
}

func (s *QueueSink) BroadcastAll(ctx context.Context, event string, payload any) error {
	return s.enqueue(ctx, "", event, payload)
}

func (s *QueueSink) NotifyUser(ctx context.Context, userID, event string, payload any) error {
	return s.enqueue(ctx, userID, event, payload)
}

func (s *QueueSink) enqueue(ctx context.Context, room, event string, payload any) error {
	msg, err := encode(event, payload)
	if err != nil {
		return err
	}
	data, err := sonic.MarshalString(envelope{Room: room, Event: event, Data: msg.Data, Timestamp: s.now().UnixMilli()})
	if err != nil {
		return err
	}
	return s.q.EnqueueEvent(ctx, data)
}

// Fanout delivers every event to each target. A failing target is logged
// and does not stop delivery to the rest.
type Fanout struct {
	targets []domain.Broadcaster
	log     *log.Logger
}

func NewFanout(logger *log.Logger, targets ...domain.Broadcaster) *Fanout {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Fanout{targets: targets, log: logger}
}

func (f *Fanout) BroadcastAll(ctx context.Context, event string, payload any) error {
	for _, t := range f.targets {
		if err := t.BroadcastAll(ctx, event, payload); err != nil {
			f.log.WithError(err).WithField("event", event).Warnf("broadcast via %T failed", t)
		}
	}
	return nil
}

func (f *Fanout) NotifyUser(ctx context.Context, userID, event string, payload any) error {
	for _, t := range f.targets {
		if err := t.NotifyUser(ctx, userID, event, payload); err != nil {
			f.log.WithError(err).WithFields(log.Fields{"event": event, "user": userID}).Warnf("notify via %T failed", t)
		}
	}
	return nil
}
