package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// envelope is the wire form of an event on the Redis channel and the events queue.
type envelope struct {
	Origin    string          `json:"origin,omitempty"`
	Room      string          `json:"room,omitempty"`
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// RedisRelay shares events between API instances. Events are delivered to
// the local hub immediately and published for the other instances; Run
// delivers what the others publish.
type RedisRelay struct {
	rc      *redis.Client
	channel string
	hub     *Hub
	origin  string
	log     *log.Logger

	retryDelay time.Duration
}

func NewRedisRelay(rc *redis.Client, channel string, hub *Hub, logger *log.Logger) *RedisRelay {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &RedisRelay{
		rc:         rc,
		channel:    channel,
		hub:        hub,
		origin:     uuid.NewString(),
		log:        logger,
		retryDelay: time.Second,
	}
}

func (r *RedisRelay) BroadcastAll(ctx context.Context, event string, payload any) error {
	return r.send(ctx, "", event, payload)
}

func (r *RedisRelay) NotifyUser(ctx context.Context, userID, event string, payload any) error {
	return r.send(ctx, userID, event, payload)
}

func (r *RedisRelay) send(ctx context.Context, room, event string, payload any) error {
	msg, err := encode(event, payload)
	if err != nil {
		return err
	}
	r.hub.Deliver(room, msg)
	data, err := sonic.Marshal(envelope{Origin: r.origin, Room: room, Event: event, Data: msg.Data, Timestamp: time.Now().UnixMilli()})
	if err != nil {
		return err
	}
	return r.rc.Publish(ctx, r.channel, data).Err()
}

// Run subscribes to the channel until ctx is done, resubscribing whenever
// the subscription drops.
func (r *RedisRelay) Run(ctx context.Context) {
	for {
		err := r.subscribe(ctx)
		if ctx.Err() != nil {
			return
		}
		r.log.WithError(err).WithField("channel", r.channel).Warn("realtime subscription closed, resubscribing")
		select {
		case <-ctx.Done():
			return
		case <-time.After(r.retryDelay):
		}
	}
}

func (r *RedisRelay) subscribe(ctx context.Context) error {
	sub := r.rc.Subscribe(ctx, r.channel)
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return redis.ErrClosed
			}
			var env envelope
			if err := sonic.UnmarshalString(msg.Payload, &env); err != nil {
				r.log.WithError(err).Error("unable to parse realtime event")
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			r.hub.Deliver(env.Room, Message{Event: env.Event, Data: env.Data})
		}
	}
}
