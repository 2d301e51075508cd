package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

type fakeQueue struct {
	messages []string
	err      error
}

func (f *fakeQueue) EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error) {
	if f.err != nil {
		return azqueue.EnqueueMessagesResponse{}, f.err
	}
	f.messages = append(f.messages, content)
	return azqueue.EnqueueMessagesResponse{}, nil
}

func TestEnqueueEvent(t *testing.T) {
	q := &fakeQueue{}
	s := &Storage{eventsQueue: q}
	if err := s.EnqueueEvent(context.Background(), `{"event":"task:deleted"}`); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if len(q.messages) != 1 || q.messages[0] != `{"event":"task:deleted"}` {
		t.Fatalf("unexpected messages %v", q.messages)
	}

	q.err = errors.New("queue full")
	if err := s.EnqueueEvent(context.Background(), "x"); err == nil {
		t.Fatalf("expected enqueue error")
	}
}

func TestEnqueueEventWithoutQueue(t *testing.T) {
	s := &Storage{}
	if err := s.EnqueueEvent(context.Background(), "x"); !errors.Is(err, ErrNoEventsQueue) {
		t.Fatalf("expected ErrNoEventsQueue got %v", err)
	}
}
