package storage

import (
	"context"
	"errors"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

// Store is everything the services persist.
type Store interface {
	domain.TaskStorage
	domain.UserStorage
	domain.NotificationStorage
	domain.AuditStorage
}

// Tables names the tables backing each entity.
type Tables struct {
	Users         string
	Tasks         string
	Notifications string
	Audit         string
}

// Storage provides access to the Azure Table Storage backed store.
type Storage struct {
	userTable         *aztables.Client
	taskTable         *aztables.Client
	notificationTable *aztables.Client
	auditTable        *aztables.Client
	eventsQueue       queueClient
}

type queueClient interface {
	EnqueueMessage(ctx context.Context, content string, o *azqueue.EnqueueMessageOptions) (azqueue.EnqueueMessagesResponse, error)
}

var retryStatusCodes = []int{408, 429, 500, 502, 503, 504}

// New creates a Storage instance from the given connection string.
// eventsQueue may be empty, in which case EnqueueEvent is unavailable.
func New(connStr string, tables Tables, eventsQueue string) (*Storage, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   retryStatusCodes,
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	s := &Storage{
		userTable:         svc.NewClient(tables.Users),
		taskTable:         svc.NewClient(tables.Tasks),
		notificationTable: svc.NewClient(tables.Notifications),
		auditTable:        svc.NewClient(tables.Audit),
	}
	if eventsQueue == "" {
		return s, nil
	}
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   retryStatusCodes,
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	s.eventsQueue = q
	return s, nil
}

// ErrNoEventsQueue is returned by EnqueueEvent when no queue is configured.
var ErrNoEventsQueue = errors.New("events queue not configured")

// EnqueueEvent appends a serialized event envelope to the events queue.
func (s *Storage) EnqueueEvent(ctx context.Context, message string) error {
	if s.eventsQueue == nil {
		return ErrNoEventsQueue
	}
	_, err := s.eventsQueue.EnqueueMessage(ctx, message, nil)
	return err
}

func statusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

func isNotFound(err error) bool { return statusCode(err) == 404 }
func isConflict(err error) bool { return statusCode(err) == 409 }

// isPreconditionFailed reports an ETag mismatch on a conditional write.
func isPreconditionFailed(err error) bool { return statusCode(err) == 412 }

func listAll(ctx context.Context, table *aztables.Client, filter string, each func([]byte) error) error {
	pager := table.NewListEntitiesPager(&aztables.ListEntitiesOptions{Filter: &filter})
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, e := range resp.Entities {
			if err := each(e); err != nil {
				return err
			}
		}
	}
	return nil
}
