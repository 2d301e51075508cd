package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
)

const queueAlreadyExists = "QueueAlreadyExists"

// Provision creates the tables and, when named, the events queue. Existing
// resources are left untouched so it can run on every deploy.
func Provision(ctx context.Context, connStr string, tables Tables, eventsQueue string) error {
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		return err
	}
	for _, name := range tables.names() {
		if _, err := svc.NewClient(name).CreateTable(ctx, nil); err != nil && !alreadyExists(err, string(aztables.TableAlreadyExists)) {
			return fmt.Errorf("create table %s: %w", name, err)
		}
	}
	if eventsQueue == "" {
		return nil
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, eventsQueue, nil)
	if err != nil {
		return err
	}
	if _, err := q.Create(ctx, nil); err != nil && !alreadyExists(err, queueAlreadyExists) {
		return fmt.Errorf("create queue %s: %w", eventsQueue, err)
	}
	return nil
}

func (t Tables) names() []string {
	out := make([]string, 0, 4)
	for _, name := range []string{t.Users, t.Tasks, t.Notifications, t.Audit} {
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

func alreadyExists(err error, code string) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.ErrorCode == code
}
