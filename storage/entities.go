package storage

import (
	"time"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

// entity represents base table entity keys.
type entity struct {
	PartitionKey string `json:"PartitionKey"`
	RowKey       string `json:"RowKey"`
}

const (
	EdmDateTime = "Edm.DateTime"
	EdmBoolean  = "Edm.Boolean"
)

const (
	tasksPartition = "task"
	usersPartition = "user"

	kindAccount    = "account"
	kindEmailIndex = "email"
	emailRowPrefix = "email:"
)

type taskEntity struct {
	entity
	Title         string    `json:"Title"`
	Description   string    `json:"Description"`
	DueDate       time.Time `json:"DueDate"`
	DueDateType   string    `json:"DueDate@odata.type"`
	Priority      string    `json:"Priority"`
	Status        string    `json:"Status"`
	CreatorID     string    `json:"CreatorId"`
	AssignedToID  string    `json:"AssignedToId"`
	CreatedAt     time.Time `json:"CreatedAt"`
	CreatedAtType string    `json:"CreatedAt@odata.type"`
	UpdatedAt     time.Time `json:"UpdatedAt"`
	UpdatedAtType string    `json:"UpdatedAt@odata.type"`
}

func newTaskEntity(t domain.Task) taskEntity {
	return taskEntity{
		entity:        entity{PartitionKey: tasksPartition, RowKey: t.ID},
		Title:         t.Title,
		Description:   t.Description,
		DueDate:       t.DueDate.UTC(),
		DueDateType:   EdmDateTime,
		Priority:      string(t.Priority),
		Status:        string(t.Status),
		CreatorID:     t.CreatorID,
		AssignedToID:  t.AssignedToID,
		CreatedAt:     t.CreatedAt.UTC(),
		CreatedAtType: EdmDateTime,
		UpdatedAt:     t.UpdatedAt.UTC(),
		UpdatedAtType: EdmDateTime,
	}
}

func (e taskEntity) task() domain.Task {
	return domain.Task{
		ID:           e.RowKey,
		Title:        e.Title,
		Description:  e.Description,
		DueDate:      e.DueDate.UTC(),
		Priority:     domain.Priority(e.Priority),
		Status:       domain.Status(e.Status),
		CreatorID:    e.CreatorID,
		AssignedToID: e.AssignedToID,
		CreatedAt:    e.CreatedAt.UTC(),
		UpdatedAt:    e.UpdatedAt.UTC(),
	}
}

// userEntity shares the users partition with its email index row.
type userEntity struct {
	entity
	Kind          string    `json:"Kind"`
	Name          string    `json:"Name"`
	Email         string    `json:"Email"`
	PasswordHash  string    `json:"PasswordHash"`
	CreatedAt     time.Time `json:"CreatedAt"`
	CreatedAtType string    `json:"CreatedAt@odata.type"`
	UpdatedAt     time.Time `json:"UpdatedAt"`
	UpdatedAtType string    `json:"UpdatedAt@odata.type"`
}

// userProfileUpdate is merged into an account row; the password hash is never touched.
type userProfileUpdate struct {
	entity
	Name          string    `json:"Name"`
	Email         string    `json:"Email"`
	UpdatedAt     time.Time `json:"UpdatedAt"`
	UpdatedAtType string    `json:"UpdatedAt@odata.type"`
}

type emailIndexEntity struct {
	entity
	Kind   string `json:"Kind"`
	UserID string `json:"UserId"`
}

func newUserEntity(u domain.User) userEntity {
	return userEntity{
		entity:        entity{PartitionKey: usersPartition, RowKey: u.ID},
		Kind:          kindAccount,
		Name:          u.Name,
		Email:         u.Email,
		PasswordHash:  u.PasswordHash,
		CreatedAt:     u.CreatedAt.UTC(),
		CreatedAtType: EdmDateTime,
		UpdatedAt:     u.UpdatedAt.UTC(),
		UpdatedAtType: EdmDateTime,
	}
}

func newEmailIndexEntity(email, userID string) emailIndexEntity {
	return emailIndexEntity{
		entity: entity{PartitionKey: usersPartition, RowKey: emailRowPrefix + email},
		Kind:   kindEmailIndex,
		UserID: userID,
	}
}

func (e userEntity) user() domain.User {
	return domain.User{
		ID:           e.RowKey,
		Name:         e.Name,
		Email:        e.Email,
		PasswordHash: e.PasswordHash,
		CreatedAt:    e.CreatedAt.UTC(),
		UpdatedAt:    e.UpdatedAt.UTC(),
	}
}

// notificationEntity is partitioned by recipient.
type notificationEntity struct {
	entity
	Message       string    `json:"Message"`
	IsRead        bool      `json:"IsRead"`
	IsReadType    string    `json:"IsRead@odata.type"`
	CreatedAt     time.Time `json:"CreatedAt"`
	CreatedAtType string    `json:"CreatedAt@odata.type"`
}

type notificationReadUpdate struct {
	entity
	IsRead     bool   `json:"IsRead"`
	IsReadType string `json:"IsRead@odata.type"`
}

func newNotificationEntity(n domain.Notification) notificationEntity {
	return notificationEntity{
		entity:        entity{PartitionKey: n.UserID, RowKey: n.ID},
		Message:       n.Message,
		IsRead:        n.IsRead,
		IsReadType:    EdmBoolean,
		CreatedAt:     n.CreatedAt.UTC(),
		CreatedAtType: EdmDateTime,
	}
}

func (e notificationEntity) notification() domain.Notification {
	return domain.Notification{
		ID:        e.RowKey,
		UserID:    e.PartitionKey,
		Message:   e.Message,
		IsRead:    e.IsRead,
		CreatedAt: e.CreatedAt.UTC(),
	}
}

// auditEntity is partitioned by the audited entity id.
type auditEntity struct {
	entity
	Action        string    `json:"Action"`
	EntityType    string    `json:"EntityType"`
	UserID        string    `json:"UserId"`
	FromStatus    string    `json:"FromStatus"`
	ToStatus      string    `json:"ToStatus"`
	CreatedAt     time.Time `json:"CreatedAt"`
	CreatedAtType string    `json:"CreatedAt@odata.type"`
}

func newAuditEntity(a domain.AuditLog) auditEntity {
	return auditEntity{
		entity:        entity{PartitionKey: a.EntityID, RowKey: a.ID},
		Action:        a.Action,
		EntityType:    a.EntityType,
		UserID:        a.UserID,
		FromStatus:    string(a.Details.From),
		ToStatus:      string(a.Details.To),
		CreatedAt:     a.CreatedAt.UTC(),
		CreatedAtType: EdmDateTime,
	}
}

func (e auditEntity) auditLog() domain.AuditLog {
	return domain.AuditLog{
		ID:         e.RowKey,
		Action:     e.Action,
		EntityID:   e.PartitionKey,
		EntityType: e.EntityType,
		UserID:     e.UserID,
		Details:    domain.StatusChange{From: domain.Status(e.FromStatus), To: domain.Status(e.ToStatus)},
		CreatedAt:  e.CreatedAt.UTC(),
	}
}
