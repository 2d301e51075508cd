package storage

import (
	"strings"
	"time"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

// quote renders s as an OData string literal.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func eq(prop, value string) string {
	return prop + " eq " + quote(value)
}

func datetime(t time.Time) string {
	return "datetime'" + t.UTC().Format(time.RFC3339) + "'"
}

// taskFilter translates q into an OData filter over the tasks partition.
func taskFilter(q domain.TaskQuery) string {
	involved := "(" + eq("CreatorId", q.UserID) + " or " + eq("AssignedToId", q.UserID) + ")"
	clauses := []string{eq("PartitionKey", tasksPartition)}
	switch q.View {
	case domain.ViewAssigned:
		clauses = append(clauses, eq("AssignedToId", q.UserID))
	case domain.ViewCreated:
		clauses = append(clauses, eq("CreatorId", q.UserID))
	case domain.ViewOverdue:
		clauses = append(clauses, involved, "DueDate lt "+datetime(q.Now), "Status ne "+quote(string(domain.StatusCompleted)))
	default:
		clauses = append(clauses, involved)
	}
	if q.Status != "" {
		clauses = append(clauses, eq("Status", string(q.Status)))
	}
	if q.Priority != "" {
		clauses = append(clauses, eq("Priority", string(q.Priority)))
	}
	return strings.Join(clauses, " and ")
}
