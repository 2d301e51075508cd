package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

// respond encodes body and records the encode time.
func respond(c echo.Context, status int, body any) error {
	started := time.Now()
	err := c.JSON(status, body)
	metricsFrom(c).ObserveEncode(time.Since(started))
	if err != nil {
		metricsFrom(c).SetErrorStage("encode")
	}
	return err
}

// timed runs a service call and records it as store time.
func timed(c echo.Context, call func() error) error {
	m := metricsFrom(c)
	started := time.Now()
	err := call()
	m.ObserveStore(time.Since(started))
	if err != nil {
		m.SetErrorStage("service")
	}
	return err
}

func decodeBody(c echo.Context, dst any) error {
	if err := decodeJSON(c.Request(), dst); err != nil {
		metricsFrom(c).SetErrorStage("decode")
		return err
	}
	return nil
}

func createTask(tasks TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.CreateTaskInput
		if err := decodeBody(c, &in); err != nil {
			return err
		}
		var task *domain.Task
		err := timed(c, func() (err error) {
			task, err = tasks.CreateTask(c.Request().Context(), in, currentUser(c))
			return err
		})
		if err != nil {
			return err
		}
		metricsFrom(c).SetResultCount(1)
		return respond(c, http.StatusCreated, task)
	}
}

func listTasks(tasks TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		q := domain.TaskQuery{
			UserID:    currentUser(c),
			Status:    domain.Status(c.QueryParam("status")),
			Priority:  domain.Priority(c.QueryParam("priority")),
			View:      domain.ParseView(c.QueryParam("view")),
			SortByDue: c.QueryParam("sortBy") == "dueDate",
		}
		var list []domain.TaskView
		err := timed(c, func() (err error) {
			list, err = tasks.ListTasks(c.Request().Context(), q)
			return err
		})
		if err != nil {
			return err
		}
		if list == nil {
			list = []domain.TaskView{}
		}
		metricsFrom(c).SetResultCount(len(list))
		return respond(c, http.StatusOK, list)
	}
}

func updateTask(tasks TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var patch domain.TaskPatch
		if err := decodeBody(c, &patch); err != nil {
			return err
		}
		var task *domain.Task
		err := timed(c, func() (err error) {
			task, err = tasks.UpdateTask(c.Request().Context(), c.Param("id"), patch, currentUser(c))
			return err
		})
		if err != nil {
			return err
		}
		metricsFrom(c).SetResultCount(1)
		return respond(c, http.StatusOK, task)
	}
}

func deleteTask(tasks TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := timed(c, func() error {
			return tasks.DeleteTask(c.Request().Context(), c.Param("id"))
		})
		if err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func taskHistory(tasks TaskService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var entries []domain.AuditLog
		err := timed(c, func() (err error) {
			entries, err = tasks.TaskHistory(c.Request().Context(), c.Param("id"))
			return err
		})
		if err != nil {
			return err
		}
		if entries == nil {
			entries = []domain.AuditLog{}
		}
		metricsFrom(c).SetResultCount(len(entries))
		return respond(c, http.StatusOK, entries)
	}
}
