package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

func listNotifications(notes NotificationService) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := notes.ListForUser(c.Request().Context(), currentUser(c))
		if err != nil {
			return err
		}
		if list == nil {
			list = []domain.Notification{}
		}
		return c.JSON(http.StatusOK, list)
	}
}

func markNotificationRead(notes NotificationService) echo.HandlerFunc {
	return func(c echo.Context) error {
		n, err := notes.MarkRead(c.Request().Context(), c.Param("id"))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, n)
	}
}
