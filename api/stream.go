package api

import (
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/amankumar20031130-afk/taskflow/realtime"
)

// streamEvents serves live events as server-sent events. The caller is joined
// to their own room, so targeted events arrive without a join message.
func streamEvents(hub Hub, logger *log.Logger, keepAlive time.Duration) echo.HandlerFunc {
	return func(c echo.Context) error {
		res := c.Response()
		flusher, ok := res.Writer.(http.Flusher)
		if !ok {
			return echo.NewHTTPError(http.StatusInternalServerError, "stream unsupported")
		}

		userID := currentUser(c)
		client := hub.Connect(userID)
		defer hub.Disconnect(client)
		if err := hub.Join(client, userID); err != nil {
			return err
		}

		res.Header().Set(echo.HeaderContentType, "text/event-stream")
		res.Header().Set(echo.HeaderCacheControl, "no-cache")
		res.Header().Set(echo.HeaderConnection, "keep-alive")
		res.Header().Set("X-Accel-Buffering", "no")
		res.WriteHeader(http.StatusOK)
		flusher.Flush()

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()
		ctx := c.Request().Context()
		entry := logger.WithFields(log.Fields{"client": client.ID, "user": userID})
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, open := <-client.Messages():
				if !open {
					return nil
				}
				if err := writeEvent(res, msg); err != nil {
					entry.WithError(err).Debug("sse write failed")
					return nil
				}
				flusher.Flush()
			case <-ticker.C:
				if _, err := io.WriteString(res, ": keepalive\n\n"); err != nil {
					entry.WithError(err).Debug("sse keepalive failed")
					return nil
				}
				flusher.Flush()
			}
		}
	}
}

func writeEvent(w io.Writer, msg realtime.Message) error {
	if _, err := io.WriteString(w, "event: "+msg.Event+"\ndata: "); err != nil {
		return err
	}
	if _, err := w.Write(msg.Data); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n\n")
	return err
}
