package api

import (
	"sync"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"

	"github.com/amankumar20031130-afk/taskflow/realtime"
)

const (
	wsJoin   = "join"
	wsJoined = "joined"
	wsError  = "error"
)

// wsCommand is a client to server frame.
type wsCommand struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

// serveWebSocket upgrades the request and relays hub messages to the socket.
// Origin checks are left to the CORS configuration.
func serveWebSocket(hub Hub, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID := currentUser(c)
		server := websocket.Server{
			Handler: func(ws *websocket.Conn) {
				runSocket(ws, hub, userID, logger)
			},
		}
		server.ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

type socketWriter struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (w *socketWriter) send(msg realtime.Message) error {
	frame, err := sonic.MarshalString(msg)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return websocket.Message.Send(w.ws, frame)
}

func (w *socketWriter) reply(event, text string) error {
	data, err := sonic.Marshal(text)
	if err != nil {
		return err
	}
	return w.send(realtime.Message{Event: event, Data: data})
}

func runSocket(ws *websocket.Conn, hub Hub, userID string, logger *log.Logger) {
	client := hub.Connect(userID)
	entry := logger.WithFields(log.Fields{"client": client.ID, "user": userID})
	out := &socketWriter{ws: ws}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range client.Messages() {
			if err := out.send(msg); err != nil {
				entry.WithError(err).Debug("websocket send failed")
				_ = ws.Close()
				// keep draining until the hub closes the queue
				continue
			}
		}
	}()

	for {
		var frame string
		if err := websocket.Message.Receive(ws, &frame); err != nil {
			break
		}
		var cmd wsCommand
		if err := sonic.UnmarshalString(frame, &cmd); err != nil {
			_ = out.reply(wsError, "malformed message")
			continue
		}
		switch cmd.Type {
		case wsJoin:
			if cmd.Payload != userID {
				_ = out.reply(wsError, "cannot join another user's room")
				continue
			}
			if err := hub.Join(client, userID); err != nil {
				entry.WithError(err).Warn("websocket join failed")
				continue
			}
			_ = out.reply(wsJoined, userID)
		default:
			_ = out.reply(wsError, "unknown message type")
		}
	}

	hub.Disconnect(client)
	<-done
	_ = ws.Close()
}
