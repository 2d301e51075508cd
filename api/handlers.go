package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/amankumar20031130-afk/taskflow/domain"
)

const defaultKeepAlive = 25 * time.Second

// Options tunes transport details of the HTTP surface.
type Options struct {
	CookieSecure bool
	// Deduper enables Idempotency-Key handling on task creation. May be nil.
	Deduper Deduper
	// KeepAlive is the SSE comment interval. Zero uses the default.
	KeepAlive time.Duration
}

// Register wires up all routes on the provided Echo instance and installs the
// error handler and JSON serializer they rely on.
func Register(e *echo.Echo, svc Services, sessions Sessions, hub Hub, logger *log.Logger, opts Options) {
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = defaultKeepAlive
	}
	e.HTTPErrorHandler = errorHandler(logger)
	e.JSONSerializer = JSONSerializer{}

	session := requireSession(sessions, false)

	e.GET("/health", health)

	authGroup := e.Group("/api/auth")
	authGroup.POST("/register", register(svc.Users, sessions, opts.CookieSecure))
	authGroup.POST("/login", login(svc.Users, sessions, opts.CookieSecure))
	authGroup.POST("/logout", logout(opts.CookieSecure))
	authGroup.GET("/me", getMe(svc.Users), session)
	authGroup.PUT("/me", updateMe(svc.Users), session)
	authGroup.GET("/users", listUsers(svc.Users), session)

	tasks := e.Group("/api/tasks", observeRequests(logger), session)
	tasks.POST("", createTask(svc.Tasks), idempotent(opts.Deduper, logger))
	tasks.GET("", listTasks(svc.Tasks))
	tasks.PUT("/:id", updateTask(svc.Tasks))
	tasks.DELETE("/:id", deleteTask(svc.Tasks))
	tasks.GET("/:id/history", taskHistory(svc.Tasks))

	notes := e.Group("/api/notifications", session)
	notes.GET("", listNotifications(svc.Notifications))
	notes.PATCH("/:id/read", markNotificationRead(svc.Notifications))

	live := requireSession(sessions, true)
	e.GET("/api/stream", streamEvents(hub, logger, opts.KeepAlive), live)
	e.GET("/ws", serveWebSocket(hub, logger), live)
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

func health(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{Status: "ok", Timestamp: time.Now().UTC()})
}

func startSession(c echo.Context, sessions Sessions, userID string, secure bool) error {
	token, expires, err := sessions.Issue(userID)
	if err != nil {
		return err
	}
	c.SetCookie(sessionCookie(token, expires, secure))
	return nil
}

func register(users UserService, sessions Sessions, secure bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.RegisterInput
		if err := decodeJSON(c.Request(), &in); err != nil {
			return err
		}
		user, err := users.Register(c.Request().Context(), in)
		if err != nil {
			return err
		}
		if err := startSession(c, sessions, user.ID, secure); err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, user)
	}
}

func login(users UserService, sessions Sessions, secure bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.LoginInput
		if err := decodeJSON(c.Request(), &in); err != nil {
			return err
		}
		user, err := users.Login(c.Request().Context(), in)
		if err != nil {
			return err
		}
		if err := startSession(c, sessions, user.ID, secure); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, user)
	}
}

func logout(secure bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		c.SetCookie(expiredSessionCookie(secure))
		return c.JSON(http.StatusOK, messageResponse{Message: "Logged out successfully"})
	}
}

func getMe(users UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		user, err := users.Me(c.Request().Context(), currentUser(c))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, user)
	}
}

func updateMe(users UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		var in domain.ProfileInput
		if err := decodeJSON(c.Request(), &in); err != nil {
			return err
		}
		user, err := users.UpdateProfile(c.Request().Context(), currentUser(c), in)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, user)
	}
}

func listUsers(users UserService) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := users.Directory(c.Request().Context())
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, list)
	}
}
