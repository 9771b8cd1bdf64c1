package daemon

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"batchwatch/internal/logger"
	"batchwatch/internal/model"
	"batchwatch/internal/repository"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const wsWriteTimeout = 10 * time.Second

type StatusProvider interface {
	Snapshot() model.AggregatorSnapshot
}

type Server struct {
	echo     *echo.Echo
	status   StatusProvider
	hub      *Hub
	repo     *repository.BatchRepository
	port     int
	stopCh   chan struct{}
	upgrader websocket.Upgrader
}

// NewServer builds the daemon API. repo may be nil when history is disabled.
func NewServer(status StatusProvider, hub *Hub, repo *repository.BatchRepository, port int) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:   e,
		status: status,
		hub:    hub,
		repo:   repo,
		port:   port,
		stopCh: make(chan struct{}, 1),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/status", s.handleStatus)
	s.echo.POST("/stop", s.handleStop)
	s.echo.GET("/batches", s.handleBatches)
	s.echo.GET("/ws", s.handleWS)
}

func (s *Server) Start() {
	go func() {
		addr := "127.0.0.1:" + strconv.Itoa(s.port)
		logger.Log.Info("daemon server started",
			zap.String("addr", addr))

		if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("daemon server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) StopCh() <-chan struct{} {
	return s.stopCh
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

type statusResponse struct {
	Aggregator model.AggregatorSnapshot `json:"aggregator"`
	Clients    int                      `json:"clients"`
	Stored     *repository.Stats        `json:"stored,omitempty"`
}

func (s *Server) handleStatus(c echo.Context) error {
	resp := statusResponse{
		Aggregator: s.status.Snapshot(),
	}
	if s.hub != nil {
		resp.Clients = s.hub.Clients()
	}
	if s.repo != nil {
		stats, err := s.repo.GetStats()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		resp.Stored = &stats
	}

	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStop(c echo.Context) error {
	select {
	case s.stopCh <- struct{}{}:
	default:
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "stopping"})
}

func (s *Server) handleBatches(c echo.Context) error {
	if s.repo == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "history is disabled"})
	}

	n := 20
	if nStr := c.QueryParam("n"); nStr != "" {
		if parsed, err := strconv.Atoi(nStr); err == nil && parsed > 0 {
			n = parsed
		}
	}

	if path := c.QueryParam("path"); path != "" {
		events, err := s.repo.GetByPath(path, n)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		return c.JSON(http.StatusOK, events)
	}

	batches, err := s.repo.GetRecent(n)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, batches)
}

func (s *Server) handleWS(c echo.Context) error {
	if s.hub == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "streaming is disabled"})
	}

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return nil
	}
	defer func(conn *websocket.Conn) {
		_ = conn.Close()
	}(conn)

	output, cancel := s.hub.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg := <-output:
			if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
				return nil
			}
			if err := conn.WriteJSON(msg); err != nil {
				logger.Log.Debug("websocket write failed", zap.Error(err))
				return nil
			}
		case <-done:
			return nil
		}
	}
}
