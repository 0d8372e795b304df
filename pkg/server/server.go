// Package server exposes chat sessions over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	loggerpkg "github.com/proteinchat/proteinchat-go/pkg/logger"
	"github.com/proteinchat/proteinchat-go/pkg/pathguard"
	"github.com/proteinchat/proteinchat-go/pkg/proteinchat"
)

var errTooManySessions = errors.New("too many active sessions")

// Server owns the HTTP routes and the in-memory session table.
type Server struct {
	app         *proteinchat.App
	guard       pathguard.Guard
	maxSessions int
	logger      loggerpkg.Logger
	engine      *gin.Engine
	now         func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// entry serializes requests on one session. lastUsed holds unix nanos.
type entry struct {
	mu       sync.Mutex
	session  *proteinchat.Session
	lastUsed atomic.Int64
}

func (e *entry) touch(t time.Time) { e.lastUsed.Store(t.UnixNano()) }

// New builds the routes for app. Embedding paths are resolved under
// the configured server.embedding_root.
func New(app *proteinchat.App, logger loggerpkg.Logger) (*Server, error) {
	if app == nil {
		return nil, errors.New("app is required")
	}
	cfg := app.Config().Server
	guard, err := pathguard.New(cfg.EmbeddingRoot)
	if err != nil {
		return nil, err
	}

	s := &Server{
		app:         app,
		guard:       guard,
		maxSessions: cfg.MaxSessions,
		logger:      loggerpkg.OrNop(logger),
		now:         time.Now,
		sessions:    make(map[string]*entry),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	r.GET("/healthz", s.handleHealth)
	api := r.Group("/api/sessions")
	api.POST("", s.handleCreate)
	api.GET("/:id", s.handleGet)
	api.DELETE("/:id", s.handleDelete)
	api.POST("/:id/upload", s.handleUpload)
	api.POST("/:id/ask", s.handleAsk)
	api.POST("/:id/answer", s.handleAnswer)
	api.POST("/:id/reset", s.handleReset)
	s.engine = r
	return s, nil
}

// Handler returns the gin engine as an http.Handler.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		loggerpkg.Info(s.logger, "http front end listening", map[string]any{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		loggerpkg.Info(s.logger, "http request", map[string]any{
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"elapsed_ms": time.Since(start).Milliseconds(),
		})
	}
}

// add stores session under a new id. When the table is full the least
// recently used idle session is evicted first.
func (s *Server) add(session *proteinchat.Session) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxSessions > 0 && len(s.sessions) >= s.maxSessions && !s.evictLocked() {
		return "", errTooManySessions
	}
	id := uuid.NewString()
	e := &entry{session: session}
	e.touch(s.now())
	s.sessions[id] = e
	return id, nil
}

// evictLocked drops the least recently used session that no request holds.
// s.mu must be held.
func (s *Server) evictLocked() bool {
	var (
		victim string
		oldest int64
	)
	for id, e := range s.sessions {
		if used := e.lastUsed.Load(); victim == "" || used < oldest {
			if !e.mu.TryLock() {
				continue
			}
			e.mu.Unlock()
			victim, oldest = id, used
		}
	}
	if victim == "" {
		return false
	}
	delete(s.sessions, victim)
	loggerpkg.Info(s.logger, "session evicted", map[string]any{
		"id":       victim,
		"idle_ms":  s.now().Sub(time.Unix(0, oldest)).Milliseconds(),
		"sessions": len(s.sessions),
	})
	return true
}

func (s *Server) lookup(id string) (*entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	return e, ok
}

func (s *Server) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}
