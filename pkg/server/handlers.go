package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/proteinchat/proteinchat-go/pkg/conversation"
	"github.com/proteinchat/proteinchat-go/pkg/embedding"
	loggerpkg "github.com/proteinchat/proteinchat-go/pkg/logger"
)

type uploadRequest struct {
	Name          string      `json:"name"`
	EmbeddingPath string      `json:"embedding_path"`
	Embedding     [][]float64 `json:"embedding"`
}

type askRequest struct {
	Message string `json:"message"`
}

type answerRequest struct {
	NumBeams    *int     `json:"num_beams"`
	Temperature *float64 `json:"temperature"`
}

type sessionResponse struct {
	ID           string                     `json:"id"`
	Reply        string                     `json:"reply,omitempty"`
	Message      string                     `json:"message,omitempty"`
	Proteins     int                        `json:"proteins"`
	Conversation *conversation.Conversation `json:"conversation"`
}

func errorJSON(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"ok": false, "error": err.Error()})
}

func (s *Server) handleHealth(c *gin.Context) {
	cfg := s.app.Config()
	c.JSON(http.StatusOK, gin.H{
		"ok":     true,
		"arch":   cfg.Model.Arch,
		"device": s.app.Device().String(),
	})
}

func (s *Server) loadEmbedding(req uploadRequest) (*embedding.Embedding, error) {
	switch {
	case req.EmbeddingPath != "" && len(req.Embedding) > 0:
		return nil, errors.New("set either embedding_path or embedding, not both")
	case req.EmbeddingPath != "":
		path, err := s.guard.Resolve(req.EmbeddingPath)
		if err != nil {
			return nil, err
		}
		return embedding.Load(path)
	case len(req.Embedding) > 0:
		name := strings.TrimSpace(req.Name)
		if name == "" {
			name = "inline"
		}
		return embedding.FromRows(name, req.Embedding)
	default:
		return nil, errors.New("embedding_path or embedding is required")
	}
}

func (s *Server) handleCreate(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	emb, err := s.loadEmbedding(req)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	session, err := s.app.UploadProtein(emb)
	if err != nil {
		errorJSON(c, http.StatusUnprocessableEntity, err)
		return
	}
	id, err := s.add(session)
	if err != nil {
		errorJSON(c, http.StatusServiceUnavailable, err)
		return
	}
	c.JSON(http.StatusCreated, sessionResponse{
		ID:           id,
		Reply:        conversation.UploadReply,
		Proteins:     len(session.Conversation.Proteins),
		Conversation: session.Conversation,
	})
}

// withSession looks up :id and runs fn while holding the session lock.
func (s *Server) withSession(c *gin.Context, fn func(e *entry)) {
	id := c.Param("id")
	e, ok := s.lookup(id)
	if !ok {
		errorJSON(c, http.StatusNotFound, errors.New("session not found"))
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.touch(s.now())
	fn(e)
}

func (s *Server) respond(c *gin.Context, e *entry, status int, reply, message string) {
	c.JSON(status, sessionResponse{
		ID:           c.Param("id"),
		Reply:        reply,
		Message:      message,
		Proteins:     len(e.session.Conversation.Proteins),
		Conversation: e.session.Conversation,
	})
}

func (s *Server) handleGet(c *gin.Context) {
	s.withSession(c, func(e *entry) {
		s.respond(c, e, http.StatusOK, "", "")
	})
}

func (s *Server) handleDelete(c *gin.Context) {
	if !s.remove(c.Param("id")) {
		errorJSON(c, http.StatusNotFound, errors.New("session not found"))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleUpload(c *gin.Context) {
	var req uploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	emb, err := s.loadEmbedding(req)
	if err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	s.withSession(c, func(e *entry) {
		if err := s.app.Upload(e.session, emb); err != nil {
			errorJSON(c, http.StatusUnprocessableEntity, err)
			return
		}
		s.respond(c, e, http.StatusOK, conversation.UploadReply, "")
	})
}

func (s *Server) handleAsk(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	s.withSession(c, func(e *entry) {
		if err := s.app.Ask(e.session, req.Message); err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
		s.respond(c, e, http.StatusOK, "", "")
	})
}

func (s *Server) handleAnswer(c *gin.Context) {
	var req answerRequest
	// An empty body keeps the configured defaults.
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
	}
	opts := s.app.AnswerOptions()
	if req.NumBeams != nil {
		if *req.NumBeams < 1 {
			errorJSON(c, http.StatusBadRequest, errors.New("num_beams must be at least 1"))
			return
		}
		opts.NumBeams = *req.NumBeams
	}
	if req.Temperature != nil {
		if *req.Temperature < 0 {
			errorJSON(c, http.StatusBadRequest, errors.New("temperature must be non-negative"))
			return
		}
		opts.Temperature = *req.Temperature
	}

	s.withSession(c, func(e *entry) {
		msg, err := s.app.Answer(c.Request.Context(), e.session, opts)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, conversation.ErrPlaceholderMismatch) {
				status = http.StatusConflict
			}
			loggerpkg.Warn(s.logger, "answer failed", map[string]any{"error": err.Error()})
			errorJSON(c, status, err)
			return
		}
		s.respond(c, e, http.StatusOK, "", msg)
	})
}

func (s *Server) handleReset(c *gin.Context) {
	s.withSession(c, func(e *entry) {
		s.app.Reset(e.session)
		s.respond(c, e, http.StatusOK, "", "")
	})
}
