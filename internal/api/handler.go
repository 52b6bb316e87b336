package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"ordering_assistant/pkg"
	"ordering_assistant/src/logger"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// SessionKeyHeader carries the generated key of an anonymous chat
const SessionKeyHeader = "X-Session-Key"

const maxBodyBytes = 1 << 20

// Assistant is what the routes need from the orchestrator
type Assistant interface {
	ProcessMessage(ctx context.Context, message, sessionKey string) pkg.AssistantResponse
	Status() pkg.AssistantStatus
	SessionStats(key string) (pkg.SessionStats, error)
	ClearSession(ctx context.Context, key string) error
	Transcript(ctx context.Context, key string) ([]pkg.LoggedTurn, error)
	SetSystemPrompt(key, content string) error
	Config() pkg.RuntimeConfig
	UpdateConfig(update pkg.RuntimeConfigUpdate) (pkg.RuntimeConfig, error)
}

// Handler serves the assistant over HTTP
type Handler struct {
	assistant Assistant
}

func NewHandler(assistant Assistant) *Handler {
	return &Handler{assistant: assistant}
}

// NewRouter builds the chi router with the standard middleware stack
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))
	h.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers the assistant routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/ai", func(r chi.Router) {
		r.Post("/chat", h.Chat)
		r.Get("/status", h.GetStatus)
		r.Get("/config", h.GetConfig)
		r.Put("/config", h.PutConfig)
		r.Route("/sessions/{key}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Delete("/", h.DeleteSession)
			r.Get("/transcript", h.GetTranscript)
			r.Put("/system", h.PutSystemPrompt)
		})
	})
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// Error writes a JSON error body
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

func decode(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	return sonic.Unmarshal(data, v)
}

type chatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Message     string   `json:"message"`
	Suggestions []string `json:"suggestions"`
}

// Chat answers one message. The session key is sessionId, then userId,
// then a fresh uuid returned in X-Session-Key.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		Error(w, http.StatusBadRequest, "message is required")
		return
	}

	key := req.SessionID
	if key == "" {
		key = req.UserID
	}
	if key == "" {
		key = uuid.NewString()
		w.Header().Set(SessionKeyHeader, key)
	}

	resp := h.assistant.ProcessMessage(r.Context(), req.Message, key)
	suggestions := resp.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	JSON(w, http.StatusOK, chatResponse{Message: resp.Message, Suggestions: suggestions})
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.assistant.Status())
}

func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, h.assistant.Config())
}

// PutConfig applies a partial runtime config; omitted fields keep their value
func (h *Handler) PutConfig(w http.ResponseWriter, r *http.Request) {
	var update pkg.RuntimeConfigUpdate
	if err := decode(r, &update); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	cfg, err := h.assistant.UpdateConfig(update)
	var cfgErr *pkg.ConfigurationError
	if errors.As(err, &cfgErr) {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, cfg)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	stats, err := h.assistant.SessionStats(chi.URLParam(r, "key"))
	if errors.Is(err, pkg.ErrSessionNotFound) {
		Error(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	JSON(w, http.StatusOK, stats)
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := h.assistant.ClearSession(r.Context(), key); err != nil {
		logger.Error().Err(err).Str("session_key", key).Msg("failed to clear session")
		Error(w, http.StatusInternalServerError, "failed to clear session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	turns, err := h.assistant.Transcript(r.Context(), key)
	if err != nil {
		logger.Error().Err(err).Str("session_key", key).Msg("failed to load transcript")
		Error(w, http.StatusInternalServerError, "failed to load transcript")
		return
	}
	if turns == nil {
		turns = []pkg.LoggedTurn{}
	}
	JSON(w, http.StatusOK, turns)
}

type systemPromptRequest struct {
	Content string `json:"content"`
}

func (h *Handler) PutSystemPrompt(w http.ResponseWriter, r *http.Request) {
	var req systemPromptRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.assistant.SetSystemPrompt(chi.URLParam(r, "key"), req.Content); err != nil {
		if errors.Is(err, pkg.ErrInvalidTurn) {
			Error(w, http.StatusBadRequest, err.Error())
			return
		}
		Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requestLogger logs one line per request through zerolog
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("http request")
		}()
		next.ServeHTTP(ww, r)
	})
}
