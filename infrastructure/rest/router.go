// Package rest exposes the request/response boundary: history reads, appends
// routed through the delivery service, the user list and the websocket upgrade.
package rest

import (
	"hive-chat/api"
	"hive-chat/auth"
	"hive-chat/domain/chat"
	"hive-chat/errors"
	"hive-chat/services"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	AllowedOrigins    []string
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

type Handler struct {
	log         *slog.Logger
	chatService services.IChatService
}

func NewHandler(log *slog.Logger, chatService services.IChatService) *Handler {
	return &Handler{log: log, chatService: chatService}
}

// NewRouter wires every HTTP route. The websocket gateway is mounted on /ws.
func NewRouter(config RouterConfig, handler *Handler, gateway http.Handler, tokens *auth.TokenManager) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// CORS must be global to answer OPTIONS preflight
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: config.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/", handler.Root)
	r.Get("/healthz", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if config.RateLimitRequests > 0 {
			r.Use(httprate.Limit(config.RateLimitRequests, config.RateLimitWindow,
				httprate.WithKeyFuncs(httprate.KeyByIP)))
		}
		r.Use(auth.Middleware(tokens))
		r.Get("/users", handler.ListUsers)
		r.Get("/messages", handler.GetMessages)
		r.Post("/messages", handler.PostMessage)
		r.Handle("/ws", gateway)
	})
	return r
}

func (h *Handler) Root(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Server is running!"))
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.chatService.ListUsers(r.Context(), chat.ListUsersCommand{
		ExcludeID: r.URL.Query().Get("excludeId"),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.FromUsers(users))
}

func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	user1, user2 := r.URL.Query().Get("user1"), r.URL.Query().Get("user2")
	if userID, ok := auth.UserIDFromContext(r.Context()); ok && userID != user1 && userID != user2 {
		h.writeError(w, errors.ErrIdentityMismatch)
		return
	}
	messages, err := h.chatService.GetHistory(r.Context(), chat.GetHistoryCommand{UserA: user1, UserB: user2})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, api.FromMessages(messages))
}

// PostMessage stores the message and pushes it to live connections, like sendMessage.
func (h *Handler) PostMessage(w http.ResponseWriter, r *http.Request) {
	var request api.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Message: "malformed body"})
		return
	}
	if err := auth.CheckIdentity(r.Context(), request.SenderID); err != nil {
		h.writeError(w, err)
		return
	}
	stored, err := h.chatService.Send(r.Context(), nil, request.ToCommand())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, api.FromMessage(stored))
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	code := errors.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		h.log.Error("Request failed", "error", err)
	}
	h.writeJSON(w, code, api.ErrorResponse{Message: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.log.Debug("Response not written", "error", err)
	}
}
