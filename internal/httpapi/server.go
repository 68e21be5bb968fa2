package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/swaasthya/saathi/internal/config"
	"github.com/swaasthya/saathi/internal/conversation"
	"github.com/swaasthya/saathi/internal/messaging"
	"github.com/swaasthya/saathi/internal/observability"
	"github.com/swaasthya/saathi/internal/policy"
	"github.com/swaasthya/saathi/internal/protocol"
	"github.com/swaasthya/saathi/internal/session"
)

const (
	maxWebhookBody = 1 << 20
	emptyTwiML     = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`
)

// Enqueuer accepts inbound events for asynchronous handling.
type Enqueuer interface {
	Enqueue(ctx context.Context, ev messaging.InboundEvent) (bool, error)
}

// ReadinessCheck is one dependency checked by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Deps struct {
	Events    Enqueuer
	Sessions  session.Repository
	Hub       *messaging.Hub
	Validator *messaging.SignatureValidator
	Metrics   *observability.Metrics
	Ready     []ReadinessCheck
}

type Server struct {
	cfg      config.Config
	deps     Deps
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
	assets   http.Handler
}

func New(cfg config.Config, deps Deps) *Server {
	return &Server{
		cfg:     cfg,
		deps:    deps,
		metrics: deps.Metrics,
		assets:  newAssetHandler(cfg.PublicDir),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})
	r.Handle("/static/*", http.StripPrefix("/static/", s.assets))

	r.Post("/whatsapp-webhook", s.handleWhatsAppWebhook)
	r.Get("/v1/chat/ws", s.handleChatWS)
	r.Get("/v1/perf/latency", s.handlePerfLatency)
	r.Get("/v1/sessions/{user}", s.handleGetSession)
	r.Delete("/v1/sessions/{user}", s.handleDeleteSession)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	wsClients := 0
	if s.deps.Hub != nil {
		wsClients = s.deps.Hub.Count()
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"provider_mode": s.providerMode(),
		"session_store": s.cfg.SessionStore,
		"audio_backend": s.cfg.AudioBackend,
		"ws_clients":    wsClients,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.deps.Ready))
	for _, c := range s.deps.Ready {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[c.Name] = "ok"
	}
	state := "ready"
	if status != http.StatusOK {
		state = "degraded"
	}
	respondJSON(w, status, map[string]any{
		"status": state,
		"checks": checks,
	})
}

// handleWhatsAppWebhook acknowledges immediately; the dispatcher handles the
// event after the response is written.
func (s *Server) handleWhatsAppWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)
	if err := r.ParseForm(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_form", err.Error())
		return
	}
	if s.deps.Validator != nil {
		fullURL := strings.TrimRight(s.cfg.PublicBaseURL, "/") + r.URL.RequestURI()
		if !s.deps.Validator.Valid(fullURL, r.PostForm, r.Header.Get("X-Twilio-Signature")) {
			slog.Warn("webhook signature rejected", "url", fullURL)
			respondError(w, http.StatusForbidden, "invalid_signature", "signature mismatch")
			return
		}
	}

	ev, err := messaging.ParseWebhookForm(r.PostForm, time.Now())
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_event", err.Error())
		return
	}
	accepted, err := s.deps.Events.Enqueue(r.Context(), ev)
	switch {
	case errors.Is(err, conversation.ErrMailboxFull), errors.Is(err, conversation.ErrDispatcherClosed):
		slog.Warn("webhook event not queued", "event_id", ev.ID, "user", policy.RedactAddress(ev.From), "error", err)
		respondError(w, http.StatusServiceUnavailable, "busy", err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "enqueue_failed", err.Error())
		return
	}
	slog.Info("webhook event received",
		"event_id", ev.ID,
		"user", policy.RedactAddress(ev.From),
		"media", ev.MediaContentType,
		"duplicate", !accepted,
	)

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	sess, err := s.deps.Sessions.Get(r.Context(), userID)
	if errors.Is(err, session.ErrNotFound) {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "session_store", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := userParam(w, r)
	if !ok {
		return
	}
	if err := s.deps.Sessions.Delete(r.Context(), userID); err != nil {
		respondError(w, http.StatusInternalServerError, "session_store", err.Error())
		return
	}
	slog.Info("session reset over http", "user", policy.RedactAddress(userID))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	if s.deps.Hub == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "chat channel not configured")
		return
	}
	clientID := strings.TrimSpace(r.URL.Query().Get("client_id"))
	if clientID == "" {
		clientID = uuid.NewString()
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	outbound, detach := s.deps.Hub.Attach(clientID)
	defer detach()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		// Closing the connection unblocks the reader when the writer stops
		// first (replaced client, write failure).
		defer conn.Close()
		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					cancel()
					return
				}
			case msg, ok := <-outbound:
				if !ok {
					cancel()
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := protocol.TypeOf(msg); ok {
					s.metrics.ObserveWSMessage("outbound", string(t))
				}
			}
		}
	}()

	_ = s.deps.Hub.Notify(ctx, clientID, protocol.SystemEvent{
		Type:     protocol.TypeSystemEvent,
		ClientID: clientID,
		Code:     "connected",
	})

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.notifyError(ctx, clientID, "invalid_client_message", "gateway", false, err)
			continue
		}
		msg, ok := parsed.(protocol.ClientMessage)
		if !ok {
			continue
		}
		s.metrics.ObserveWSMessage("inbound", string(msg.Type))
		// Chat clients are unauthenticated, so media must travel inline.
		if msg.MediaURL != "" && !strings.HasPrefix(msg.MediaURL, "data:") {
			s.notifyError(ctx, clientID, "unsupported_media_url", "gateway", false, errors.New("media_url must be a data: URL"))
			continue
		}

		ev := messaging.InboundEvent{
			ID:               strings.TrimSpace(msg.MessageID),
			From:             messaging.WebSocketPrefix + clientID,
			Body:             msg.Body,
			MediaURL:         msg.MediaURL,
			MediaContentType: msg.MediaContentType,
			ReceivedAt:       time.Now().UTC(),
		}
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if _, err := s.deps.Events.Enqueue(ctx, ev); err != nil {
			s.notifyError(ctx, clientID, "enqueue_failed", "dispatcher", true, err)
		}
	}

	cancel()
	<-writerDone
}

func (s *Server) notifyError(ctx context.Context, clientID, code, source string, retryable bool, err error) {
	// Notify goes through the hub queue so the writer stays the only goroutine
	// touching the connection.
	nctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_ = s.deps.Hub.Notify(nctx, clientID, protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		ClientID:  clientID,
		Code:      code,
		Source:    source,
		Retryable: retryable,
		Detail:    err.Error(),
	})
}

func (s *Server) providerMode() string {
	if s.cfg.UseMockProviders() {
		return "mock"
	}
	return "live"
}

func userParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := chi.URLParam(r, "user")
	userID, err := url.PathUnescape(raw)
	if err != nil || strings.TrimSpace(userID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_user", "missing or malformed user id")
		return "", false
	}
	return userID, true
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
