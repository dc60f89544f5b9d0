package a2ahttp

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/elnormous/contenttype"
	"github.com/google/uuid"
	"github.com/terra-constellata/a2a-server-go/dispatch"
	"github.com/terra-constellata/a2a-server-go/internal/logctx"
)

var (
	_ http.Handler = (*Handler)(nil)
)

var (
	jsonMediaType = contenttype.NewMediaType("application/json")
)

// maxPayloadBytes bounds the accepted request body size.
const maxPayloadBytes = 1 << 20

// Option configures the Handler.
type Option func(*newConfig)

type newConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger used by the handler. If not provided, logs
// are discarded. The handler wraps the logger so that records carry the
// per-request context group.
func WithLogger(log *slog.Logger) Option {
	return func(c *newConfig) { c.logger = log }
}

// Handler serves the A2A JSON-RPC endpoint over HTTP. It owns routing
// and framing only; all protocol semantics live in the dispatcher.
type Handler struct {
	mux        *http.ServeMux
	log        *slog.Logger
	dispatcher *dispatch.Dispatcher
}

// New creates an http.Handler in front of the dispatcher.
func New(d *dispatch.Dispatcher, opts ...Option) (*Handler, error) {
	if d == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	cfg := newConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	log := cfg.logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	} else {
		log = slog.New(logctx.Handler{Handler: log.Handler()})
	}

	h := &Handler{
		log:        log,
		dispatcher: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /jsonrpc", h.handleJSONRPC)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /methods", h.handleMethods)
	h.mux = mux

	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// handleJSONRPC delivers one raw payload to the dispatcher. A nil
// dispatch result means the payload was a notification: the transport
// acknowledges acceptance with 204 and nothing else, since notification
// processing continues in the background.
func (h *Handler) handleJSONRPC(w http.ResponseWriter, r *http.Request) {
	ctype, err := contenttype.GetMediaType(r)
	if err != nil || !ctype.Matches(jsonMediaType) {
		w.WriteHeader(http.StatusUnsupportedMediaType)
		return
	}

	ctx := logctx.WithRequestData(r.Context(), &logctx.RequestData{
		RequestID:  uuid.NewString(),
		UserAgent:  r.UserAgent(),
		RemoteAddr: r.RemoteAddr,
		Path:       r.URL.Path,
	})

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	h.log.DebugContext(ctx, "received raw message", slog.Int("bytes", len(body)))

	res := h.dispatcher.Handle(ctx, body)

	// The original A2A server is CORS-open; mirror that.
	w.Header().Set("Access-Control-Allow-Origin", "*")

	if res == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", jsonMediaType.String())
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(res); err != nil {
		h.log.ErrorContext(ctx, "failed to write response", slog.String("err", err.Error()))
	}
}

type healthResponse struct {
	Status  string   `json:"status"`
	Methods []string `json:"methods"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	if err := json.NewEncoder(w).Encode(healthResponse{
		Status:  "healthy",
		Methods: h.dispatcher.MethodNames(),
	}); err != nil {
		h.log.ErrorContext(r.Context(), "failed to write health response", slog.String("err", err.Error()))
	}
}

func (h *Handler) handleMethods(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", jsonMediaType.String())
	if err := json.NewEncoder(w).Encode(map[string]any{
		"methods": h.dispatcher.Schemas(),
	}); err != nil {
		h.log.ErrorContext(r.Context(), "failed to write methods response", slog.String("err", err.Error()))
	}
}
