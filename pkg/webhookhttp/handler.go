package webhookhttp

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/billingkit/pkg/logger"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

const defaultMaxBodyBytes = 1 << 20

// Reconciler is the part of subscription.Service the handler drives.
type Reconciler interface {
	Handle(ctx context.Context, ev subscription.ProviderEvent) (subscription.HandlingResult, error)
}

type Handler struct {
	rec         Reconciler
	log         *slog.Logger
	maxBody     int64
	credentials map[string]string
}

type Option func(*Handler)

func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}

// WithMaxBodyBytes caps the accepted request body size.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBody = n
		}
	}
}

// WithBasicAuth requires the provider to call the webhook URL with these
// credentials. An empty user disables the check.
func WithBasicAuth(user, password string) Option {
	return func(h *Handler) {
		if user != "" {
			h.credentials = map[string]string{user: password}
		}
	}
}

func New(rec Reconciler, opts ...Option) *Handler {
	if rec == nil {
		panic("webhookhttp: nil reconciler")
	}
	h := &Handler{rec: rec, log: logger.Discard(), maxBody: defaultMaxBodyBytes}
	for _, opt := range opts {
		opt(h)
	}
	h.log = h.log.With(logger.Component("webhookhttp"))
	return h
}

// Routes returns a router accepting POST / for mounting under the webhook path.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	if h.credentials != nil {
		r.Use(middleware.BasicAuth("billing webhooks", h.credentials))
	}
	r.Use(middleware.AllowContentType("application/json"))
	r.Post("/", h.ServeHTTP)
	return r
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	resp := h.handle(w, r)
	if err := resp.Render(w); err != nil {
		h.log.WarnContext(r.Context(), "failed to write webhook response", logger.Error(err))
	}
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request) response {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return textResponse{status: http.StatusRequestEntityTooLarge}
		}
		h.log.WarnContext(ctx, "failed to read webhook body", logger.Error(err))
		return jsonResponse{status: http.StatusBadRequest, body: statusBody{Msg: msgNothingHere}}
	}

	ev, err := subscription.ParseEnvelope(body)
	if err != nil {
		h.log.InfoContext(ctx, "rejected webhook envelope", logger.Error(err))
		return jsonResponse{status: http.StatusBadRequest, body: statusBody{Msg: msgNothingHere}}
	}

	res, err := h.rec.Handle(ctx, ev)
	if err != nil {
		return textResponse{status: http.StatusInternalServerError, body: http.StatusText(http.StatusInternalServerError)}
	}
	return outcomeResponse(res)
}

func outcomeResponse(res subscription.HandlingResult) response {
	switch res.Outcome {
	case subscription.OutcomeHandled:
		return textResponse{status: http.StatusOK, body: msgHandled}
	case subscription.OutcomeOwnerNotFound:
		return textResponse{status: http.StatusOK, body: msgOwnerNotFound}
	case subscription.OutcomeIgnored:
		return textResponse{status: http.StatusOK}
	case subscription.OutcomeInvalid:
		return jsonResponse{status: http.StatusInternalServerError, body: statusBody{}}
	default:
		return textResponse{status: http.StatusNotFound, body: msgMethodMissing}
	}
}
