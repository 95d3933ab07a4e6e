package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	requestlifecycle "pqrsd/contexts/citizen-services/request-lifecycle-service"
	wsadapter "pqrsd/contexts/citizen-services/request-lifecycle-service/adapters/websocket"
	"pqrsd/contexts/citizen-services/request-lifecycle-service/domain/entities"
	domainerrors "pqrsd/contexts/citizen-services/request-lifecycle-service/domain/errors"
	lifecyclehttp "pqrsd/contexts/citizen-services/request-lifecycle-service/transport/http"
	_ "pqrsd/internal/platform/httpserver/docs"
)

const (
	headerActorID   = "X-Actor-Id"
	headerActorRole = "X-Actor-Role"

	maxBodyBytes = 16 << 20
)

// Options toggles the optional surfaces mounted next to the lifecycle API.
type Options struct {
	AllowedOrigins []string
	// Metrics is mounted at /metrics when non-nil.
	Metrics       http.Handler
	EnableSwagger bool
}

type Server struct {
	mux        *http.ServeMux
	handler    http.Handler
	logger     *slog.Logger
	addr       string
	lifecycle  requestlifecycle.Module
	sink       *wsadapter.Sink
	options    Options
	httpServer *http.Server
}

func New(
	lifecycle requestlifecycle.Module,
	options Options,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:       http.NewServeMux(),
		logger:    logger,
		addr:      addr,
		lifecycle: lifecycle,
		options:   options,
	}
	if lifecycle.Dispatcher != nil {
		s.sink = wsadapter.NewSink(lifecycle.Dispatcher, options.AllowedOrigins, logger)
	}
	s.registerRoutes()
	s.handler = s.withCORS(s.mux)
	return s
}

// Handler is the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	origins := s.options.AllowedOrigins
	if len(origins) == 0 {
		return next
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", headerActorID, headerActorRole},
	}).Handler(next)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.options.EnableSwagger {
		s.mux.Handle("/swagger/", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}
	if s.options.Metrics != nil {
		s.mux.Handle("GET /metrics", s.options.Metrics)
	}
	if s.sink != nil {
		s.mux.Handle("GET /v1/ws/requests", s.sink)
	}

	s.mux.HandleFunc("POST /v1/requests", s.handleCreateRequest)
	s.mux.HandleFunc("GET /v1/requests/{request_id}", s.handleGetRequest)
	s.mux.HandleFunc("POST /v1/requests/{request_id}/assign", s.handleAssign)
	s.mux.HandleFunc("POST /v1/requests/{request_id}/reassign", s.handleReassign)
	s.mux.HandleFunc("POST /v1/requests/{request_id}/submit", s.handleSubmitResponse)
	s.mux.HandleFunc("POST /v1/requests/{request_id}/approve", s.handleApprove)
	s.mux.HandleFunc("POST /v1/requests/{request_id}/return", s.handleReturn)
	s.mux.HandleFunc("POST /v1/requests/{request_id}/sign", s.handleSign)
	s.mux.HandleFunc("POST /v1/requests/{request_id}/finalize", s.handleFinalize)
	s.mux.HandleFunc("GET /v1/requests/{request_id}/history", s.handleHistory)
	s.mux.HandleFunc("GET /v1/requests/{request_id}/holder", s.handleCurrentHolder)
	s.mux.HandleFunc("GET /v1/requests/{request_id}/deadline", s.handleDeadlineStatus)

	s.mux.HandleFunc("GET /v1/tracking/{radicado}", s.handleTrackByRadicado)
	s.mux.HandleFunc("GET /v1/deadlines/preview", s.handlePreviewDueDate)
	s.mux.HandleFunc("GET /v1/summary", s.handleSummary)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req lifecyclehttp.CreateRequestRequest
	if !decodeBody(w, r, &req) {
		return
	}
	intake, ok := s.resolveOptionalActor(w, r)
	if !ok {
		return
	}
	resp, err := s.lifecycle.Handler.CreateRequestHandler(r.Context(), intake, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (s *Server) handleGetRequest(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lifecycle.Handler.GetRequestHandler(r.Context(), r.PathValue("request_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req lifecyclehttp.AssignRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}
	resp, err := s.lifecycle.Handler.AssignHandler(r.Context(), actor, r.PathValue("request_id"), req)
	s.writeTransition(w, resp, err)
}

func (s *Server) handleReassign(w http.ResponseWriter, r *http.Request) {
	var req lifecyclehttp.ReassignRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}
	resp, err := s.lifecycle.Handler.ReassignHandler(r.Context(), actor, r.PathValue("request_id"), req)
	s.writeTransition(w, resp, err)
}

func (s *Server) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	var req lifecyclehttp.SubmitResponseRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}
	resp, err := s.lifecycle.Handler.SubmitResponseHandler(r.Context(), actor, r.PathValue("request_id"), req)
	s.writeTransition(w, resp, err)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req lifecyclehttp.ApproveRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}
	resp, err := s.lifecycle.Handler.ApproveHandler(r.Context(), actor, r.PathValue("request_id"), req)
	s.writeTransition(w, resp, err)
}

func (s *Server) handleReturn(w http.ResponseWriter, r *http.Request) {
	var req lifecyclehttp.ReturnRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}
	resp, err := s.lifecycle.Handler.ReturnHandler(r.Context(), actor, r.PathValue("request_id"), req)
	s.writeTransition(w, resp, err)
}

func (s *Server) handleSign(w http.ResponseWriter, r *http.Request) {
	var req lifecyclehttp.SignRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}
	resp, err := s.lifecycle.Handler.SignHandler(r.Context(), actor, r.PathValue("request_id"), req)
	s.writeTransition(w, resp, err)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req lifecyclehttp.FinalizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	actor, ok := s.resolveActor(w, r)
	if !ok {
		return
	}
	resp, err := s.lifecycle.Handler.FinalizeHandler(r.Context(), actor, r.PathValue("request_id"), req)
	s.writeTransition(w, resp, err)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lifecycle.Handler.HistoryHandler(r.Context(), r.PathValue("request_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrentHolder(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lifecycle.Handler.CurrentHolderHandler(r.Context(), r.PathValue("request_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeadlineStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lifecycle.Handler.DeadlineStatusHandler(r.Context(), r.PathValue("request_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTrackByRadicado(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lifecycle.Handler.TrackByRadicadoHandler(r.Context(), r.PathValue("radicado"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreviewDueDate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	days, err := strconv.Atoi(strings.TrimSpace(query.Get("business_days")))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "business_days must be an integer")
		return
	}
	resp, err := s.lifecycle.Handler.PreviewDueDateHandler(r.Context(), query.Get("start"), days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	resp, err := s.lifecycle.Handler.SummaryHandler(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeTransition(w http.ResponseWriter, resp lifecyclehttp.TransitionResponse, err error) {
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolveActor leaves role and holder checks to the engine; engine ordering
// still reports validation, missing request and wrong state first.
func (s *Server) resolveActor(w http.ResponseWriter, r *http.Request) (entities.Actor, bool) {
	actor, err := s.lifecycle.Identity.Resolve(
		r.Context(),
		r.Header.Get(headerActorID),
		r.Header.Get(headerActorRole),
	)
	if err != nil {
		writeDomainError(w, err)
		return entities.Actor{}, false
	}
	return actor, true
}

// resolveOptionalActor returns the zero actor when no identity headers are
// sent, so citizen intake falls back to the default intake actor.
func (s *Server) resolveOptionalActor(w http.ResponseWriter, r *http.Request) (entities.Actor, bool) {
	if strings.TrimSpace(r.Header.Get(headerActorID)) == "" {
		return entities.Actor{}, true
	}
	return s.resolveActor(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, domainerrors.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domainerrors.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, domainerrors.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "unauthorized", err.Error())
	case errors.Is(err, domainerrors.ErrConflict):
		writeJSON(w, http.StatusConflict, lifecyclehttp.ErrorResponse{
			Code:      "conflict",
			Message:   err.Error(),
			Retryable: true,
		})
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "cancelled", "request cancelled before commit")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, lifecyclehttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
