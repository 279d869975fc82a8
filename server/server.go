// Package server 是 Engine 的 HTTP 接入层，请求超时只在这一层处理。
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/recommend"
)

// Recommender 是 server 依赖的引擎能力，*recommend.Engine 实现了它。
type Recommender interface {
	Recommend(ctx context.Context, req recommend.Request) (*recommend.Response, error)
	RecommendForUser(ctx context.Context, userID string, topN int) (*recommend.Response, error)
	PredictRating(userID, itemID string) (float64, bool)
	Info() recommend.Info
}

// Options 是 HTTP 服务参数。
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// RequestTimeout > 0 时为每个请求设置超时
	RequestTimeout time.Duration

	// DefaultTopN 是 GET 接口未传 top_n 时的取值
	DefaultTopN int

	// Gatherer 为空时使用 prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer

	Logger zerolog.Logger
}

// Server 包装 http.Server。
type Server struct {
	engine Recommender
	opts   Options
	logger zerolog.Logger
	router chi.Router
}

//nolint:gocritic // hugeParam
func New(engine Recommender, opts Options) *Server {
	if opts.DefaultTopN <= 0 {
		opts.DefaultTopN = 5
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		engine: engine,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "server").Logger(),
	}
	s.router = s.routes()
	return s
}

// Handler 返回路由，测试中直接配合 httptest 使用。
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", s.health)
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		if s.opts.RequestTimeout > 0 {
			r.Use(chimiddleware.Timeout(s.opts.RequestTimeout))
		}
		r.Post("/recommendations", s.recommend)
		r.Get("/users/{userID}/recommendations", s.recommendForUser)
		r.Get("/predict", s.predict)
	})
	return r
}

// Run 启动监听，ctx 取消后优雅退出。
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadTimeout:       s.opts.ReadTimeout,
		ReadHeaderTimeout: s.opts.ReadTimeout,
		WriteTimeout:      s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.opts.Addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info().Msg("shutting down http server")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"model":  s.engine.Info(),
	})
}

func (s *Server) recommend(w http.ResponseWriter, r *http.Request) {
	var req recommend.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, core.ErrorCodeInvalidInput, "invalid JSON body", err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = chimiddleware.GetReqID(r.Context())
	}
	resp, err := s.engine.Recommend(r.Context(), req)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) recommendForUser(w http.ResponseWriter, r *http.Request) {
	topN := s.opts.DefaultTopN
	if v := r.URL.Query().Get("top_n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.respondError(w, r, http.StatusBadRequest, core.ErrorCodeInvalidInput, "top_n must be an integer", err)
			return
		}
		topN = n
	}
	resp, err := s.engine.RecommendForUser(r.Context(), chi.URLParam(r, "userID"), topN)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, resp)
}

type predictResponse struct {
	UserID string  `json:"user_id"`
	ItemID string  `json:"item_id"`
	Rating float64 `json:"predicted_rating"`
	Known  bool    `json:"known"`
}

func (s *Server) predict(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, itemID := q.Get("user_id"), q.Get("item_id")
	if userID == "" || itemID == "" {
		s.respondError(w, r, http.StatusBadRequest, core.ErrorCodeInvalidInput, "user_id and item_id are required", nil)
		return
	}
	rating, ok := s.engine.PredictRating(userID, itemID)
	s.respondJSON(w, http.StatusOK, predictResponse{UserID: userID, ItemID: itemID, Rating: rating, Known: ok})
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func (s *Server) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case core.IsInvalidInput(err):
		s.respondError(w, r, http.StatusBadRequest, core.ErrorCodeInvalidInput, err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		s.respondError(w, r, http.StatusGatewayTimeout, "TIMEOUT", "request timed out", err)
	case core.IsUnavailable(err):
		s.respondError(w, r, http.StatusServiceUnavailable, core.ErrorCodeUnavailable, "dependency unavailable", err)
	case core.IsDataIntegrity(err):
		s.respondError(w, r, http.StatusInternalServerError, core.ErrorCodeDataIntegrity, "catalog data is inconsistent", err)
	default:
		s.respondError(w, r, http.StatusInternalServerError, core.ErrorCodeInternalError, "internal error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	reqID := chimiddleware.GetReqID(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Str("code", code).Str("request_id", reqID).Msg("api error")
	}
	s.respondJSON(w, status, errorBody{Code: code, Message: message, RequestID: reqID})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		s.logger.Error().Err(err).Msg("failed to write JSON response")
	}
}
