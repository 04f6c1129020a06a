// Package server exposes the assessment pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/assessment"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/audio"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/logging"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/model"
	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/utils"
	"github.com/gorilla/mux"
)

const (
	defaultMaxUploadBytes = 50 << 20
	multipartMemory       = 8 << 20
	shutdownTimeout       = 10 * time.Second
)

// Assessor is the part of assessment.Service the handlers use.
type Assessor interface {
	Assess(ctx context.Context, req assessment.Request, raw audio.RawAudio) (assessment.Result, error)
	AssessStream(ctx context.Context, req assessment.Request, r io.Reader, filename string) (assessment.Result, error)
	Catalog() model.ModelCatalog
}

type Server struct {
	assessor       Assessor
	maxUploadBytes int64
	router         *mux.Router
}

type Option func(*Server)

func WithMaxUploadBytes(limit int64) Option {
	return func(s *Server) {
		if limit > 0 {
			s.maxUploadBytes = limit
		}
	}
}

func New(assessor Assessor, opts ...Option) (*Server, error) {
	if assessor == nil {
		return nil, utils.WrapIfNotNil(errors.New("assessor is required"))
	}
	s := &Server{assessor: assessor, maxUploadBytes: defaultMaxUploadBytes}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(recoverMiddleware, logMiddleware)

	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/models", s.handleModels).Methods(http.MethodGet)
	api.HandleFunc("/assessments", s.handleAssessUpload).Methods(http.MethodPost)
	api.HandleFunc("/assessments/samples", s.handleAssessSamples).Methods(http.MethodPost)
	return router
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	log := logging.NewLogger(ctx)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		log.Errorf("error: %v", err)
		return utils.WrapIfNotNil(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("error: %v", err)
		return utils.WrapIfNotNil(err)
	}
	return nil
}
