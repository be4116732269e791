package api

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "call-intelligence-go/internal/errors"
	"call-intelligence-go/internal/logger"
	"call-intelligence-go/internal/processor"
	"call-intelligence-go/internal/records"
)

// multipart parts beyond this stay on disk while the form is parsed
const formMemory = 32 << 20

type Service interface {
	ProcessBatch(ctx context.Context, uploads []processor.Upload, onProgress func(processor.Progress)) processor.BatchResult
	Trends(ctx context.Context, lastN int, digestOnly bool) (processor.TrendReport, error)
	Recent(ctx context.Context, lastN int) ([]records.CallRecord, error)
}

// Counter reports on the stored record set.
type Counter interface {
	Exists(ctx context.Context) (bool, error)
	Count(ctx context.Context) (int, error)
}

type Server struct {
	router         *chi.Mux
	port           int
	svc            Service
	records        Counter
	maxUploadBytes int64
	log            *logger.Logger
}

func NewServer(port int, svc Service, records Counter, maxUploadBytes int64) *Server {
	router := chi.NewRouter()
	s := &Server{
		router:         router,
		port:           port,
		svc:            svc,
		records:        records,
		maxUploadBytes: maxUploadBytes,
		log:            logger.New().WithComponent("api"),
	}
	router.Use(s.requestLogger)
	router.Use(middleware.Recoverer)

	router.Get("/healthz", s.health)
	router.Post("/process", s.process)
	router.Get("/records", s.list)
	router.Get("/records/count", s.count)
	router.Get("/trends", s.trends)

	return s
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := logger.RequestID(r)
		r.Header.Set("X-Request-ID", reqID)
		w.Header().Set("X-Request-ID", reqID)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		s.log.WithRequest(r).
			WithField("status", ww.Status()).
			WithField("bytes", ww.BytesWritten()).
			WithField("duration_ms", time.Since(start).Milliseconds()).
			Info("request handled")
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "ok")
}

func (s *Server) process(w http.ResponseWriter, r *http.Request) {
	log := s.log.WithRequest(r).WithField("handler", "process")
	if err := r.ParseMultipartForm(formMemory); err != nil {
		writeError(w, apperrors.NewInvalidRequest("expected multipart form with audio files: "+err.Error()))
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, apperrors.NewInvalidRequest(`no audio files in form field "files"`))
		return
	}

	uploads := make([]processor.Upload, 0, len(headers))
	for _, h := range headers {
		data, err := s.readPart(h)
		if err != nil {
			log.WithError(err).WithField("file_name", h.Filename).Error("reading upload failed")
			writeError(w, apperrors.NewInvalidRequest(fmt.Sprintf("could not read %q: %v", h.Filename, err)))
			return
		}
		uploads = append(uploads, processor.Upload{FileName: h.Filename, Data: data})
	}

	res := s.svc.ProcessBatch(r.Context(), uploads, func(p processor.Progress) {
		log.WithField("file_name", p.Item.FileName).
			WithField("progress", fmt.Sprintf("%d/%d", p.Index+1, p.Total)).
			WithField("saved", p.Saved).
			Info("item finished")
	})
	writeJSON(w, http.StatusOK, res)
}

// readPart reads at most one byte past the upload limit, enough for the processor to
// reject oversized files without buffering all of them.
func (s *Server) readPart(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var src io.Reader = f
	if s.maxUploadBytes > 0 {
		src = io.LimitReader(f, s.maxUploadBytes+1)
	}
	return io.ReadAll(src)
}

func (s *Server) count(w http.ResponseWriter, r *http.Request) {
	exists, err := s.records.Exists(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	n := 0
	if exists {
		if n, err = s.records.Count(r.Context()); err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"exists": exists, "total_calls": n})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	lastN, err := parseLastN(r)
	if err != nil {
		writeError(w, err)
		return
	}
	recs, err := s.svc.Recent(r.Context(), lastN)
	if err != nil {
		s.log.WithRequest(r).WithError(err).Warn("listing records failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"total": len(recs), "records": recs})
}

// parseLastN reads the optional last_n query parameter; absent means all records.
func parseLastN(r *http.Request) (int, error) {
	v := r.URL.Query().Get("last_n")
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperrors.NewInvalidRequest("last_n must be a non-negative integer")
	}
	return n, nil
}

func (s *Server) trends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lastN, err := parseLastN(r)
	if err != nil {
		writeError(w, err)
		return
	}
	digestOnly := false
	if v := q.Get("digest_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, apperrors.NewInvalidRequest("digest_only must be a boolean"))
			return
		}
		digestOnly = b
	}

	rep, err := s.svc.Trends(r.Context(), lastN, digestOnly)
	if err != nil {
		s.log.WithRequest(r).WithError(err).Warn("trends failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var appErr *apperrors.AppError
	if stderrors.As(err, &appErr) {
		msg = appErr.Message
	}
	writeJSON(w, apperrors.StatusOf(err), map[string]string{
		"error":   string(apperrors.CodeOf(err)),
		"message": msg,
	})
}
