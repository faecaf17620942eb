package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"devicecgm/cgmq/defs"
	"devicecgm/cgmq/pkg/episode"
	"devicecgm/cgmq/pkg/query"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type httpQuerier interface {
	Patients(ctx context.Context) ([]int, error)
	MinMaxMedian(ctx context.Context, patientID int, iv *defs.Interval) (*defs.StatSummary, error)
	OrderedMeasurements(ctx context.Context, patientID int, iv *defs.Interval) ([]defs.Measurement, error)
	HypoEpisodes(ctx context.Context, patientID int, iv *defs.Interval) ([]episode.Episode, error)
	Report(ctx context.Context, patientID int, iv *defs.Interval, low, high float64) (*query.Report, error)
}

type PatientsResponse struct {
	Patients []int `json:"patients"`
}

type HypoResponse struct {
	Count    int               `json:"count"`
	Episodes []episode.Episode `json:"episodes"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HttpServer struct {
	Querier httpQuerier
	Logger  *zap.Logger
	Glucose defs.GlucoseConfig

	router *gin.Engine
}

func New(q httpQuerier, glucose defs.GlucoseConfig, logger *zap.Logger) *HttpServer {
	hs := &HttpServer{
		Querier: q,
		Logger:  logger,
		Glucose: glucose,
	}
	hs.routes()
	return hs
}

func (s *HttpServer) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves the API on addr until ctx is done.
func (s *HttpServer) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.Logger.Debug("unable to shut down http server", zap.Error(err))
		}
	}()

	s.Logger.Debug("serving query api", zap.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("unable to serve http: %w", err)
	}
	return nil
}

func (s *HttpServer) routes() {
	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/patients", s.getPatients)

	patient := r.Group("/patients/:id")
	patient.GET("/summary", s.getSummary)
	patient.GET("/measurements", s.getMeasurements)
	patient.GET("/hypo", s.getHypo)
	patient.GET("/report", s.getReport)

	s.router = r
}

func (s *HttpServer) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("handled request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("query", c.Request.URL.RawQuery),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *HttpServer) getPatients(c *gin.Context) {
	ids, err := s.Querier.Patients(c.Request.Context())
	if err != nil {
		s.fail(c, http.StatusInternalServerError, fmt.Errorf("unable to list patients: %w", err))
		return
	}
	c.JSON(http.StatusOK, PatientsResponse{Patients: ids})
}

func (s *HttpServer) getSummary(c *gin.Context) {
	id, iv, ok := s.patientParams(c)
	if !ok {
		return
	}

	summary, err := s.Querier.MinMaxMedian(c.Request.Context(), id, iv)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, fmt.Errorf("unable to summarize glucose: %w", err))
		return
	}
	if summary == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *HttpServer) getMeasurements(c *gin.Context) {
	id, iv, ok := s.patientParams(c)
	if !ok {
		return
	}

	ms, err := s.Querier.OrderedMeasurements(c.Request.Context(), id, iv)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, fmt.Errorf("unable to read measurements: %w", err))
		return
	}
	c.JSON(http.StatusOK, ms)
}

func (s *HttpServer) getHypo(c *gin.Context) {
	id, iv, ok := s.patientParams(c)
	if !ok {
		return
	}

	eps, err := s.Querier.HypoEpisodes(c.Request.Context(), id, iv)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, fmt.Errorf("unable to detect hypo episodes: %w", err))
		return
	}
	c.JSON(http.StatusOK, HypoResponse{Count: len(eps), Episodes: eps})
}

func (s *HttpServer) getReport(c *gin.Context) {
	id, iv, ok := s.patientParams(c)
	if !ok {
		return
	}

	low, err := floatQuery(c, "low", s.Glucose.Low)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	high, err := floatQuery(c, "high", s.Glucose.High)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	if low >= high {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("low %.1f must be below high %.1f", low, high))
		return
	}

	report, err := s.Querier.Report(c.Request.Context(), id, iv, low, high)
	if err != nil {
		s.fail(c, http.StatusInternalServerError, fmt.Errorf("unable to build report: %w", err))
		return
	}
	c.JSON(http.StatusOK, report)
}

// patientParams reads the patient id and optional interval. It writes a 400
// and returns false when either is malformed.
func (s *HttpServer) patientParams(c *gin.Context) (int, *defs.Interval, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		s.fail(c, http.StatusBadRequest, fmt.Errorf("expected integer patient id, got %q", c.Param("id")))
		return 0, nil, false
	}

	iv, err := interval(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return 0, nil, false
	}
	return id, iv, true
}

func interval(c *gin.Context) (*defs.Interval, error) {
	start, end := c.Query("start"), c.Query("end")
	if start == "" && end == "" {
		return nil, nil
	}
	if start == "" || end == "" {
		return nil, errors.New("start and end must be given together")
	}

	startUnix, err := strconv.ParseInt(start, 10, 64)
	if err != nil {
		return nil, errors.New("expected unix timestamp for start")
	}
	endUnix, err := strconv.ParseInt(end, 10, 64)
	if err != nil {
		return nil, errors.New("expected unix timestamp for end")
	}

	return defs.NewInterval(time.Unix(startUnix, 0).UTC(), time.Unix(endUnix, 0).UTC())
}

func floatQuery(c *gin.Context, key string, def float64) (float64, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("expected number for %s", key)
	}
	return f, nil
}

func (s *HttpServer) fail(c *gin.Context, status int, err error) {
	s.Logger.Debug("request failed", zap.Int("status", status), zap.Error(err))
	c.AbortWithStatusJSON(status, ErrorResponse{Error: err.Error()})
}
