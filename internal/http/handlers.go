package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"feveroracle-chatbot/internal/core"
	"feveroracle-chatbot/pkg"
)

// ReportStore is the slice of the repository the handlers need.
type ReportStore interface {
	InsertReport(ctx context.Context, report *pkg.Report) (*pkg.Report, error)
	ListRecentReports(ctx context.Context, limit int) ([]pkg.Report, error)
}

// Notifier publishes report ids for dashboard listeners.
type Notifier interface {
	Notify(ctx context.Context, reportID string) error
}

// Server bundles the dependencies required by the HTTP handlers.  The
// server is stateless per conversation: the accumulated answers and the
// current step round-trip with every message, so any replica can answer
// any request.
type Server struct {
	engine   *core.Engine
	store    ReportStore
	notifier Notifier
	log      zerolog.Logger
}

// NewServer constructs a Server.  notifier may be nil.
func NewServer(engine *core.Engine, store ReportStore, notifier Notifier, log zerolog.Logger) *Server {
	return &Server{engine: engine, store: store, notifier: notifier, log: log}
}

// Register mounts the chatbot routes.  All /api routes pass the given auth
// middleware; the health probe stays open.
func (s *Server) Register(e *echo.Echo, auth echo.MiddlewareFunc) {
	e.GET("/healthz", s.handleHealth)

	api := e.Group("/api/chatbot", auth)
	api.POST("/start-session", s.handleStartSession)
	api.POST("/message", s.handleMessage)
	api.POST("/submit-report", s.handleSubmitReport)
	api.GET("/reports", s.handleListReports)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleStartSession opens a new remote-authoritative session and returns
// the opening question.
func (s *Server) handleStartSession(c echo.Context) error {
	q := s.engine.Catalog().Start()
	resp := pkg.StartSessionResponse{
		SessionID:    pkg.RemoteSessionPrefix + uuid.NewString(),
		Message:      core.SessionStartedMessage,
		NextQuestion: &q,
	}
	s.log.Debug().Str("session_id", resp.SessionID).Str("user_id", userIDFrom(c)).Msg("chat session started")
	return c.JSON(http.StatusOK, resp)
}

// handleMessage evaluates one answer against the dialogue engine and
// returns either the next question or the terminal analysis.
func (s *Server) handleMessage(c echo.Context) error {
	var req pkg.MessageRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	session := pkg.Session{
		ID:          req.SessionID,
		CurrentStep: req.CurrentStep,
		Answers:     req.Answers,
	}
	if session.CurrentStep == "" {
		session.CurrentStep = pkg.StepStart
	}
	if session.Answers == nil {
		session.Answers = map[string]any{}
	}

	res, err := s.engine.Advance(&session, req.Message)
	if err != nil {
		var mismatch *core.ProtocolMismatchError
		if errors.As(err, &mismatch) {
			s.log.Warn().Str("session_id", req.SessionID).Str("step", mismatch.Step).Msg("message against unknown step")
			return echo.NewHTTPError(http.StatusBadRequest, "unknown step")
		}
		s.log.Error().Err(err).Str("session_id", req.SessionID).Msg("engine failure")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to process message")
	}

	resp := pkg.MessageResponse{
		SessionID: req.SessionID,
		Answers:   session.Answers,
		Completed: res.Completed,
	}
	if res.Completed {
		resp.Analysis = res.Analysis
		if res.Analysis != nil {
			resp.Message = res.Analysis.Recommendation
		}
		return c.JSON(http.StatusOK, resp)
	}
	resp.NextQuestion = res.Question
	resp.Reprompt = res.Reprompt
	if res.Reprompt != "" {
		resp.Message = res.Reprompt
	} else if res.Question != nil {
		resp.Message = res.Question.Prompt
	}
	return c.JSON(http.StatusOK, resp)
}

// handleSubmitReport persists a finished assessment.  The risk level and
// recommendation are re-derived from the submitted score, so a client can
// never store guidance that disagrees with the band rules.
func (s *Server) handleSubmitReport(c echo.Context) error {
	var req pkg.ReportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "session_id is required")
	}

	analysis := pkg.NewAnalysis(req.Analysis.RiskScore, req.Analysis.SuspectedFeverType)
	report := &pkg.Report{
		UserID:             userIDFrom(c),
		SessionID:          req.SessionID,
		Answers:            req.Answers,
		SuspectedFeverType: analysis.SuspectedFeverType,
		Temperature:        temperatureFrom(req.Answers),
		Recommendation:     analysis.Recommendation,
		RiskScore:          analysis.RiskScore,
		RiskLevel:          analysis.RiskLevel,
	}

	stored, err := s.store.InsertReport(c.Request().Context(), report)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", req.SessionID).Msg("failed to store report")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to store report")
	}

	if s.notifier != nil {
		// Dashboard refresh is best-effort and must not delay the reply.
		go func(id string) {
			if err := s.notifier.Notify(context.Background(), id); err != nil {
				s.log.Warn().Err(err).Str("report_id", id).Msg("report notify failed")
			}
		}(stored.ID)
	}

	return c.JSON(http.StatusCreated, map[string]string{"report_id": stored.ID})
}

// handleListReports returns the newest reports for the dashboard feed.
func (s *Server) handleListReports(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 200 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid limit")
		}
		limit = v
	}
	reports, err := s.store.ListRecentReports(c.Request().Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list reports")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list reports")
	}
	if reports == nil {
		reports = []pkg.Report{}
	}
	return c.JSON(http.StatusOK, map[string]any{"reports": reports})
}

// temperatureFrom pulls the recorded temperature out of the answer map.
// JSON numbers decode as float64; anything else is treated as absent.
func temperatureFrom(answers map[string]any) *float64 {
	if answers == nil {
		return nil
	}
	if v, ok := answers[core.KeyTemperature].(float64); ok {
		return &v
	}
	return nil
}
