package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fyrsmithlabs/decisiond/internal/service"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

func (s *Server) handleCaptureDecision(c echo.Context) error {
	var req CaptureRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	d, err := s.svc.Capture(c.Request().Context(), service.CaptureInput{
		UserID:          s.userID(req.UserID),
		Title:           req.Title,
		Reasoning:       req.Reasoning,
		Assumptions:     req.Assumptions,
		ExpectedOutcome: req.ExpectedOutcome,
		ConfidenceScore: req.ConfidenceScore,
		ReviewDate:      req.ReviewDate,
	})
	if err != nil {
		return fail(c, err, "decision")
	}
	return c.JSON(http.StatusCreated, d)
}

func (s *Server) handleListDecisions(c echo.Context) error {
	limit := 0
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	ds, err := s.svc.ListDecisions(c.Request().Context(), s.userID(c.QueryParam("user_id")), limit)
	if err != nil {
		return fail(c, err, "decisions")
	}
	return c.JSON(http.StatusOK, ds)
}

func (s *Server) handleGetDecision(c echo.Context) error {
	d, err := s.svc.GetDecision(c.Request().Context(), c.Param("id"))
	if err != nil {
		return fail(c, err, "decision")
	}
	return c.JSON(http.StatusOK, d)
}

func (s *Server) handleDeleteDecision(c echo.Context) error {
	if err := s.svc.DeleteDecision(c.Request().Context(), c.Param("id")); err != nil {
		return fail(c, err, "decision")
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleReflect(c echo.Context) error {
	var req ReflectRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.svc.Reflect(c.Request().Context(), service.ReflectInput{
		DecisionID:    req.DecisionID,
		ActualOutcome: req.ActualOutcome,
		Lessons:       req.Lessons,
		AccuracyScore: req.AccuracyScore,
	})
	if err != nil {
		return fail(c, err, "decision")
	}
	return c.JSON(http.StatusCreated, ReflectResponse{
		Reflection:    res.Reflection,
		AIInsight:     res.Commentary.Text,
		InsightSource: res.Commentary.Source,
		Category:      res.Category,
		NewPrinciples: res.Principles,
	})
}

func (s *Server) handleGetReflection(c echo.Context) error {
	r, err := s.svc.LatestReflection(c.Request().Context(), c.Param("decision_id"))
	if err != nil {
		return fail(c, err, "reflection")
	}
	return c.JSON(http.StatusOK, r)
}

func (s *Server) handleReplay(c echo.Context) error {
	var req ReplayRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.svc.Replay(c.Request().Context(), s.userID(req.UserID), req.Query, req.TopK)
	if err != nil {
		return fail(c, err, "decisions")
	}
	return c.JSON(http.StatusOK, ReplayResponse{
		Query:          res.Query,
		Decisions:      res.Decisions,
		PatternSummary: res.Summary.Text,
		SummarySource:  res.Summary.Source,
		TotalFound:     len(res.Decisions),
	})
}

func (s *Server) handleAlternative(c echo.Context) error {
	var req AlternativeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	// Echo binds query parameters for GET and DELETE only.
	if req.DecisionID == "" {
		req.DecisionID = c.QueryParam("decision_id")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	alt, err := s.svc.Alternative(c.Request().Context(), req.DecisionID)
	if err != nil {
		return fail(c, err, "decision")
	}
	return c.JSON(http.StatusOK, AlternativeResponse{
		DecisionID:          req.DecisionID,
		AlternativeStrategy: alt.Text,
		Source:              alt.Source,
	})
}

func (s *Server) handleDaily(c echo.Context) error {
	var req DailyRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	res, err := s.svc.Daily(c.Request().Context(), s.userID(req.UserID), req.Query)
	if err != nil {
		return fail(c, err, "decisions")
	}
	return c.JSON(http.StatusOK, DailyResponse{Query: res.Query, Guidance: res.Guidance, Context: res.Context})
}

func (s *Server) handleWeeklyInsights(c echo.Context) error {
	res, err := s.svc.WeeklyInsights(c.Request().Context(), s.userID(c.QueryParam("user_id")))
	if err != nil {
		return fail(c, err, "weekly summary")
	}
	return c.JSON(http.StatusOK, WeeklyResponse{
		Summary: WeeklySummaryView{
			WeekStart:    res.WeekStart,
			Breakdown:    res.Breakdown,
			BalanceLabel: res.BalanceLabel,
			Demo:         res.Demo,
		},
		AIInsight:      res.Insight.Text,
		InsightSource:  res.Insight.Source,
		RecentInsights: res.Recent,
	})
}

func (s *Server) handleCreateWeeklySummary(c echo.Context) error {
	var req WeeklySummaryRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	var week time.Time
	if req.WeekStart != "" {
		// Validated by the datetime tag.
		week, _ = time.Parse(time.DateOnly, req.WeekStart)
	}
	ws, err := s.svc.SaveWeeklySummary(c.Request().Context(), s.userID(req.UserID), week, req.breakdown())
	if err != nil {
		return fail(c, err, "weekly summary")
	}
	return c.JSON(http.StatusCreated, WeeklySummaryCreatedResponse{
		Message: "Weekly summary saved",
		ID:      ws.ID,
		Summary: ws,
	})
}

func (s *Server) handleRunWeeklyAnalysis(c echo.Context) error {
	report, err := s.svc.RunWeeklyAnalysis(c.Request().Context())
	if err != nil {
		return fail(c, err, "users")
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handlePrinciples(c echo.Context) error {
	ps, err := s.svc.Principles(c.Request().Context(), s.userID(c.QueryParam("user_id")))
	if err != nil {
		return fail(c, err, "principles")
	}
	return c.JSON(http.StatusOK, PrinciplesResponse{Principles: ps, Total: len(ps)})
}
