package httpapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/vaultorg/internal/organizer"
	"github.com/fyrsmithlabs/vaultorg/internal/report"
	"github.com/fyrsmithlabs/vaultorg/internal/vecmath"
)

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// analyzeOptions overlays query parameters on the configured defaults.
func (s *Server) analyzeOptions(c echo.Context) (organizer.AnalyzeOptions, error) {
	opts := s.opts.Analyze
	err := echo.QueryParamsBinder(c).
		Float64("z", &opts.ZThreshold).
		Int("min_files", &opts.MinFiles).
		Int("top_k", &opts.TopK).
		Float64("min_similarity", &opts.MinSimilarity).
		Int("limit", &opts.TopFolders).
		BindError()
	if err != nil {
		return opts, echo.NewHTTPError(http.StatusBadRequest, "invalid query parameter").SetInternal(err)
	}
	return opts, nil
}

func (s *Server) analyze(c echo.Context) (*report.AnalysisReport, error) {
	opts, err := s.analyzeOptions(c)
	if err != nil {
		return nil, err
	}
	ctx := c.Request().Context()
	embeddings, err := s.opts.Source.Embeddings(ctx)
	if err != nil {
		return nil, s.toHTTPError(err)
	}
	rep, err := s.opts.Analyzer.Analyze(ctx, embeddings, opts)
	if err != nil {
		return nil, s.toHTTPError(err)
	}
	return rep, nil
}

// handleFolders returns folders ranked from least to most coherent.
func (s *Server) handleFolders(c echo.Context) error {
	rep, err := s.analyze(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, FoldersResponse{
		RunID:        rep.RunID,
		TotalFolders: rep.TotalFolders,
		Folders:      rep.Folders,
	})
}

// handleOutliers returns the full analysis report.
func (s *Server) handleOutliers(c echo.Context) error {
	rep, err := s.analyze(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, rep)
}

// handleSuggestions returns shell move commands for the outliers.
func (s *Server) handleSuggestions(c echo.Context) error {
	rep, err := s.analyze(c)
	if err != nil {
		return err
	}
	cmds := report.MoveCommands(rep.Suggestions, c.QueryParam("vault_root"))
	if cmds == nil {
		cmds = []string{}
	}
	return c.JSON(http.StatusOK, SuggestionsResponse{RunID: rep.RunID, Commands: cmds})
}

// handleInbox clusters the inbox and proposes destinations.
func (s *Server) handleInbox(c echo.Context) error {
	opts := s.opts.Inbox
	var moves bool
	err := echo.QueryParamsBinder(c).
		String("prefix", &opts.Inbox).
		Float64("threshold", &opts.DistanceThreshold).
		Int("top_k", &opts.TopK).
		Float64("min_similarity", &opts.MinSimilarity).
		Bool("moves", &moves).
		BindError()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid query parameter").SetInternal(err)
	}

	ctx := c.Request().Context()
	embeddings, err := s.opts.Source.Embeddings(ctx)
	if err != nil {
		return s.toHTTPError(err)
	}
	rep, err := s.opts.InboxOrganizer.Organize(ctx, embeddings, opts)
	if err != nil {
		return s.toHTTPError(err)
	}

	resp := InboxResponse{InboxReport: rep}
	if moves {
		resp.Commands = report.ClusterMoveCommands(rep.Clusters, c.QueryParam("vault_root"))
	}
	return c.JSON(http.StatusOK, resp)
}

// toHTTPError maps analysis errors to status codes.
func (s *Server) toHTTPError(err error) error {
	switch {
	case errors.Is(err, vecmath.ErrInvalidParameter):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, organizer.ErrNoFiles), errors.Is(err, organizer.ErrEmptyInbox):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	default:
		s.logger.Error("analysis failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "analysis failed")
	}
}
