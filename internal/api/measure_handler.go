package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/bundlecost/bundlecost/internal/importsig"
	"github.com/bundlecost/bundlecost/internal/observability"
	"github.com/bundlecost/bundlecost/internal/sizecache"
)

// MeasureRequest is the body for /measure and /state: one import
// signature plus the workspace root to resolve it against.
type MeasureRequest struct {
	Import        importsig.ImportInfo `json:"import"`
	WorkspaceRoot string               `json:"workspace_root"`
}

// MeasureResponse carries the measurement outcome. Result is null when
// the measurement failed or is unavailable; State says which.
type MeasureResponse struct {
	CacheID  string                       `json:"cache_id"`
	State    sizecache.State              `json:"state"`
	Result   *sizecache.MeasurementResult `json:"result"`
	Minified string                       `json:"minified,omitempty"`
	Gzip     string                       `json:"gzip,omitempty"`
}

func (s *Server) handleMeasure(c *fiber.Ctx) error {
	var req MeasureRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.WorkspaceRoot == "" {
		return fiber.NewError(fiber.StatusBadRequest, "workspace_root is required")
	}

	cacheID := s.engine.CacheID(req.Import)
	if cacheID == "" {
		return fiber.NewError(fiber.StatusUnprocessableEntity, "import signature cannot be measured")
	}

	spanCtx, span := observability.StartMeasureSpan(c.UserContext(), req.Import.PackageName, req.WorkspaceRoot)
	defer span.End()

	if s.watcher != nil {
		s.watcher.Add(req.WorkspaceRoot)
	}

	result := s.engine.GetSize(spanCtx, req.Import, req.WorkspaceRoot)
	resp := MeasureResponse{
		CacheID: cacheID,
		State:   s.engine.State(req.Import, req.WorkspaceRoot),
		Result:  result,
	}
	if result != nil {
		resp.Minified = sizecache.FormatSize(result.MinifiedBytes)
		resp.Gzip = sizecache.FormatSize(result.GzipBytes)
	}
	return c.JSON(resp)
}

func (s *Server) handleState(c *fiber.Ctx) error {
	var req MeasureRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.WorkspaceRoot == "" {
		return fiber.NewError(fiber.StatusBadRequest, "workspace_root is required")
	}

	resp := MeasureResponse{
		CacheID: s.engine.CacheID(req.Import),
		State:   s.engine.State(req.Import, req.WorkspaceRoot),
		Result:  s.engine.CachedSize(req.Import, req.WorkspaceRoot),
	}
	if resp.Result != nil {
		resp.Minified = sizecache.FormatSize(resp.Result.MinifiedBytes)
		resp.Gzip = sizecache.FormatSize(resp.Result.GzipBytes)
	}
	return c.JSON(resp)
}

func (s *Server) handleClearCache(c *fiber.Ctx) error {
	s.engine.ClearCache()
	if s.metrics != nil {
		s.metrics.CacheCleared()
	}
	return c.JSON(fiber.Map{"status": "cleared"})
}

func (s *Server) handleAvailable(c *fiber.Ctx) error {
	root := c.Query("root", ".")
	return c.JSON(fiber.Map{"available": s.engine.Available(root)})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
