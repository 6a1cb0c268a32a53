package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/tenderwatch/ted-adapter/internal/jobs"
	"github.com/tenderwatch/ted-adapter/internal/store"
	"github.com/tenderwatch/ted-adapter/pkg/model"
)

// RunReader serves the latest aggregated run.
type RunReader interface {
	LatestRun(ctx context.Context) (*model.RunResult, error)
	GetTender(ctx context.Context, noticeID string) (*model.Tender, error)
}

// RunTrigger starts an out-of-schedule refresh.
type RunTrigger interface {
	RunOnce(ctx context.Context) (*model.RunResult, error)
}

// TenderHandler serves the tender read API.
type TenderHandler struct {
	logger    *zap.Logger
	runs      RunReader
	refresher RunTrigger
}

// NewTenderHandler creates a handler. refresher is optional; without it
// POST /refresh answers 501.
func NewTenderHandler(logger *zap.Logger, runs RunReader, refresher RunTrigger) *TenderHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TenderHandler{logger: logger, runs: runs, refresher: refresher}
}

// TenderListResponse is one page of filtered tenders from the latest run.
type TenderListResponse struct {
	RunID       string         `json:"run_id"`
	GeneratedAt time.Time      `json:"generated_at"`
	Total       int            `json:"total"`
	Matched     int            `json:"matched"`
	Offset      int            `json:"offset"`
	Tenders     []model.Tender `json:"tenders"`
}

func (h *TenderHandler) ListTenders(c *fiber.Ctx) error {
	q, err := parseTenderQuery(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	run, err := h.latest(c)
	if run == nil {
		return err
	}

	matched := make([]model.Tender, 0, len(run.Tenders))
	for _, t := range run.Tenders {
		if q.Match(t) {
			matched = append(matched, t)
		}
	}

	page := []model.Tender{}
	if q.Offset < len(matched) {
		end := q.Offset + q.Limit
		if end > len(matched) {
			end = len(matched)
		}
		page = matched[q.Offset:end]
	}

	return c.JSON(TenderListResponse{
		RunID:       run.RunID,
		GeneratedAt: run.GeneratedAt,
		Total:       len(run.Tenders),
		Matched:     len(matched),
		Offset:      q.Offset,
		Tenders:     page,
	})
}

func (h *TenderHandler) GetTender(c *fiber.Ctx) error {
	id := c.Params("id")
	t, err := h.runs.GetTender(c.UserContext(), id)
	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "tender not found"})
	}
	if err != nil {
		h.logger.Error("api.get_tender.failed", zap.String("notice_id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(t)
}

func (h *TenderHandler) Stats(c *fiber.Ctx) error {
	run, err := h.latest(c)
	if run == nil {
		return err
	}
	return c.JSON(fiber.Map{
		"run_id":       run.RunID,
		"generated_at": run.GeneratedAt,
		"query":        run.Query,
		"available":    run.Available,
		"fields":       run.Fields,
		"stats":        run.Stats,
	})
}

func (h *TenderHandler) Refresh(c *fiber.Ctx) error {
	if h.refresher == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "refresh disabled"})
	}

	run, err := h.refresher.RunOnce(c.UserContext())
	if errors.Is(err, jobs.ErrRefreshInProgress) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		h.logger.Error("api.refresh.failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	h.logger.Info("api.refresh.completed", zap.String("run_id", run.RunID), zap.Int("tenders", run.Stats.Total))
	return c.JSON(fiber.Map{
		"run_id":       run.RunID,
		"generated_at": run.GeneratedAt,
		"total":        run.Stats.Total,
		"stats":        run.Stats,
	})
}

// latest loads the current run. On failure it writes the response and
// returns a nil run.
func (h *TenderHandler) latest(c *fiber.Ctx) (*model.RunResult, error) {
	run, err := h.runs.LatestRun(c.UserContext())
	if errors.Is(err, store.ErrNoRun) {
		return nil, c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "no completed refresh yet"})
	}
	if err != nil {
		h.logger.Error("api.latest_run.failed", zap.Error(err))
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return run, nil
}
