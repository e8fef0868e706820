package httpapi

import (
	"bytes"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/heatwatch/heatwatch/internal/alert"
	"github.com/heatwatch/heatwatch/internal/export"
	"github.com/heatwatch/heatwatch/internal/quality"
	"github.com/heatwatch/heatwatch/internal/store"
)

var validate = validator.New()

// Handlers bundles the collaborators the HTTP surface exposes.
type Handlers struct {
	Readings store.ReadingStore
	Users    store.UserStore
	Exporter *export.Exporter
	Worker   *alert.Worker
	Enricher *quality.Enricher
	Dedupe   *quality.Deduplicator

	// ThrottleDelay is applied between weather lookups when an
	// enrichment pass is triggered manually.
	ThrottleDelay time.Duration

	Logger *zap.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, h Handlers) {
	v1 := app.Group("/api/v1")

	v1.Get("/readings/export", h.exportReadings)
	v1.Get("/users/:id/readings", h.userReadings)
	v1.Post("/users/:id/dedupe", h.dedupeUser)
	v1.Post("/jobs/alerts/run", h.runAlertPass)
	v1.Post("/jobs/enrich/run", h.runEnrichPass)
}

// exportQuery holds query parameters for the export endpoint.
type exportQuery struct {
	Format string    `validate:"required,oneof=csv xlsx"`
	From   time.Time `validate:"required"`
	To     time.Time `validate:"required,gtfield=From"`
}

func (h Handlers) exportReadings(c *fiber.Ctx) error {
	q := exportQuery{Format: c.Query("format", "csv")}

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return fiber.NewError(fiber.StatusBadRequest, "from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	to, err := parseTime(toStr)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	q.From = from
	q.To = to

	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	var buf bytes.Buffer
	switch q.Format {
	case "xlsx":
		if err := h.Exporter.WriteXLSX(c.UserContext(), &buf, q.From, q.To); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to build export")
		}
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="readings.xlsx"`)
	default:
		if err := h.Exporter.WriteCSV(c.UserContext(), &buf, q.From, q.To); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to build export")
		}
		c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="readings.csv"`)
	}

	return c.Send(buf.Bytes())
}

func (h Handlers) userReadings(c *fiber.Ctx) error {
	userID := c.Params("id")

	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
	}

	if _, err := h.Users.UserByID(c.UserContext(), userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "unknown user")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load user")
	}

	readings, err := h.Readings.RecentReadings(c.UserContext(), userID, limit, time.Now().UTC())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load readings")
	}

	return c.JSON(fiber.Map{
		"userId":   userID,
		"readings": readings,
	})
}

func (h Handlers) dedupeUser(c *fiber.Ctx) error {
	userID := c.Params("id")

	user, err := h.Users.UserByID(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "unknown user")
		}
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load user")
	}

	removed, err := h.Dedupe.Dedupe(c.UserContext(), user)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "dedupe failed")
	}

	return c.JSON(fiber.Map{"removed": removed})
}

func (h Handlers) runAlertPass(c *fiber.Ctx) error {
	if err := h.Worker.Perform(c.UserContext(), time.Now().UTC()); err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"status": "completed"})
}

func (h Handlers) runEnrichPass(c *fiber.Ctx) error {
	readings, err := h.Readings.ReadingsMissingOutdoorTemp(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to load readings")
	}

	updated, failed := h.Enricher.UpdateOutdoorTemps(c.UserContext(), readings, h.ThrottleDelay, quality.Verbose)

	return c.JSON(fiber.Map{
		"pending": len(readings),
		"updated": updated,
		"failed":  failed,
	})
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
