package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/satdata/tracegas-aggregation/internal/store"
	"github.com/satdata/tracegas-aggregation/internal/tracegas"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *tracegas.Service) {
	v1 := app.Group("/api/v1")

	v1.Post("/averages", func(c *fiber.Ctx) error {
		var req tracegas.Request
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if len(req.Ranges) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "at least one date range is required")
		}

		result, err := service.Run(c.UserContext(), req)
		if err != nil {
			if errors.Is(err, tracegas.ErrBadConfig) {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "averaging run failed: "+err.Error())
		}

		return c.JSON(resultResponse(result, result.Options.ReturnGrid))
	})

	v1.Get("/averages/latest", func(c *fiber.Ctx) error {
		q, err := parseFieldQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		result, err := service.Latest(q.Field)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no averaging result for requested field")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch averaging result")
		}

		return c.JSON(resultResponse(result, true))
	})

	v1.Get("/averages/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		results, err := service.History(req.Field.Field, req.From, req.To)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no averaging history for requested range")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch averaging history")
		}

		responses := make([]fiber.Map, len(results))
		for i, r := range results {
			responses[i] = resultResponse(r, false)
		}

		return c.JSON(fiber.Map{
			"field":   req.Field.Field,
			"from":    req.From,
			"to":      req.To,
			"results": responses,
		})
	})
}

// resultResponse shapes a result for JSON, turning NaN grid cells into
// nulls. The grids are omitted when the caller did not ask for them.
func resultResponse(r *tracegas.GriddedResult, withGrids bool) fiber.Map {
	m := fiber.Map{
		"result": r,
	}
	if withGrids {
		m["mean"] = r.MeanRows()
		m["count"] = r.CountRows()
	}
	return m
}

// fieldQuery holds query parameters for identifying a map field.
type fieldQuery struct {
	Field string `validate:"required"`
}

func parseFieldQuery(c *fiber.Ctx) (fieldQuery, error) {
	var q fieldQuery

	q.Field = c.Query("field")

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Field fieldQuery
	From  time.Time `validate:"required"`
	To    time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	q, err := parseFieldQuery(c)
	if err != nil {
		return err
	}
	h.Field = q

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
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
