package httpapi

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/flight-price-aggregation/internal/prices"
)

var validate = validator.New()

// PriceReader is the read side of prices.Service used by the API.
type PriceReader interface {
	Series(f prices.SeriesFilter) prices.TimeSeries
	Buckets(routeKey, year string) (prices.BucketMatrix, bool)
	LastRun() (prices.RunReport, bool)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service PriceReader) {
	v1 := app.Group("/api/v1")

	v1.Get("/series", func(c *fiber.Ctx) error {
		var req seriesQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshots := service.Series(req.filter())
		if snapshots == nil {
			snapshots = prices.TimeSeries{}
		}
		return c.JSON(fiber.Map{
			"origin":      req.Origin,
			"destination": req.Destination,
			"count":       len(snapshots),
			"snapshots":   snapshots,
		})
	})

	v1.Get("/buckets/:route/:year", func(c *fiber.Ctx) error {
		req := bucketQuery{
			Route: strings.ToUpper(c.Params("route")),
			Year:  c.Params("year"),
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if _, err := prices.ParseRouteKey(req.Route); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		matrix, ok := service.Buckets(req.Route, req.Year)
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no bucket data for requested route and year")
		}
		return c.JSON(fiber.Map{
			"route":  req.Route,
			"year":   req.Year,
			"months": matrix,
		})
	})

	v1.Get("/runs/latest", func(c *fiber.Ctx) error {
		report, ok := service.LastRun()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no sweep has completed yet")
		}
		return c.JSON(report)
	})
}

// seriesQuery holds query parameters for the series endpoint.
type seriesQuery struct {
	Origin      string `validate:"omitempty,len=3,alpha"`
	Destination string `validate:"omitempty,len=3,alpha"`
	From        string `validate:"omitempty,datetime=2006-01-02"`
	To          string `validate:"omitempty,datetime=2006-01-02"`

	from, to prices.Date
}

func (q *seriesQuery) bind(c *fiber.Ctx) error {
	q.Origin = strings.ToUpper(c.Query("origin"))
	q.Destination = strings.ToUpper(c.Query("destination"))
	q.From = c.Query("from")
	q.To = c.Query("to")

	if err := validate.Struct(q); err != nil {
		return err
	}

	var err error
	if q.From != "" {
		if q.from, err = prices.ParseDate(q.From); err != nil {
			return err
		}
	}
	if q.To != "" {
		if q.to, err = prices.ParseDate(q.To); err != nil {
			return err
		}
	}
	if !q.from.IsZero() && !q.to.IsZero() && q.to.Before(q.from.Time) {
		return fiber.NewError(fiber.StatusBadRequest, "to must not be before from")
	}
	return nil
}

func (q seriesQuery) filter() prices.SeriesFilter {
	return prices.SeriesFilter{
		Origin:      q.Origin,
		Destination: q.Destination,
		From:        q.from,
		To:          q.to,
	}
}

// bucketQuery holds path parameters for the buckets endpoint.
type bucketQuery struct {
	Route string `validate:"required,len=7"`
	Year  string `validate:"required,len=4,numeric"`
}
