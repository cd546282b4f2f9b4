package httpapi

import (
	"errors"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/i474232898/aqi-data-ingestion/internal/aqi"
	"github.com/i474232898/aqi-data-ingestion/internal/config"
)

const (
	defaultMeasurementLimit = 100
	onDemandLimit           = 100000
	defaultFetchLogLimit    = 50
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
// In on-demand mode GET /aqi-data runs one ingestion before responding;
// GET /api-data always reads the store.
func RegisterRoutes(app *fiber.App, service *aqi.Service, mode config.QueryMode) {
	v1 := app.Group("/api/v1")

	storedMeasurements := func(c *fiber.Ctx) error {
		q, err := parseMeasurementQuery(c, defaultMeasurementLimit)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		records, err := service.ListMeasurements(c.UserContext(), q.toQuery())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read AQI data")
		}
		return success(c, stripRaw(records))
	}

	v1.Get("/api-data", storedMeasurements)

	if mode == config.ModeOnDemand {
		v1.Get("/aqi-data", func(c *fiber.Ctx) error {
			q, err := parseMeasurementQuery(c, onDemandLimit)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, err.Error())
			}

			res := service.Run(c.UserContext(), aqi.RunRequest{
				Trigger:   aqi.TriggerOnDemand,
				Filter:    aqi.Filter{State: q.State, Pollutant: q.PollutantID},
				PageLimit: q.Limit,
			})
			if res.Err != nil {
				var upstream *aqi.UpstreamError
				if errors.As(res.Err, &upstream) {
					return fiber.NewError(fiber.StatusBadRequest, upstream.Message)
				}
				return fiber.NewError(fiber.StatusBadGateway, res.Log.Message)
			}

			return c.JSON(fiber.Map{
				"status":         "success",
				"runId":          res.RunID,
				"recordsFetched": res.Log.RecordsFetched,
				"count":          len(res.Stored),
				"data":           stripRaw(res.Stored),
			})
		})
	} else {
		v1.Get("/aqi-data", storedMeasurements)
	}

	v1.Get("/fetch-logs", func(c *fiber.Ctx) error {
		q, err := parseFetchLogQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		logs, err := service.ListFetchLogs(c.UserContext(), aqi.FetchLogQuery{State: q.State, Limit: q.Limit})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read fetch logs")
		}
		return success(c, logs)
	})
}

// ErrorHandler renders every error in the response envelope.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}
	return c.Status(code).JSON(fiber.Map{
		"status":  "error",
		"message": err.Error(),
	})
}

func success[T any](c *fiber.Ctx, data []T) error {
	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(data),
		"data":   data,
	})
}

// stripRaw drops the raw upstream snapshot from API responses.
func stripRaw(records []aqi.MeasurementRecord) []aqi.MeasurementRecord {
	out := make([]aqi.MeasurementRecord, len(records))
	for i, r := range records {
		r.RawSource = ""
		out[i] = r
	}
	return out
}

// measurementQuery holds query parameters for the measurement endpoints.
type measurementQuery struct {
	State       string
	PollutantID string
	Limit       int `validate:"gte=1,lte=100000"`
}

func (q measurementQuery) toQuery() aqi.MeasurementQuery {
	return aqi.MeasurementQuery{
		State:       q.State,
		PollutantID: q.PollutantID,
		Limit:       q.Limit,
	}
}

func parseMeasurementQuery(c *fiber.Ctx, defLimit int) (measurementQuery, error) {
	var q measurementQuery

	// Query values alias the request buffer; filters outlive the handler in fetch logs.
	q.State = utils.CopyString(c.Query("state"))
	q.PollutantID = utils.CopyString(c.Query("pollutant_id"))

	limit, err := parseLimit(c.Query("limit"), defLimit)
	if err != nil {
		return q, err
	}
	q.Limit = limit

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// fetchLogQuery holds query parameters for the fetch-log endpoint.
type fetchLogQuery struct {
	State string
	Limit int `validate:"gte=1,lte=100000"`
}

func parseFetchLogQuery(c *fiber.Ctx) (fetchLogQuery, error) {
	var q fetchLogQuery

	q.State = utils.CopyString(c.Query("state"))

	limit, err := parseLimit(c.Query("limit"), defaultFetchLogLimit)
	if err != nil {
		return q, err
	}
	q.Limit = limit

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

func parseLimit(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	return n, nil
}
