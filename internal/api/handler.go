package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/chrisdamba/bhtraffic/internal/models"
	"github.com/chrisdamba/bhtraffic/internal/output"
	"github.com/chrisdamba/bhtraffic/internal/pipeline"
	"github.com/chrisdamba/bhtraffic/internal/source"
	"github.com/chrisdamba/bhtraffic/internal/vehicleclass"
	"github.com/gin-gonic/gin"
	"github.com/lucsky/cuid"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	Querier pipeline.Querier
	Source  source.Source
	Classes *vehicleclass.Table
	Bounds  models.DateRange
	Output  output.Options
	Log     *logrus.Entry
}

func NewHandler(q pipeline.Querier, src source.Source, classes *vehicleclass.Table, bounds models.DateRange, opts output.Options) *Handler {
	return &Handler{
		Querier: q,
		Source:  src,
		Classes: classes,
		Bounds:  bounds,
		Output:  opts,
		Log:     logrus.WithField("component", "api"),
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetClasses lists the vehicle class labels with their storage codes.
func (h *Handler) GetClasses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"classes": h.Classes.Entries(),
		"bounds":  gin.H{"from": h.Bounds.From, "to": h.Bounds.To},
	})
}

// GetTraffic aggregates counts per location for the filter in the query
// string. Missing parameters default to the whole dataset.
func (h *Handler) GetTraffic(c *gin.Context) {
	input := models.FilterInput{
		From:     c.Query("from"),
		To:       c.Query("to"),
		FromHour: c.Query("from_hour"),
		ToHour:   c.Query("to_hour"),
		Classes:  c.QueryArray("class"),
	}
	filter, err := input.Filter(h.Bounds)
	if err != nil {
		h.fail(c, err)
		return
	}

	opts := h.Output
	if top := c.Query("top"); top != "" {
		n, err := strconv.Atoi(top)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "top must be a non-negative integer"})
			return
		}
		opts.TopN = n
	}
	if crs := c.Query("crs"); crs != "" {
		if crs != models.CRSWGS84 && crs != models.CRSWebMercator {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported crs " + strconv.Quote(crs)})
			return
		}
		opts.CRS = crs
	}

	result, err := h.Querier.Aggregate(c.Request.Context(), h.Source, filter)
	if err != nil {
		h.fail(c, err)
		return
	}

	report := output.Report{
		QueryID:     cuid.New(),
		Filter:      filter,
		Result:      result,
		GeneratedAt: time.Now().UTC(),
	}
	switch c.DefaultQuery("format", "json") {
	case "json":
		c.JSON(http.StatusOK, output.Document(report, opts))
	case "geojson":
		data, err := output.FeatureCollection(report, opts)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.Data(http.StatusOK, "application/geo+json", data)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be json or geojson"})
	}
}

// fail maps domain errors to status codes.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, vehicleclass.ErrUnknownClassLabel), errors.Is(err, models.ErrInvalidFilter):
		status = http.StatusBadRequest
	case errors.Is(err, source.ErrSourceUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		status = http.StatusRequestTimeout
	}
	if status >= http.StatusInternalServerError {
		h.Log.WithError(err).Error("traffic query failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
