package controller

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"liana-gateway/internal/middleware"
	"liana-gateway/internal/service"
	"liana-gateway/internal/utils"
	"liana-gateway/pkg/response"
)

type StatsController struct {
	collector *service.MetricsCollector
}

func NewStatsController(collector *service.MetricsCollector) *StatsController {
	return &StatsController{collector: collector}
}

// GetStats godoc
// @Summary Execution statistics of list requests
// @Description Global counters, the most listed collections and per-collection timings.
// @Tags stats
// @Produce json
// @Param top query int false "Number of most listed collections to return" default(5)
// @Success 200 {object} response.StandardResponse
// @Router /api/v1/stats [get]
func (sc *StatsController) GetStats(c *gin.Context) {
	correlationID := c.GetString(middleware.CorrelationIDKey)

	top := 5
	if raw := c.Query("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, response.ErrorResponse(utils.ErrCodeInvalidParameters, "top must be a positive integer", "", correlationID))
			return
		}
		top = n
	}

	stats := sc.collector.ExportMetrics()
	stats["top_collections"] = sc.collector.GetTopCollections(top)
	c.JSON(http.StatusOK, response.SuccessResponse(stats, correlationID))
}

// GetCollectionStats godoc
// @Summary Execution statistics of one collection
// @Tags stats
// @Produce json
// @Param collection path string true "Collection name"
// @Success 200 {object} response.StandardResponse{data=service.CollectionMetrics}
// @Failure 404 {object} response.StandardResponse
// @Router /api/v1/stats/{collection} [get]
func (sc *StatsController) GetCollectionStats(c *gin.Context) {
	correlationID := c.GetString(middleware.CorrelationIDKey)
	collection := c.Param("collection")

	metrics, err := sc.collector.GetCollectionMetrics(collection)
	if errors.Is(err, service.ErrCollectionMetricsNotFound) {
		c.JSON(http.StatusNotFound, response.ErrorResponseFromAppError(utils.NewNotFoundError("Statistics of "+collection), correlationID))
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.InternalServerErrorResponse(correlationID))
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse(metrics, correlationID))
}
