package controller

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"liana-gateway/internal/middleware"
	"liana-gateway/internal/model"
	"liana-gateway/internal/query"
	"liana-gateway/internal/repository"
	"liana-gateway/internal/schema"
	"liana-gateway/internal/service"
	"liana-gateway/internal/utils"
	"liana-gateway/pkg/response"
)

type ResourcesController struct {
	getter    service.ResourcesGetter
	validator *validator.Validate
	timeout   time.Duration
}

func NewResourcesController(getter service.ResourcesGetter, timeout time.Duration) *ResourcesController {
	return &ResourcesController{
		getter:    getter,
		validator: validator.New(),
		timeout:   timeout,
	}
}

// List godoc
// @Summary List the records of a collection
// @Description Returns one page of records together with the number of records matching the
// filters, search and segment. Filters use `filter[field]=value` (`filter[assoc:field]` for
// association columns) with comma separated values. A value is matched as is, or prefixed
// with `!` (different), `>` or `<` (compared), wrapped in `*` (contains, starts or ends with),
// or replaced by `null`, `$present`, `$blank`, `$today`, `$yesterday`, `$previousXDays`,
// `$past` or `$future`. Field subsets use `fields[model]=a,b` and pagination
// `page[number]`/`page[size]`.
// @Tags collections
// @Produce json
// @Param collection path string true "Collection name"
// @Param search query string false "Free-text search"
// @Param searchExtended query bool false "Search through associations"
// @Param filterType query string false "and | or"
// @Param sort query string false "Field to sort on, prefixed with - for descending order"
// @Param segment query string false "Segment name"
// @Param timezone query string false "IANA timezone of date filters"
// @Success 200 {object} response.StandardResponse{data=[]model.Record}
// @Failure 400 {object} response.StandardResponse
// @Failure 404 {object} response.StandardResponse
// @Failure 422 {object} response.StandardResponse
// @Failure 500 {object} response.StandardResponse
// @Router /api/v1/collections/{collection} [get]
func (rc *ResourcesController) List(c *gin.Context) {
	correlationID := c.GetString(middleware.CorrelationIDKey)
	collection := c.Param("collection")

	params, err := bindListParams(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorResponse(
			utils.ErrCodeInvalidParameters,
			err.Error(),
			"",
			correlationID,
		))
		return
	}

	if err := rc.validator.Struct(params); err != nil {
		appErr := utils.NewValidationError("Invalid list parameters", err.Error())
		c.JSON(utils.GetErrorStatus(appErr), response.ErrorResponseFromAppError(appErr, correlationID))
		return
	}

	ctx := c.Request.Context()
	if rc.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rc.timeout)
		defer cancel()
	}

	startTime := time.Now()
	count, records, err := rc.getter.Get(ctx, collection, params)
	if err != nil {
		appErr := listError(collection, err)
		middleware.RecordListMetrics(collection, appErr.Code, time.Since(startTime), 0)
		c.JSON(utils.GetErrorStatus(appErr), response.ErrorResponseFromAppError(appErr, correlationID))
		return
	}
	middleware.RecordListMetrics(collection, "", time.Since(startTime), len(records))

	if records == nil {
		records = []model.Record{}
	}
	c.JSON(http.StatusOK, response.ListResponse(records, count, correlationID))
}

// bindListParams reads the admin panel query string. Bracketed keys such as
// filter[status] and page[size] are collected with gin's QueryMap.
func bindListParams(c *gin.Context) (*model.ListParams, error) {
	params := &model.ListParams{
		Search:     c.Query("search"),
		FilterType: c.Query("filterType"),
		Sort:       c.Query("sort"),
		Segment:    c.Query("segment"),
		Timezone:   c.Query("timezone"),
	}

	if raw := c.Query("searchExtended"); raw != "" {
		extended, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, errors.New("searchExtended must be a boolean")
		}
		params.SearchExtended = extended
	}

	if filters := c.QueryMap("filter"); len(filters) > 0 {
		params.Filters = filters
	}
	if fields := c.QueryMap("fields"); len(fields) > 0 {
		params.Fields = fields
	}

	page := c.QueryMap("page")
	for key, target := range map[string]*int{"number": &params.Page.Number, "size": &params.Page.Size} {
		raw, ok := page[key]
		if !ok || raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.New("page[" + key + "] must be an integer")
		}
		*target = n
	}

	return params, nil
}

func listError(collection string, err error) *utils.AppError {
	switch {
	case errors.Is(err, query.ErrInvalidFilter),
		errors.Is(err, query.ErrInvalidSort),
		errors.Is(err, query.ErrInvalidTimezone):
		return utils.NewErrorBuilder(utils.ErrCodeInvalidParameters).
			WithDetails(err.Error()).
			WithCause(err).
			Build()
	case errors.Is(err, schema.ErrUnknownModel),
		errors.Is(err, repository.ErrCollectionNotFound):
		return utils.NewNotFoundError("Collection " + collection)
	case errors.Is(err, context.DeadlineExceeded):
		return utils.NewErrorBuilder(utils.ErrCodeQueryTimeout).
			WithCause(err).
			Build()
	default:
		return utils.NewErrorBuilder(utils.ErrCodeQueryFailed).
			WithDetails(err.Error()).
			WithCause(err).
			Build()
	}
}
