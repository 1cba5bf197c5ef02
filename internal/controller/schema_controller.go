package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"liana-gateway/internal/middleware"
	"liana-gateway/internal/schema"
	"liana-gateway/internal/utils"
	"liana-gateway/pkg/response"
)

// SchemaController serves the schemas the admin panel renders its views from
type SchemaController struct {
	schemas *schema.Registry
}

func NewSchemaController(schemas *schema.Registry) *SchemaController {
	return &SchemaController{schemas: schemas}
}

// ListSchemas godoc
// @Summary List every collection schema
// @Tags schemas
// @Produce json
// @Success 200 {object} response.StandardResponse{data=[]schema.Schema}
// @Router /api/v1/schemas [get]
func (sc *SchemaController) ListSchemas(c *gin.Context) {
	c.JSON(http.StatusOK, response.SuccessResponse(sc.schemas.All(), c.GetString(middleware.CorrelationIDKey)))
}

// GetSchema godoc
// @Summary Get the schema of one collection
// @Tags schemas
// @Produce json
// @Param collection path string true "Collection name"
// @Success 200 {object} response.StandardResponse{data=schema.Schema}
// @Failure 404 {object} response.StandardResponse
// @Router /api/v1/schemas/{collection} [get]
func (sc *SchemaController) GetSchema(c *gin.Context) {
	correlationID := c.GetString(middleware.CorrelationIDKey)
	collection := c.Param("collection")

	s, ok := sc.schemas.Lookup(collection)
	if !ok {
		c.JSON(http.StatusNotFound, response.ErrorResponseFromAppError(utils.NewNotFoundError("Collection "+collection), correlationID))
		return
	}
	c.JSON(http.StatusOK, response.SuccessResponse(s, correlationID))
}
