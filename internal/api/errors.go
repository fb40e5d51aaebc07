package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"iot-telemetry-backend/internal/service"
	"iot-telemetry-backend/internal/validation"
)

// parseID reads the :id path parameter, replying 400 when it is not an integer.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid device ID"})
		return 0, false
	}
	return id, true
}

// bindJSON decodes the request body into req. Type mismatches are reported
// per field like other validation failures.
func bindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{typeErr.Field: []string{"Incorrect type. Expected " + typeErr.Type.String() + "."}})
		return false
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	return false
}

// writeError translates service errors into HTTP responses. notFoundMsg
// replaces the error text for 404s when non-empty.
func writeError(c *gin.Context, err error, notFoundMsg string) {
	var verr *validation.Error
	var nf *service.NotFoundError
	switch {
	case errors.As(err, &verr):
		c.AbortWithStatusJSON(http.StatusBadRequest, verr.Fields)
	case errors.As(err, &nf):
		msg := notFoundMsg
		if msg == "" {
			msg = nf.Error()
		}
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": msg})
	default:
		log.Printf("%s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
