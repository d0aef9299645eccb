package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	resp "neurolab/internal/transport/http/response"
)

// KeyCode holds the business code of the envelope written for the request.
// The HTTP status is always 200, so logs and metrics read this instead.
const KeyCode = "respCode"

// Reply writes r as the response.
func Reply(c *gin.Context, r resp.Resp) {
	c.Set(KeyCode, r.Code)
	c.JSON(http.StatusOK, r)
}

// Abort writes r and stops the handler chain.
func Abort(c *gin.Context, r resp.Resp) {
	c.Set(KeyCode, r.Code)
	c.AbortWithStatusJSON(http.StatusOK, r)
}

// code reports the envelope code, or "-" for non-envelope responses such as
// downloads and /metrics.
func code(c *gin.Context) string {
	if v, ok := c.Get(KeyCode); ok {
		if n, ok := v.(int); ok {
			return strconv.Itoa(n)
		}
	}
	return "-"
}
