package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	resp "neurolab/internal/transport/http/response"
)

// MaxBodyBytes caps request bodies: multipart uploads at upload bytes, all
// others at body bytes. A declared Content-Length over the cap is refused up
// front; undeclared bodies fail when the binder reads past it.
func MaxBodyBytes(body, upload int64) gin.HandlerFunc {
	if upload <= 0 {
		upload = body
	}
	return func(c *gin.Context) {
		limit := body
		if strings.HasPrefix(c.ContentType(), "multipart/") {
			limit = upload
		}
		if c.Request.ContentLength > limit {
			Abort(c, resp.Error(resp.CodeBadRequest, "request body too large"))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		}
		c.Next()
	}
}
