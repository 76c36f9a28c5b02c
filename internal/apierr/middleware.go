package apierr

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Middleware inspects c.Errors after handlers run and writes the first
// *Error found as {"message": "<text>"} with its mapped status. Handlers
// report failures with c.Error(apierr.BadRequest(...)) and return without
// writing a response themselves.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		var apiErr *Error
		for _, ginErr := range c.Errors {
			if errors.As(ginErr.Err, &apiErr) {
				break
			}
		}
		if apiErr == nil {
			c.JSON(http.StatusInternalServerError, gin.H{"message": c.Errors[0].Error()})
			return
		}
		c.JSON(apiErr.Status(), gin.H{"message": apiErr.Message})
	}
}
