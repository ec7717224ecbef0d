package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Err writes err as a JSON error response using the code it carries.
func Err(c *gin.Context, err error) {
	var e *Error
	if As(err, &e) {
		code := e.Code
		if code == 0 {
			code = http.StatusInternalServerError
		}
		c.JSON(code, gin.H{"error": e.Error(), "kind": e.Kind()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("path", c.Request.URL.Path).
					Bytes("stack", debug.Stack()).
					Msgf("panic recovered: %v", r)
				Err(c, New(fmt.Errorf("%v", r), http.StatusInternalServerError, "internal server error"))
				c.Abort()
			}
		}()
		c.Next()
	}
}

func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		Err(c, c.Errors.Last().Err)
	}
}
