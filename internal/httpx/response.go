// Package httpx holds the JSON response shapes shared by all handlers.
// Errors always arrive as {"error": ...} so clients can parse one field.
package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func OK(c *gin.Context, v any) {
	c.JSON(http.StatusOK, v)
}

func Err(c *gin.Context, code int, msg any) {
	c.JSON(code, gin.H{"error": msg})
}
