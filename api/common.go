package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// RespondSuccess writes the standard success envelope.
func RespondSuccess(c *gin.Context, data interface{}) {
	c.JSON(200, gin.H{
		"status": "success",
		"data":   data,
	})
}

// RespondError writes the standard error envelope.
func RespondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"status":  "error",
		"ok":      false,
		"message": message,
	})
}

// QueryInt returns a query parameter as int, or def when absent or
// malformed.
func QueryInt(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
