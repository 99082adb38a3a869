package helper_util

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// GetLimitParam reads the "limit" query parameter with a default.
func GetLimitParam(c *gin.Context, fallback int) (int, error) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(fallback)))
	if err != nil {
		return 0, err
	}
	return limit, nil
}
