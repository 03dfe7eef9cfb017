package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// UintParam извлекает числовой параметр маршрута и кладет его в контекст
// под ключом contextKey. Нечисловое значение обрывает запрос с 400,
// чтобы обработчикам доставались только валидные идентификаторы.
func UintParam(param, contextKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, err := strconv.ParseUint(c.Param(param), 10, 32)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "parameter " + param + " must be a positive integer",
			})
			return
		}
		c.Set(contextKey, uint(value))
		c.Next()
	}
}
