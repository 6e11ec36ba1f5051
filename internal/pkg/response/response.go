package response

import (
	"github.com/gin-gonic/gin"
)

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
}

func Success(c *gin.Context, status int, data interface{}) {
	c.JSON(status, data)
}

func Error(c *gin.Context, status int, code int, message string) {
	c.AbortWithStatusJSON(status, errorBody{Code: code, Message: message})
}
