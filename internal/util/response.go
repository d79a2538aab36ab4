package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response is the data payload of a successful reply.
type Response map[string]interface{}

// Business codes carried in the "code" field of every reply.
const (
	CodeOK             = 0
	CodeInvalidParam   = 40001
	CodeAuth           = 40101
	CodeSessionExpired = 40102
	CodeForbidden      = 40301
	CodeNotFound       = 40401
	CodeConflict       = 40901
	CodeTooMany        = 42901
	CodeServerErr      = 50001
)

// Success writes a 200 reply wrapping data.
func Success(c *gin.Context, data Response) {
	c.JSON(http.StatusOK, gin.H{
		"code": CodeOK,
		"data": data,
	})
}

// Created writes a 201 reply wrapping data.
func Created(c *gin.Context, data Response) {
	c.JSON(http.StatusCreated, gin.H{
		"code": CodeOK,
		"data": data,
	})
}

// Error writes an error reply.
func Error(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
	})
}
