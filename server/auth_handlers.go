package server

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"roomcast/errors"
	"roomcast/services"
)

type authHandlers struct {
	service services.IAuthService
	log     *slog.Logger
}

type registerIn struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginIn struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *authHandlers) register(c *gin.Context) {
	var in registerIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": errors.CodeValidation, "error": "invalid request body"})
		return
	}

	token, err := h.service.Register(c.Request.Context(), in.Name, in.Email, in.Password)
	if err != nil {
		replyError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token": token})
}

func (h *authHandlers) login(c *gin.Context) {
	var in loginIn
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": errors.CodeValidation, "error": "invalid request body"})
		return
	}

	token, err := h.service.Login(c.Request.Context(), in.Email, in.Password)
	if err != nil {
		replyError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
