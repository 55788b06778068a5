package handler

import (
	"net/http"

	"team-pulse/internal/logger"
	"team-pulse/internal/middleware"
	"team-pulse/internal/model"
	"team-pulse/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	auth   *service.AuthService
	signer *middleware.Signer
}

func NewAuthHandler(auth *service.AuthService, signer *middleware.Signer) *AuthHandler {
	return &AuthHandler{auth: auth, signer: signer}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	m, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		logger.Warn("login.failed", "username", req.Username)
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	token, err := h.signer.Issue(m.ID, m.Name, m.Role, m.Workspace)
	if err != nil {
		logger.Error("login.sign_failed", "uid", m.ID, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}
	logger.Info("login.ok", "uid", m.ID, "name", m.Name, "workspace", m.Workspace)

	c.JSON(http.StatusOK, model.LoginResponse{
		Token: token,
		User:  model.User{ID: m.ID, Name: m.Name, Avatar: m.Avatar, Role: m.Role, Workspace: m.Workspace},
	})
}
