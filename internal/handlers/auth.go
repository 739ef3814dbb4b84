package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/4xmen/pairchat/internal/auth"
)

type AuthHandler struct {
	authSvc *auth.Service
}

func NewAuthHandler(authSvc *auth.Service) *AuthHandler {
	return &AuthHandler{authSvc: authSvc}
}

type RegisterRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name"`
}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token    string `json:"token"`
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Register creates a new user account
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request")
		return
	}

	username := strings.TrimSpace(req.Username)
	userID, err := h.authSvc.Register(c.Request.Context(), username, req.Password, req.DisplayName)
	if err != nil {
		RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.authSvc.GenerateToken(userID, username)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "failed to generate token")
		return
	}

	c.JSON(http.StatusCreated, AuthResponse{
		Token:    token,
		UserID:   userID,
		Username: username,
	})
}

// Login authenticates a user and returns a token
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid request")
		return
	}

	token, userID, err := h.authSvc.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		RespondError(c, http.StatusUnauthorized, err.Error())
		return
	}

	c.JSON(http.StatusOK, AuthResponse{
		Token:    token,
		UserID:   userID,
		Username: strings.TrimSpace(req.Username),
	})
}

// AuthMiddleware validates the bearer token and stores the user id in the
// gin context under ContextUserID.
func (h *AuthHandler) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ""
		if authHeader := c.GetHeader("Authorization"); len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}

		if token == "" {
			AbortWithError(c, http.StatusUnauthorized, "missing authorization token")
			return
		}

		claims, err := h.authSvc.ValidateToken(token)
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, "invalid token")
			return
		}

		exists, err := h.authSvc.UserExists(c.Request.Context(), claims.UserID)
		if err != nil {
			AbortWithError(c, http.StatusInternalServerError, "failed to validate user")
			return
		}
		if !exists {
			AbortWithError(c, http.StatusUnauthorized, "user not found")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set("username", claims.Username)
		c.Next()
	}
}
