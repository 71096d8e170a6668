package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"todolist/internal/domain"
	"todolist/internal/service"
)

// Handler wires HTTP routes to the session service.
type Handler struct {
	sessions service.SessionService
	limiter  *RateLimiter
	metrics  http.Handler
	logger   *logrus.Logger
}

// NewHandler builds a Handler. limiter and metricsHandler may be nil.
func NewHandler(sessions service.SessionService, limiter *RateLimiter, metricsHandler http.Handler, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		sessions: sessions,
		limiter:  limiter,
		metrics:  metricsHandler,
		logger:   logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(recoveryMiddleware(h.logger))
	router.Use(requestLogger(h.logger))
	router.Use(securityHeaders())
	router.Use(corsMiddleware())

	if h.metrics != nil {
		router.GET("/metrics", gin.WrapH(h.metrics))
	}

	api := router.Group("/api")
	if h.limiter != nil {
		api.Use(h.limiter.Middleware())
	}
	{
		api.GET("/health", h.health)

		auth := api.Group("/auth")
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
		auth.POST("/refresh", h.refresh)
		auth.GET("/me", h.me)
		auth.POST("/logout", h.logout)
	}
}

type registerRequest struct {
	Name     string  `json:"nombre"`
	Alias    string  `json:"alias"`
	Email    *string `json:"email"`
	Password string  `json:"contraseña"`
}

type loginRequest struct {
	Alias    string `json:"alias"`
	Password string `json:"contraseña"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// UserResponse is the public view of a user.
type UserResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nombre"`
	Alias     string    `json:"alias"`
	Email     *string   `json:"email"`
	Photo     *string   `json:"foto"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type AuthResponse struct {
	User         *UserResponse `json:"user,omitempty"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "Server is running"})
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return
	}

	res, err := h.sessions.Register(c.Request.Context(), service.RegisterInput{
		Name:     req.Name,
		Alias:    req.Alias,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, authToResponse(res, true), "user registered")
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, codeBadRequest, "invalid request body")
		return
	}

	res, err := h.sessions.Login(c.Request.Context(), req.Alias, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	respondOK(c, http.StatusOK, authToResponse(res, true), "")
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		respondError(c, http.StatusUnauthorized, codeUnauthorized, "refresh token required")
		return
	}

	res, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.writeError(c, err)
		return
	}

	respondOK(c, http.StatusOK, authToResponse(res, false), "")
}

func (h *Handler) me(c *gin.Context) {
	raw, ok := bearerToken(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, codeUnauthorized, "missing or malformed authorization header")
		return
	}

	user, err := h.sessions.CurrentIdentity(c.Request.Context(), raw)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Set(userIDKey, user.ID)

	respondOK(c, http.StatusOK, userToResponse(user), "")
}

// logout accepts a bearer access token, a refresh token in the body, or both.
// A client whose access token has expired can still revoke its refresh token.
func (h *Handler) logout(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, http.StatusBadRequest, codeBadRequest, "invalid request body")
			return
		}
	}

	ctx := c.Request.Context()
	var authErr error
	if raw, ok := bearerToken(c); ok {
		identity, err := h.sessions.Authorize(raw)
		if err == nil {
			c.Set(userIDKey, identity.UserID)
			if err := h.sessions.Logout(ctx, identity, req.RefreshToken); err != nil {
				h.writeError(c, err)
				return
			}
			respondOK(c, http.StatusOK, nil, "logged out")
			return
		}
		authErr = err
	}

	switch {
	case req.RefreshToken != "":
		if err := h.sessions.LogoutWithRefresh(ctx, req.RefreshToken); err != nil {
			h.writeError(c, err)
			return
		}
		respondOK(c, http.StatusOK, nil, "logged out")
	case authErr != nil:
		h.writeError(c, authErr)
	default:
		respondError(c, http.StatusUnauthorized, codeUnauthorized, "authentication required")
	}
}

func authToResponse(res *service.AuthResult, withUser bool) AuthResponse {
	resp := AuthResponse{
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}
	if withUser {
		resp.User = userToResponse(res.User)
	}
	return resp
}

func userToResponse(user *domain.User) *UserResponse {
	if user == nil {
		return nil
	}
	return &UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Alias:     user.Alias,
		Email:     user.Email,
		Photo:     user.Photo,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
