package auth

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/callvox/backend/internal/models"
	"github.com/callvox/backend/pkg/response"
	"github.com/callvox/backend/pkg/utils"
)

const resetTokenTTL = 15 * time.Minute

// Mailer sends password reset email. Nil-safe: a handler without a mailer logs and skips.
type Mailer interface {
	SendPasswordReset(to, resetLink string) error
}

// RegisterRequest is the body for POST /api/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
	Credits  int    `json:"credits"`
}

// LoginRequest is the body for POST /api/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string            `json:"token"`
	User  models.UserPublic `json:"user"`
}

// UpdateUserRequest is the body for PUT /api/users/:id (admin).
type UpdateUserRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Role    string `json:"role" binding:"required"`
	Credits int    `json:"credits"`
}

// ForgotPasswordRequest is the body for POST /api/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResetPasswordRequest is the body for POST /api/reset-password.
type ResetPasswordRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	repo     *Repository
	jwt      *JWTService
	rdb      *redis.Client
	mailer   Mailer
	resetURL string
	logger   *zap.Logger
}

// NewHandler creates an auth handler. Reset tokens live in Redis with a 15 minute TTL.
func NewHandler(repo *Repository, jwt *JWTService, rdb *redis.Client, mailer Mailer, resetURL string, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, jwt: jwt, rdb: rdb, mailer: mailer, resetURL: resetURL, logger: logger}
}

// Register handles POST /api/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	if _, err := h.repo.GetByEmail(c.Request.Context(), req.Email); err == nil {
		response.BadRequest(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}

	user, err := h.repo.Create(c.Request.Context(), req.Email, hash, req.Name, models.RoleUser, req.Credits)
	if err != nil {
		h.logger.Error("create user", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.Created(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Login handles POST /api/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}

	if err := h.repo.TouchLastLogin(c.Request.Context(), user.ID); err != nil {
		h.logger.Warn("touch last login", zap.Error(err))
	}

	token, err := h.jwt.Generate(user.ID, user.Email, string(user.Role))
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}

	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// Profile handles GET /api/profile.
func (h *Handler) Profile(c *gin.Context) {
	userID := c.MustGet("user_id").(uuid.UUID)
	user, err := h.repo.GetByID(c.Request.Context(), userID)
	if err != nil {
		response.NotFound(c, "user not found")
		return
	}
	response.OK(c, user.ToPublic())
}

// List handles GET /api/users (admin only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list users", zap.Error(err))
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, gin.H{"users": list})
}

// Update handles PUT /api/users/:id (admin only).
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	role := models.Role(req.Role)
	if role != models.RoleAdmin && role != models.RoleUser {
		response.BadRequest(c, "invalid role")
		return
	}
	user, err := h.repo.Update(c.Request.Context(), id, req.Name, req.Email, role, req.Credits)
	if err != nil {
		h.logger.Error("update user", zap.Error(err))
		response.Internal(c, "failed to update user")
		return
	}
	response.OK(c, user.ToPublic())
}

// Delete handles DELETE /api/users/:id (admin only).
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return
	}
	if err := h.repo.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("delete user", zap.Error(err))
		response.Internal(c, "failed to delete user")
		return
	}
	response.OK(c, gin.H{"deleted": id})
}

// ForgotPassword handles POST /api/forgot-password. The response does not reveal
// whether the email is registered.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	user, err := h.repo.GetByEmail(c.Request.Context(), req.Email)
	if err != nil {
		response.OK(c, gin.H{"message": "if the email is registered, a reset link will be sent"})
		return
	}

	token := uuid.New().String()
	if err := h.rdb.Set(c.Request.Context(), resetKey(token), user.Email, resetTokenTTL).Err(); err != nil {
		h.logger.Error("store reset token", zap.Error(err))
		response.Internal(c, "failed to create reset token")
		return
	}

	link := fmt.Sprintf("%s/reset-password.html?token=%s", h.resetURL, token)
	if h.mailer == nil {
		h.logger.Warn("mailer not configured, skipping reset email", zap.String("email", user.Email))
	} else if err := h.mailer.SendPasswordReset(user.Email, link); err != nil {
		h.logger.Error("send reset email", zap.Error(err), zap.String("email", user.Email))
	}

	response.OK(c, gin.H{"message": "if the email is registered, a reset link will be sent"})
}

// ResetPassword handles POST /api/reset-password.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	email, err := h.rdb.Get(c.Request.Context(), resetKey(req.Token)).Result()
	if err != nil {
		response.BadRequest(c, "invalid or expired token")
		return
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	if err := h.repo.UpdatePassword(c.Request.Context(), email, hash); err != nil {
		h.logger.Error("update password", zap.Error(err))
		response.Internal(c, "failed to reset password")
		return
	}
	h.rdb.Del(c.Request.Context(), resetKey(req.Token))

	response.OK(c, gin.H{"message": "password reset successful"})
}

func resetKey(token string) string {
	return "pwreset:" + token
}
