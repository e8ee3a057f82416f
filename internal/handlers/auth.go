// Package handlers contains the gin handlers for the portal: client auth and
// dashboard, password reset, the admin area, the static marketing pages,
// document upload and the contact form.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/zonefree41/getfiletax/internal/mail"
	"github.com/zonefree41/getfiletax/internal/rate"
	"github.com/zonefree41/getfiletax/internal/security"
	"github.com/zonefree41/getfiletax/internal/session"
	"github.com/zonefree41/getfiletax/internal/storage"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Store interface {
	CreateAccount(ctx context.Context, name, email, password, role string) (*storage.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*storage.Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (*storage.Account, error)
	ListAccounts(ctx context.Context) ([]storage.Account, error)
	MarkCompleted(ctx context.Context, id uuid.UUID) (*storage.Account, error)
	SetResetToken(ctx context.Context, email, tokenHash string, expiresAt time.Time) error
	ConsumeResetToken(ctx context.Context, tokenHash, newPassword string) error
	CreateContactSubmission(ctx context.Context, name, email, phone, message string) (*storage.ContactSubmission, error)
	ListContactSubmissions(ctx context.Context) ([]storage.ContactSubmission, error)
}

type AuthHandler struct {
	Store       Store
	Sessions    *session.Manager
	Mailer      *mail.Mailer
	Logger      *slog.Logger
	RateLimiter rate.Limiter
	Clock       Clock
	ResetTTL    time.Duration
}

type signupRequest struct {
	Name     string `form:"name" json:"name"`
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

type loginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

type forgotPasswordRequest struct {
	Email string `form:"email" json:"email"`
}

type resetPasswordRequest struct {
	Password        string `form:"password" json:"password"`
	ConfirmPassword string `form:"confirmPassword" json:"confirmPassword"`
}

func NewAuthHandler(store Store, sessions *session.Manager, mailer *mail.Mailer, logger *slog.Logger, limiter rate.Limiter, resetTTL time.Duration) *AuthHandler {
	return &AuthHandler{
		Store:       store,
		Sessions:    sessions,
		Mailer:      mailer,
		Logger:      logger,
		RateLimiter: limiter,
		Clock:       systemClock{},
		ResetTTL:    resetTTL,
	}
}

func (h *AuthHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/signup", func(c *gin.Context) { c.HTML(http.StatusOK, "signup.html", gin.H{}) })
	r.POST("/signup", h.Signup)
	r.GET("/login", func(c *gin.Context) { c.HTML(http.StatusOK, "login.html", gin.H{}) })
	r.POST("/login", h.Login)
	r.GET("/logout", h.Logout)
	r.GET("/dashboard", h.Sessions.RequireClient("/login"), h.Dashboard)
	r.GET("/forgot-password", func(c *gin.Context) { c.HTML(http.StatusOK, "forgot-password.html", gin.H{}) })
	r.POST("/forgot-password", h.ForgotPassword)
	r.GET("/reset-password/:token", h.ResetPasswordForm)
	r.POST("/reset-password/:token", h.ResetPassword)
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusBadRequest, "signup.html", gin.H{"Error": "invalid form"})
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if req.Name == "" || req.Email == "" || req.Password == "" {
		c.HTML(http.StatusBadRequest, "signup.html", gin.H{"Error": "name, email and password are required"})
		return
	}

	account, err := h.Store.CreateAccount(c.Request.Context(), req.Name, req.Email, req.Password, storage.RoleClient)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateAccount) {
			c.HTML(http.StatusBadRequest, "signup.html", gin.H{"Error": "an account with that email already exists"})
			return
		}
		h.Logger.Error("signup failed", "error", err)
		c.HTML(http.StatusInternalServerError, "signup.html", gin.H{"Error": "something went wrong, please try again"})
		return
	}

	if err := h.Sessions.Issue(c, account.ID, storage.SessionKindClient); err != nil {
		h.Logger.Error("session issue failed", "error", err)
		c.HTML(http.StatusInternalServerError, "signup.html", gin.H{"Error": "something went wrong, please try again"})
		return
	}

	c.HTML(http.StatusOK, "dashboard.html", gin.H{"User": account})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusBadRequest, "login.html", gin.H{"Error": "invalid form"})
		return
	}

	allowed, _, err := h.RateLimiter.Allow(c.Request.Context(), c.ClientIP(), h.Clock.Now())
	if err != nil {
		h.Logger.Error("rate limiter failed", "error", err)
	} else if !allowed {
		c.HTML(http.StatusTooManyRequests, "login.html", gin.H{"Error": "too many attempts, please wait a minute"})
		return
	}

	account, err := h.Store.GetAccountByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Same response as a bad password: never reveal which was wrong.
			c.HTML(http.StatusUnauthorized, "login.html", gin.H{"Error": "invalid email or password"})
			return
		}
		h.Logger.Error("login lookup failed", "error", err)
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{"Error": "something went wrong, please try again"})
		return
	}

	ok, err := security.VerifyPassword(req.Password, account.PasswordHash)
	if err != nil || !ok {
		c.HTML(http.StatusUnauthorized, "login.html", gin.H{"Error": "invalid email or password"})
		return
	}

	if err := h.Sessions.Issue(c, account.ID, storage.SessionKindClient); err != nil {
		h.Logger.Error("session issue failed", "error", err)
		c.HTML(http.StatusInternalServerError, "login.html", gin.H{"Error": "something went wrong, please try again"})
		return
	}

	c.Redirect(http.StatusFound, "/dashboard")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.Sessions.Destroy(c); err != nil {
		h.Logger.Error("logout failed", "error", err)
	}
	c.Redirect(http.StatusFound, "/login")
}

func (h *AuthHandler) Dashboard(c *gin.Context) {
	account, ok := session.AccountFromContext(c)
	if !ok {
		c.Redirect(http.StatusFound, "/login")
		return
	}
	c.HTML(http.StatusOK, "dashboard.html", gin.H{"User": account})
}

// ForgotPassword issues a reset token and emails the link. An unknown email is
// reported as such; token issuance survives a failed send so the user can
// retry delivery with the same link.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBind(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		c.HTML(http.StatusBadRequest, "forgot-password.html", gin.H{"Error": "email is required"})
		return
	}
	email := strings.TrimSpace(req.Email)

	allowed, _, err := h.RateLimiter.Allow(c.Request.Context(), c.ClientIP(), h.Clock.Now())
	if err != nil {
		h.Logger.Error("rate limiter failed", "error", err)
	} else if !allowed {
		c.HTML(http.StatusTooManyRequests, "forgot-password.html", gin.H{"Error": "too many attempts, please wait a minute"})
		return
	}

	account, err := h.Store.GetAccountByEmail(c.Request.Context(), email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.HTML(http.StatusNotFound, "forgot-password.html", gin.H{"Error": "no account with that email"})
			return
		}
		h.Logger.Error("forgot-password lookup failed", "error", err)
		c.HTML(http.StatusInternalServerError, "forgot-password.html", gin.H{"Error": "something went wrong, please try again"})
		return
	}

	token, tokenHash, err := h.Sessions.TokenGen.New()
	if err != nil {
		h.Logger.Error("reset token generation failed", "error", err)
		c.HTML(http.StatusInternalServerError, "forgot-password.html", gin.H{"Error": "something went wrong, please try again"})
		return
	}

	expiresAt := h.Clock.Now().Add(h.ResetTTL)
	if err := h.Store.SetResetToken(c.Request.Context(), account.Email, tokenHash, expiresAt); err != nil {
		h.Logger.Error("reset token store failed", "error", err)
		c.HTML(http.StatusInternalServerError, "forgot-password.html", gin.H{"Error": "something went wrong, please try again"})
		return
	}

	if err := h.Mailer.SendResetLink(c.Request.Context(), account.Email, account.Name, token); err != nil {
		h.Logger.Error("reset email delivery failed", "error", err, "email", account.Email)
		c.HTML(http.StatusBadGateway, "forgot-password.html", gin.H{"Error": "your reset link was created but the email could not be sent, please try again"})
		return
	}

	c.HTML(http.StatusOK, "forgot-password.html", gin.H{"Message": "check your inbox for a reset link"})
}

func (h *AuthHandler) ResetPasswordForm(c *gin.Context) {
	c.HTML(http.StatusOK, "reset-password.html", gin.H{"Token": c.Param("token")})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	token := c.Param("token")

	var req resetPasswordRequest
	if err := c.ShouldBind(&req); err != nil || req.Password == "" {
		c.HTML(http.StatusBadRequest, "reset-password.html", gin.H{"Token": token, "Error": "password is required"})
		return
	}

	if req.Password != req.ConfirmPassword {
		c.HTML(http.StatusBadRequest, "reset-password.html", gin.H{"Token": token, "Error": "passwords do not match"})
		return
	}

	err := h.Store.ConsumeResetToken(c.Request.Context(), security.HashToken(token), req.Password)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidOrExpiredToken) {
			c.HTML(http.StatusBadRequest, "reset-password.html", gin.H{"Token": token, "Error": "this reset link is invalid or has expired"})
			return
		}
		h.Logger.Error("reset password failed", "error", err)
		c.HTML(http.StatusInternalServerError, "reset-password.html", gin.H{"Token": token, "Error": "something went wrong, please try again"})
		return
	}

	c.HTML(http.StatusOK, "reset-password.html", gin.H{"Success": true})
}
