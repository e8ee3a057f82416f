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
	"github.com/zonefree41/getfiletax/internal/security"
	"github.com/zonefree41/getfiletax/internal/session"
	"github.com/zonefree41/getfiletax/internal/storage"
	"github.com/zonefree41/getfiletax/internal/uploads"
)

// AdminHandler serves the staff area: login against a store-backed admin
// account, the client roster, completion marking, uploaded files and contact
// messages. Every route except login sits behind the admin session guard.
type AdminHandler struct {
	Store    Store
	Sessions *session.Manager
	Mailer   *mail.Mailer
	Logger   *slog.Logger
	Files    *uploads.LocalStorage
}

type adminLoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

func NewAdminHandler(store Store, sessions *session.Manager, mailer *mail.Mailer, logger *slog.Logger, files *uploads.LocalStorage) *AdminHandler {
	return &AdminHandler{
		Store:    store,
		Sessions: sessions,
		Mailer:   mailer,
		Logger:   logger,
		Files:    files,
	}
}

func (h *AdminHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/admin", func(c *gin.Context) { c.HTML(http.StatusOK, "admin-login.html", gin.H{}) })
	r.POST("/admin", h.Login)

	guarded := r.Group("/admin", h.Sessions.RequireAdmin("/admin"))
	guarded.GET("/dashboard", h.Dashboard)
	guarded.POST("/mark-complete/:id", h.MarkComplete)
	guarded.GET("/files", h.FilesList)
	guarded.GET("/messages", h.Messages)
	guarded.GET("/logout", h.Logout)
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusBadRequest, "admin-login.html", gin.H{"Error": "invalid form"})
		return
	}

	account, err := h.Store.GetAccountByEmail(c.Request.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{"Error": "invalid credentials"})
			return
		}
		h.Logger.Error("admin login lookup failed", "error", err)
		c.HTML(http.StatusInternalServerError, "admin-login.html", gin.H{"Error": "something went wrong, please try again"})
		return
	}

	// A client account never opens the admin gate, regardless of password.
	if account.Role != storage.RoleAdmin {
		c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{"Error": "invalid credentials"})
		return
	}

	ok, err := security.VerifyPassword(req.Password, account.PasswordHash)
	if err != nil || !ok {
		c.HTML(http.StatusUnauthorized, "admin-login.html", gin.H{"Error": "invalid credentials"})
		return
	}

	if err := h.Sessions.Issue(c, account.ID, storage.SessionKindAdmin); err != nil {
		h.Logger.Error("admin session issue failed", "error", err)
		c.HTML(http.StatusInternalServerError, "admin-login.html", gin.H{"Error": "something went wrong, please try again"})
		return
	}

	c.Redirect(http.StatusFound, "/admin/dashboard")
}

func (h *AdminHandler) Logout(c *gin.Context) {
	if err := h.Sessions.Destroy(c); err != nil {
		h.Logger.Error("admin logout failed", "error", err)
	}
	c.Redirect(http.StatusFound, "/admin")
}

func (h *AdminHandler) Dashboard(c *gin.Context) {
	accounts, err := h.Store.ListAccounts(c.Request.Context())
	if err != nil {
		h.Logger.Error("roster load failed", "error", err)
		c.HTML(http.StatusInternalServerError, "admin-dashboard.html", gin.H{"Error": "could not load accounts"})
		return
	}
	c.HTML(http.StatusOK, "admin-dashboard.html", gin.H{"Users": accounts})
}

// MarkComplete transitions a client to completed and sends the notice without
// blocking the response: the transition commits even if the email fails.
func (h *AdminHandler) MarkComplete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.HTML(http.StatusNotFound, "admin-dashboard.html", gin.H{"Error": "no such account"})
		return
	}

	account, err := h.Store.MarkCompleted(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.HTML(http.StatusNotFound, "admin-dashboard.html", gin.H{"Error": "no such account"})
			return
		}
		h.Logger.Error("mark complete failed", "error", err, "account_id", id)
		c.HTML(http.StatusInternalServerError, "admin-dashboard.html", gin.H{"Error": "could not update account"})
		return
	}

	go func(email, name string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := h.Mailer.SendCompletionNotice(ctx, email, name); err != nil {
			h.Logger.Error("completion email delivery failed", "error", err, "email", email)
		}
	}(account.Email, account.Name)

	c.Redirect(http.StatusFound, "/admin/dashboard")
}

func (h *AdminHandler) FilesList(c *gin.Context) {
	files, err := h.Files.ListPDFs()
	if err != nil {
		h.Logger.Error("uploads listing failed", "error", err)
		c.HTML(http.StatusInternalServerError, "admin-files.html", gin.H{"Error": "could not list files"})
		return
	}
	c.HTML(http.StatusOK, "admin-files.html", gin.H{"Files": files})
}

func (h *AdminHandler) Messages(c *gin.Context) {
	subs, err := h.Store.ListContactSubmissions(c.Request.Context())
	if err != nil {
		h.Logger.Error("contact submissions load failed", "error", err)
		c.HTML(http.StatusInternalServerError, "admin-messages.html", gin.H{"Error": "could not load messages"})
		return
	}
	c.HTML(http.StatusOK, "admin-messages.html", gin.H{"Messages": subs})
}
