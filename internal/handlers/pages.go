package handlers

import (
	"net/http"
	"strings"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/zonefree41/getfiletax/internal/payments"
)

// companyInfo feeds the terms and privacy templates.
type companyInfo struct {
	Name         string
	Address      string
	ContactEmail string
}

var company = companyInfo{
	Name:         "Tax Expert",
	Address:      "320 23rd St, Arlington, VA, 22202 USA",
	ContactEmail: "info@tax-expert.pro",
}

// staticPages maps a route to the template it renders, data-free.
var staticPages = map[string]string{
	"/home":                  "home.html",
	"/about-us":              "about-us.html",
	"/contact-us":            "contact-us.html",
	"/checkout":              "checkout.html",
	"/services":              "services.html",
	"/faq":                   "faq.html",
	"/sitemap":               "sitemap.html",
	"/book-now":              "book-now.html",
	"/appointment":           "appointment.html",
	"/book-an-appointment":   "book-an-appointment.html",
	"/get-consultation":      "get-consultation.html",
	"/upload-documents":      "upload-documents.html",
	"/upload-forms":          "upload-forms.html",
	"/get-free-consultation": "get-free-consultation.html",
	"/view-our-services":     "view-our-services.html",
	"/get-started":           "get-started.html",
	"/book":                  "book.html",
	"/explore":               "explore.html",
	"/requirements":          "requirements.html",
	"/blog":                  "blog.html",
	"/blog1":                 "blog1.html",
	"/blog2":                 "blog2.html",
	"/blog3":                 "blog3.html",
	"/success":               "success.html",
}

type PagesHandler struct {
	Store  Store
	Plans  *payments.Catalog
	Logger *slog.Logger
}

type contactRequest struct {
	Name    string `form:"name" json:"name"`
	Email   string `form:"email" json:"email"`
	Phone   string `form:"phone" json:"phone"`
	Message string `form:"message" json:"message"`
}

func NewPagesHandler(store Store, plans *payments.Catalog, logger *slog.Logger) *PagesHandler {
	return &PagesHandler{Store: store, Plans: plans, Logger: logger}
}

func (h *PagesHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/home") })
	r.GET("/cancel", func(c *gin.Context) { c.Redirect(http.StatusFound, "/get-started") })

	for path, page := range staticPages {
		page := page
		r.GET(path, func(c *gin.Context) { c.HTML(http.StatusOK, page, gin.H{}) })
	}

	r.GET("/terms", func(c *gin.Context) {
		c.HTML(http.StatusOK, "terms-of-services.html", gin.H{"Company": company})
	})
	r.GET("/privacy", func(c *gin.Context) {
		c.HTML(http.StatusOK, "privacy-policy.html", gin.H{"Company": company})
	})

	r.GET("/pricing", h.Pricing)
	r.GET("/payment", h.Payment)
	r.GET("/checkout/:plan", h.Checkout)

	r.POST("/contact-us", h.Contact)
}

func (h *PagesHandler) Pricing(c *gin.Context) {
	c.HTML(http.StatusOK, "pricing.html", gin.H{"Plans": h.Plans.Plans()})
}

func (h *PagesHandler) Payment(c *gin.Context) {
	plan := c.Query("plan")
	if plan == "" {
		plan = "Standard"
	}
	c.HTML(http.StatusOK, "payment.html", gin.H{"Plan": plan})
}

// Checkout redirects to the hosted payment page for the named plan.
func (h *PagesHandler) Checkout(c *gin.Context) {
	plan, ok := h.Plans.Lookup(c.Param("plan"))
	if !ok {
		c.Redirect(http.StatusFound, "/pricing")
		return
	}
	c.Redirect(http.StatusFound, plan.CheckoutURL)
}

func (h *PagesHandler) Contact(c *gin.Context) {
	var req contactRequest
	if err := c.ShouldBind(&req); err != nil {
		c.HTML(http.StatusBadRequest, "contact-us.html", gin.H{"Error": "invalid form"})
		return
	}

	if strings.TrimSpace(req.Email) == "" || strings.TrimSpace(req.Message) == "" {
		c.HTML(http.StatusBadRequest, "contact-us.html", gin.H{"Error": "email and message are required"})
		return
	}

	if _, err := h.Store.CreateContactSubmission(c.Request.Context(), req.Name, req.Email, req.Phone, req.Message); err != nil {
		h.Logger.Error("contact submission failed", "error", err)
		c.HTML(http.StatusInternalServerError, "contact-us.html", gin.H{"Error": "something went wrong, please try again"})
		return
	}

	c.HTML(http.StatusOK, "contact-us.html", gin.H{"Message": "thanks, we will get back to you shortly"})
}
