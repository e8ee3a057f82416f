package handlers

import (
	"net/http"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/zonefree41/getfiletax/internal/metrics"
	"github.com/zonefree41/getfiletax/internal/uploads"
)

// UploadHandler accepts multipart document uploads. Local disk serves dev and
// small deployments; the S3 backend is used when a bucket is configured.
type UploadHandler struct {
	Local    *uploads.LocalStorage
	Bucket   uploads.Storage
	Logger   *slog.Logger
	MaxFiles int
}

func NewUploadHandler(local *uploads.LocalStorage, bucket uploads.Storage, logger *slog.Logger, maxFiles int) *UploadHandler {
	return &UploadHandler{Local: local, Bucket: bucket, Logger: logger, MaxFiles: maxFiles}
}

func (h *UploadHandler) RegisterRoutes(r *gin.Engine) {
	r.POST("/upload-forms", h.uploadTo(h.Local, "local"))
	if h.Bucket != nil {
		r.POST("/upload-forms-s3", h.uploadTo(h.Bucket, "s3"))
	}
	r.Static("/uploads", h.Local.Dir())
}

func (h *UploadHandler) uploadTo(dst uploads.Storage, backend string) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := c.MultipartForm()
		if err != nil {
			c.HTML(http.StatusBadRequest, "upload-forms.html", gin.H{"Error": "invalid upload"})
			return
		}

		files := form.File["documents"]
		if len(files) == 0 {
			c.HTML(http.StatusBadRequest, "upload-forms.html", gin.H{"Error": "choose at least one document"})
			return
		}
		if len(files) > h.MaxFiles {
			c.HTML(http.StatusBadRequest, "upload-forms.html", gin.H{"Error": "too many files"})
			return
		}

		var stored []uploads.StoredFile
		for _, fh := range files {
			src, err := fh.Open()
			if err != nil {
				c.HTML(http.StatusBadRequest, "upload-forms.html", gin.H{"Error": "could not read upload"})
				return
			}

			sf, err := dst.Save(c.Request.Context(), fh.Filename, src, fh.Size)
			src.Close()
			if err != nil {
				h.Logger.Error("upload failed", "error", err, "backend", backend, "file", fh.Filename)
				metrics.UploadCount.WithLabelValues(backend, "failed").Inc()
				c.HTML(http.StatusInternalServerError, "upload-forms.html", gin.H{"Error": "upload failed, please try again"})
				return
			}

			metrics.UploadCount.WithLabelValues(backend, "stored").Inc()
			stored = append(stored, *sf)
		}

		c.HTML(http.StatusOK, "upload-success.html", gin.H{"Files": stored})
	}
}
