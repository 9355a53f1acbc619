package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Nasko29/progimage-backend/internal/config"
	"github.com/Nasko29/progimage-backend/internal/domain"
	"github.com/Nasko29/progimage-backend/internal/service"
	"github.com/Nasko29/progimage-backend/pkg/utils"
)

const docsURL = "https://docs.readthedocs.io"

type Handler struct {
	clients service.ClientService
	images  service.ImageService
	cfg     *config.Config
	log     *zap.Logger
}

func NewHandler(clients service.ClientService, images service.ImageService, cfg *config.Config, log *zap.Logger) *Handler {
	return &Handler{
		clients: clients,
		images:  images,
		cfg:     cfg,
		log:     log,
	}
}

// Index redirects to the API documentation.
func (h *Handler) Index(c *gin.Context) {
	c.Redirect(http.StatusMovedPermanently, docsURL)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK"})
}

// Register creates a new client and returns its API key.
func (h *Handler) Register(c *gin.Context) {
	client, err := h.clients.Register(c.Request.Context())
	if err != nil {
		h.log.Error("Failed to register client", zap.Error(err))
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.RegisterResponse{APIKey: client.APIKey})
}

// Deregister deletes the authenticated client along with all of its image
// records and blobs. Responds 200 regardless of how many blobs existed.
func (h *Handler) Deregister(c *gin.Context) {
	clientID := clientIDFrom(c)

	if err := h.clients.Deregister(c.Request.Context(), clientID); err != nil {
		h.log.Error("Failed to deregister client",
			zap.String("clientid", clientID),
			zap.Error(err))
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusOK)
}

// Upload stores a multipart file under a fresh uid.
func (h *Handler) Upload(c *gin.Context) {
	clientID := clientIDFrom(c)

	file, err := c.FormFile("file")
	if err != nil {
		h.respondStatus(c, http.StatusForbidden, "no file provided")
		return
	}

	if file.Size > h.cfg.App.MaxUploadSize {
		h.respondStatus(c, http.StatusForbidden, "file too large")
		return
	}

	filename := utils.SanitizeFilename(file.Filename)
	if filename == "" {
		h.respondStatus(c, http.StatusForbidden, "missing filename")
		return
	}

	if !h.allowedExtension(domain.ExtensionOf(filename)) {
		h.respondStatus(c, http.StatusForbidden, "file extension not allowed")
		return
	}

	src, err := file.Open()
	if err != nil {
		h.log.Error("Failed to open uploaded file", zap.Error(err))
		h.respondStatus(c, http.StatusInternalServerError, "failed to process file")
		return
	}
	defer src.Close()

	image, err := h.images.Upload(c.Request.Context(), clientID, filename, src, file.Size)
	if err != nil {
		h.log.Error("Failed to upload image",
			zap.String("clientid", clientID),
			zap.String("filename", filename),
			zap.Error(err))
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.UploadResponse{UID: image.UID})
}

// Download redirects to a short-lived presigned URL for the original blob.
func (h *Handler) Download(c *gin.Context) {
	clientID := clientIDFrom(c)

	uid := c.Query("uid")
	if uid == "" {
		h.respondStatus(c, http.StatusForbidden, "missing uid")
		return
	}

	url, err := h.images.Download(c.Request.Context(), clientID, uid)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Redirect(http.StatusFound, url)
}

// Convert re-encodes an image into the extension carried by the route and
// redirects to a presigned URL for the result. The 301 marks derivatives
// as reusable; converting to the image's own extension redirects to the
// original without creating anything.
func (h *Handler) Convert(c *gin.Context) {
	clientID := clientIDFrom(c)

	uid := c.Query("uid")
	if uid == "" {
		h.respondStatus(c, http.StatusForbidden, "missing uid")
		return
	}

	url, err := h.images.Convert(c.Request.Context(), clientID, uid, c.Param("extension"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Redirect(http.StatusMovedPermanently, url)
}

// NotFound is the catch-all for unmatched routes.
func (h *Handler) NotFound(c *gin.Context) {
	h.respondStatus(c, http.StatusNotFound, "not found")
}

func (h *Handler) allowedExtension(ext string) bool {
	for _, allowed := range h.cfg.App.AllowedFormats {
		if ext == strings.ToLower(strings.TrimPrefix(allowed, ".")) {
			return true
		}
	}
	return false
}

func (h *Handler) respondStatus(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, domain.ErrorResponse{
		Status:  status,
		Message: message,
	})
}

// respondError maps the domain error taxonomy onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		h.respondStatus(c, http.StatusForbidden, "invalid credentials")
	case errors.Is(err, domain.ErrValidation):
		h.respondStatus(c, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		h.respondStatus(c, http.StatusNotFound, "not found")
	default:
		h.log.Error("Request failed", zap.Error(err))
		h.respondStatus(c, http.StatusInternalServerError, "internal server error")
	}
}

func clientIDFrom(c *gin.Context) string {
	return c.GetString(contextClientID)
}
