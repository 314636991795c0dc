package file

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abduss/filebroker/internal/provider"
	"github.com/abduss/filebroker/internal/token"
	"github.com/abduss/filebroker/internal/user"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UploadTokenHeader carries the single-use token authorizing an upload.
const UploadTokenHeader = "X-Upload-Token"

// SweepSecretHeader carries the shared secret guarding the expiry sweep.
const SweepSecretHeader = "X-VK-Secret"

// SecretSource returns the shared secret active at call time. Secrets are
// hot-reloadable, so the value is read per request.
type SecretSource func() string

// RegisterRoutes mounts file operations under the provided router group.
func RegisterRoutes(group *gin.RouterGroup, service *Service, sweepSecret SecretSource) {
	handler := &httpHandler{service: service, sweepSecret: sweepSecret}
	group.POST("/files/token", handler.issueToken)
	group.POST("/files", handler.uploadFile)
	group.DELETE("/files", handler.sweepExpired)
	group.GET("/files/:fileID", handler.getMetadata)
	group.PATCH("/files/:fileID", handler.updateMetadata)
	group.DELETE("/files/:fileID", handler.deleteFile)
	group.GET("/files/:fileID/content", handler.downloadFile)
}

type httpHandler struct {
	service     *Service
	sweepSecret SecretSource
}

type issueTokenRequest struct {
	UserID *string `json:"user_id"`
}

type issueTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"`
}

func (h *httpHandler) issueToken(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	var owner *uuid.UUID
	if req.UserID != nil {
		parsed, err := uuid.Parse(*req.UserID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		owner = &parsed
	}

	tok, ttl, err := h.service.IssueToken(c.Request.Context(), owner)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, issueTokenResponse{Token: tok, ExpiresIn: int64(ttl / time.Second)})
}

type uploadResponse struct {
	FileID     string     `json:"file_id"`
	Size       int64      `json:"size"`
	MimeType   string     `json:"mime_type"`
	FileName   string     `json:"file_name"`
	UploadedAt time.Time  `json:"uploaded_at"`
	DeleteAt   *time.Time `json:"delete_at,omitempty"`
}

func (h *httpHandler) uploadFile(c *gin.Context) {
	// Token check comes first so unauthenticated requests never pay for
	// multipart parsing.
	tok := c.GetHeader(UploadTokenHeader)
	if tok == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	tokenOwner, err := h.service.Authorize(c.Request.Context(), tok)
	if err != nil {
		respondError(c, err)
		return
	}

	req, err := parseUploadForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request format"})
		return
	}

	meta, err := h.service.Upload(c.Request.Context(), tokenOwner, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, uploadResponse{
		FileID:     meta.FileID,
		Size:       meta.Size,
		MimeType:   meta.MimeType,
		FileName:   meta.FileName,
		UploadedAt: meta.UploadedAt,
		DeleteAt:   meta.DeleteAt,
	})
}

func parseUploadForm(c *gin.Context) (UploadRequest, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return UploadRequest{}, fmt.Errorf("file part: %w", err)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return UploadRequest{}, fmt.Errorf("open file part: %w", err)
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return UploadRequest{}, fmt.Errorf("read file part: %w", err)
	}

	req := UploadRequest{
		Content:  content,
		Filename: c.PostForm("filename"),
		MimeType: c.PostForm("mime_type"),
		Kind:     c.PostForm("type"),
	}

	if raw, ok := c.GetPostForm("user_id"); ok {
		parsed, err := uuid.Parse(raw)
		if err != nil {
			return UploadRequest{}, fmt.Errorf("parse user_id: %w", err)
		}
		req.UserID = &parsed
	}
	if raw, ok := c.GetPostForm("description"); ok {
		req.Description = &raw
	}

	return req, nil
}

func (h *httpHandler) downloadFile(c *gin.Context) {
	meta, data, err := h.service.Download(c.Request.Context(), c.Param("fileID"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", meta.FileName))
	c.Data(http.StatusOK, meta.MimeType, data)
}

func (h *httpHandler) getMetadata(c *gin.Context) {
	meta, err := h.service.GetMetadata(c.Request.Context(), c.Param("fileID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *httpHandler) updateMetadata(c *gin.Context) {
	var patch MetadataPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	meta, err := h.service.UpdateMetadata(c.Request.Context(), c.Param("fileID"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

func (h *httpHandler) deleteFile(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("fileID")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) sweepExpired(c *gin.Context) {
	provided := c.GetHeader(SweepSecretHeader)
	expected := h.sweepSecret()
	if provided == "" || expected == "" ||
		subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	result, err := h.service.Sweep(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	// 200 even with partial failures; callers inspect the errors array.
	c.JSON(http.StatusOK, result)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrFileNotFound), errors.Is(err, user.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
	case errors.Is(err, ErrMalformedRequest), errors.Is(err, ErrImmutableMetadata):
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad request"})
	case errors.Is(err, ErrUnauthorized), errors.Is(err, token.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case errors.Is(err, ErrPayloadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
	case errors.Is(err, ErrUnsupportedMediaType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "media type not allowed"})
	case errors.Is(err, user.ErrInsufficientStorage):
		c.JSON(http.StatusInsufficientStorage, gin.H{"error": "insufficient storage quota"})
	case errors.Is(err, provider.ErrObjectNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
	case errors.Is(err, provider.ErrUnavailable), errors.Is(err, token.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service temporarily unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
