package instance

import (
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AdminSecretHeader must carry the shared admin secret on every instance
// administration request.
const AdminSecretHeader = "X-KV-SECRET"

// SecretMiddleware rejects requests whose admin secret header does not
// match the current shared secret.
func SecretMiddleware(secret func() string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader(AdminSecretHeader)
		expected := secret()
		if provided == "" || expected == "" ||
			subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

type httpHandler struct {
	service *Service
}

// RegisterRoutes mounts instance administration under the provided group,
// protected by the admin secret middleware.
func RegisterRoutes(group *gin.RouterGroup, service *Service) {
	handler := &httpHandler{service: service}

	admin := group.Group("/instances", SecretMiddleware(service.VKSecret))
	admin.GET("", handler.listInstances)
	admin.GET("/:serverID", handler.getInstance)
	admin.PATCH("/:serverID", handler.updateInstance)
}

func (h *httpHandler) listInstances(c *gin.Context) {
	ids, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ids)
}

func (h *httpHandler) getInstance(c *gin.Context) {
	cfg, err := h.service.Get(c.Request.Context(), c.Param("serverID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h *httpHandler) updateInstance(c *gin.Context) {
	var patch LocalConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	cfg, err := h.service.Reconfigure(c.Request.Context(), c.Param("serverID"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInstanceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "resource not found"})
	case errors.Is(err, ErrServerIDMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid server id"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
