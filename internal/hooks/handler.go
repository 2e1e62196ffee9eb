package hooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/mediaoffload/internal/artifacts"
	"github.com/dmitrijs2005/mediaoffload/internal/common"
	"github.com/dmitrijs2005/mediaoffload/internal/logging"
	"github.com/dmitrijs2005/mediaoffload/internal/media"
	"github.com/dmitrijs2005/mediaoffload/internal/objectstore"
	"github.com/dmitrijs2005/mediaoffload/internal/offload"
)

// Items is the slice of item persistence the hooks touch.
type Items interface {
	Get(ctx context.Context, id int64) (media.Item, error)
	SaveMetadata(ctx context.Context, id int64, meta media.Metadata) error
	SetPending(ctx context.Context, id int64, pending bool) error
	Upsert(ctx context.Context, item media.Item) error
	Delete(ctx context.Context, id int64) error
}

// Syncer is the part of offload.Engine the hooks drive.
type Syncer interface {
	UploadAndEvict(ctx context.Context, item media.Item, meta media.Metadata) media.Metadata
	Delete(ctx context.Context, item media.Item) offload.DeleteResult
	Resolver() *artifacts.Resolver
}

// Queue is the part of queue.Queue the hooks drive.
type Queue interface {
	Enqueue(ctx context.Context, id int64) (bool, error)
	Remove(ctx context.Context, id int64) (bool, error)
	Schedule(ctx context.Context)
}

// URLSigner derives public and presigned URLs.
type URLSigner interface {
	PublicURL(key string) string
	PresignedUploadURL(ctx context.Context, key, contentType string, ttlMinutes int) (string, error)
}

type Handler struct {
	items  Items
	engine Syncer
	queue  Queue
	urls   URLSigner
	logger logging.Logger
}

func NewHandler(items Items, engine Syncer, q Queue, urls URLSigner, l logging.Logger) *Handler {
	return &Handler{items: items, engine: engine, queue: q, urls: urls, logger: l.With("module", "hooks")}
}

// ArtifactURL is one entry of the URLs response.
type ArtifactURL struct {
	Path string     `json:"path"`
	Role media.Role `json:"role"`
	Size string     `json:"size,omitempty"`
	URL  string     `json:"url"`
}

// createdRequest registers an item the host has just stored. Absent fields
// keep the values already on record.
type createdRequest struct {
	MimeType     string          `json:"mime_type"`
	AttachedFile string          `json:"attached_file"`
	Metadata     *media.Metadata `json:"metadata"`
}

type presignRequest struct {
	Path        string `json:"path" binding:"required"`
	ContentType string `json:"content_type"`
	TTLMinutes  int    `json:"ttl_minutes"`
}

// Created marks a new item pending and queues it for processing. With a
// body the item is registered (or refreshed) first; without one it must
// already exist.
func (h *Handler) Created(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	var body createdRequest
	switch err := c.ShouldBindJSON(&body); {
	case errors.Is(err, io.EOF):
		if err := h.items.SetPending(ctx, id, true); err != nil {
			h.writeError(c, err)
			return
		}
	case err != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item"})
		return
	default:
		if !h.register(c, id, body) {
			return
		}
	}
	added, err := h.queue.Enqueue(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	h.queue.Schedule(ctx)

	c.JSON(http.StatusAccepted, gin.H{"id": id, "queued": added})
}

func (h *Handler) register(c *gin.Context, id int64, body createdRequest) bool {
	ctx := c.Request.Context()

	item, err := h.items.Get(ctx, id)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		item = media.Item{ID: id}
	case err != nil:
		h.writeError(c, err)
		return false
	}
	if body.MimeType != "" {
		item.MimeType = body.MimeType
	}
	if body.AttachedFile != "" {
		item.AttachedFile = body.AttachedFile
	}
	if body.Metadata != nil {
		item.Metadata = *body.Metadata
	}
	if item.MimeType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mime_type required"})
		return false
	}
	item.Pending = true

	if err := h.items.Upsert(ctx, item); err != nil {
		h.writeError(c, err)
		return false
	}
	h.logger.Debug(ctx, "item registered", "item_id", id, "mime_type", item.MimeType)
	return true
}

// Finalized uploads a complete artifact set and evicts the local copies.
// The request body, when present, is the metadata record the host is about
// to store; otherwise the stored record is used. The possibly back-filled
// record is persisted and echoed.
func (h *Handler) Finalized(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	item, err := h.items.Get(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	meta := item.Metadata
	var body media.Metadata
	if err := c.ShouldBindJSON(&body); err == nil {
		meta = body
	} else if !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid metadata"})
		return
	}

	out := h.engine.UploadAndEvict(ctx, item, meta)
	if err := h.items.SaveMetadata(ctx, id, out); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Deleted removes every artifact of the item from the store, drops it from
// the queue and forgets the item.
func (h *Handler) Deleted(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	item, err := h.items.Get(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res := h.engine.Delete(ctx, item)
	if _, err := h.queue.Remove(ctx, id); err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.items.Delete(ctx, id); err != nil && !errors.Is(err, common.ErrorNotFound) {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": res.Deleted, "failed": res.Failed})
}

// URLs lists the public URL of every artifact of the item.
func (h *Handler) URLs(c *gin.Context) {
	id, ok := itemID(c)
	if !ok {
		return
	}

	item, err := h.items.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	set := h.engine.Resolver().Resolve(item, item.Metadata)
	out := make([]ArtifactURL, 0, len(set))
	for _, a := range set {
		out = append(out, ArtifactURL{Path: a.Path, Role: a.Role, Size: a.Size, URL: h.urls.PublicURL(a.Path)})
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "artifacts": out})
}

// Presign returns a URL the caller can PUT a file to directly.
func (h *Handler) Presign(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json body"})
		return
	}
	key, ok := cleanKey(req.Path)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
		return
	}
	if req.ContentType == "" {
		req.ContentType = "application/octet-stream"
	}

	ttl := objectstore.ClampTTL(req.TTLMinutes)
	url, err := h.urls.PresignedUploadURL(c.Request.Context(), key, req.ContentType, ttl)
	if err != nil {
		h.logger.Error(c.Request.Context(), "presign failed", "key", key, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "presign failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "path": key, "ttl_minutes": ttl})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrorNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		h.logger.Error(c.Request.Context(), "hook failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": common.ErrorInternal.Error()})
	}
}

func itemID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid item id"})
		return 0, false
	}
	return id, true
}

// cleanKey normalizes a relative object path and rejects escapes.
func cleanKey(p string) (string, bool) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", false
	}
	cleaned := path.Clean("/" + p)
	if cleaned == "/" || strings.Contains(p, "..") {
		return "", false
	}
	return strings.TrimPrefix(cleaned, "/"), true
}
