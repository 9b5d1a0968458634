package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"artisan/internal/middleware"
	"artisan/internal/models"
	"artisan/internal/repository"
	"artisan/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VideoHandler struct {
	videoRepo *repository.VideoRepository
	cloud     cloudinary.Client
}

func NewVideoHandler(videoRepo *repository.VideoRepository, cloud cloudinary.Client) *VideoHandler {
	return &VideoHandler{videoRepo: videoRepo, cloud: cloud}
}

type VideoRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	URL         string `json:"url" binding:"required"`
	Thumbnail   string `json:"thumbnail"`
	PricePi     int64  `json:"price_pi"`
}

func (h *VideoHandler) Create(c *gin.Context) {
	var req VideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v := &models.Video{
		Title:       req.Title,
		Description: req.Description,
		URL:         req.URL,
		Thumbnail:   req.Thumbnail,
		PricePi:     req.PricePi,
		OwnerID:     middleware.GetUserID(c),
	}
	if err := h.videoRepo.Create(v); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"video": v})
}

func (h *VideoHandler) List(c *gin.Context) {
	videos, err := h.videoRepo.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, videos)
}

func (h *VideoHandler) Get(c *gin.Context) {
	v, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *VideoHandler) Update(c *gin.Context) {
	v, ok := h.loadOwned(c)
	if !ok {
		return
	}
	var req struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		URL         *string `json:"url"`
		Thumbnail   *string `json:"thumbnail"`
		PricePi     *int64  `json:"price_pi"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title != nil {
		v.Title = *req.Title
	}
	if req.Description != nil {
		v.Description = *req.Description
	}
	if req.URL != nil {
		v.URL = *req.URL
	}
	if req.Thumbnail != nil {
		v.Thumbnail = *req.Thumbnail
	}
	if req.PricePi != nil {
		v.PricePi = *req.PricePi
	}
	if err := h.videoRepo.Update(v); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *VideoHandler) Delete(c *gin.Context) {
	v, ok := h.loadOwned(c)
	if !ok {
		return
	}
	if err := h.videoRepo.Delete(v.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Upload stores the media file and returns hosted URLs; the caller then
// creates the catalog entry with them.
func (h *VideoHandler) Upload(c *gin.Context) {
	userID := middleware.GetUserID(c)
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()
	folder := "artisan/videos/" + strconv.FormatUint(uint64(userID), 10)
	publicID := "vid_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	url, thumbnail, err := h.cloud.UploadVideo(c.Request.Context(), f, folder, publicID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url, "thumbnail": thumbnail})
}

func (h *VideoHandler) load(c *gin.Context) (*models.Video, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return nil, false
	}
	v, err := h.videoRepo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		}
		return nil, false
	}
	return v, true
}

func (h *VideoHandler) loadOwned(c *gin.Context) (*models.Video, bool) {
	v, ok := h.load(c)
	if !ok {
		return nil, false
	}
	if v.OwnerID != middleware.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not allowed"})
		return nil, false
	}
	return v, true
}
