package handler

import (
	"log"
	"net/http"
	"strconv"

	"artisan/config"

	rtctokenbuilder "github.com/AgoraIO-Community/go-tokenbuilder/rtctokenbuilder"
	"github.com/gin-gonic/gin"
)

type RTCHandler struct {
	cfg *config.AgoraConfig
}

func NewRTCHandler(cfg *config.AgoraConfig) *RTCHandler {
	return &RTCHandler{cfg: cfg}
}

// Token issues an RTC publisher token for a channel.
func (h *RTCHandler) Token(c *gin.Context) {
	channel := c.Query("channel")
	uidStr := c.Query("uid")
	if channel == "" || uidStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "channel and uid are required"})
		return
	}
	uid, err := strconv.ParseUint(uidStr, 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid uid"})
		return
	}
	if h.cfg.AppID == "" || h.cfg.AppCertificate == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "rtc tokens not configured"})
		return
	}
	expireSeconds := uint32(h.cfg.TokenExpiry.Seconds())
	token, err := rtctokenbuilder.BuildTokenWithUID(h.cfg.AppID, h.cfg.AppCertificate, channel, uint32(uid), rtctokenbuilder.RolePublisher, expireSeconds)
	if err != nil {
		log.Printf("[rtc] token build failed: channel=%s err=%v", channel, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token generation failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
