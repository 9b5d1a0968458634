package handler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"artisan/config"
	"artisan/internal/auth"
	"artisan/internal/models"
	"artisan/internal/repository"
	"artisan/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	chatWriteWait  = 10 * time.Second
	chatPongWait   = 60 * time.Second
	chatPingPeriod = (chatPongWait * 9) / 10
	historyLimit   = 50
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type chatInbound struct {
	Type    string `json:"type"` // "message"
	Content string `json:"content"`
}

type chatOutbound struct {
	Type      string    `json:"type"`
	ID        uint      `json:"id,omitempty"`
	Room      string    `json:"room"`
	SenderID  uint      `json:"sender_id,omitempty"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// UpgradeChatWS upgrades to WebSocket for chat; query: token, room. The
// recent room history is sent on join, then inbound messages are persisted
// and relayed to everyone else in the room.
func UpgradeChatWS(cfg *config.JWTConfig, chatHub *ws.ChatHub, messageRepo *repository.MessageRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		room := c.Query("room")
		if token == "" || room == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "token and room required"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		conn, err := chatUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := ws.NewClient(claims.UserID)
		r := chatHub.GetOrCreateRoom(room)
		r.Join(client)
		defer func() {
			r.Leave(client)
			client.Close()
			chatHub.RemoveIfEmpty(room)
		}()

		if history, err := messageRepo.RecentByRoom(room, historyLimit); err == nil {
			data, _ := json.Marshal(gin.H{"type": "history", "room": room, "messages": history})
			client.Send <- data
		}

		conn.SetReadDeadline(time.Now().Add(chatPongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(chatPongWait))
			return nil
		})
		go chatWritePump(client, conn)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			var in chatInbound
			if err := json.Unmarshal(data, &in); err != nil || in.Type != "message" || in.Content == "" {
				continue
			}
			msg := &models.Message{Room: room, SenderID: claims.UserID, Content: in.Content}
			if err := messageRepo.Create(msg); err != nil {
				log.Printf("[chat] persist failed: room=%s sender=%d err=%v", room, claims.UserID, err)
				continue
			}
			r.Broadcast(chatOutbound{
				Type:      "message",
				ID:        msg.ID,
				Room:      msg.Room,
				SenderID:  msg.SenderID,
				Content:   msg.Content,
				CreatedAt: msg.CreatedAt,
			})
		}
	}
}

func chatWritePump(c *ws.Client, conn *websocket.Conn) {
	ticker := time.NewTicker(chatPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			conn.SetWriteDeadline(time.Now().Add(chatWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(chatWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
