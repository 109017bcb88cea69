// Package http wires the gin router: the websocket endpoint plus the
// conventional request/response surface around the presence core.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/sketchdesk/presence/internal/adapters/auth"
	"github.com/sketchdesk/presence/internal/adapters/store"
	"github.com/sketchdesk/presence/internal/adapters/ws"
	"github.com/sketchdesk/presence/internal/app"
	"github.com/sketchdesk/presence/internal/config"
	"github.com/sketchdesk/presence/internal/domain"
)

type Deps struct {
	Svc   *app.Service
	Auth  *auth.JWT
	Rooms *store.RoomStore
	Chat  *store.ChatLog
}

func SetupRouter(ctx context.Context, cfg *config.Config, deps Deps) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	ctl := ws.NewController(deps.Svc, deps.Auth, cfg.ReadLimit, cfg.SendBuffer)
	api := r.Group("/api")

	api.GET("/ws", func(c *gin.Context) {
		ctl.Handle(ctx, c)
	})

	api.POST("/signin", signin(deps.Auth))
	api.POST("/rooms", createRoom(deps.Rooms))
	api.GET("/rooms/:id", roomInfo(deps.Svc, deps.Rooms))
	api.GET("/rooms/:id/messages", roomMessages(deps.Chat))
	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, deps.Svc.Stats())
	})

	return r
}

func signin(jwt *auth.JWT) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID string `json:"userId" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "userId required"})
			return
		}
		token, err := jwt.Issue(domain.UserID(req.UserID))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

func createRoom(rooms *store.RoomStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name string `json:"name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
			return
		}
		room, err := rooms.Create(req.Name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Info().Str("module", "adapters.http").Str("room", string(room.ID)).Msg("room created")
		c.JSON(http.StatusCreated, room)
	}
}

func roomInfo(svc *app.Service, rooms *store.RoomStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := domain.RoomID(c.Param("id"))
		room, err := rooms.Get(id)
		if errors.Is(err, store.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "room lookup failed"})
			return
		}
		info, _ := svc.RoomInfo(id)
		c.JSON(http.StatusOK, gin.H{
			"room":       room,
			"user_count": info.UserCount,
			"users":      info.Users,
		})
	}
}

func roomMessages(chat *store.ChatLog) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := domain.RoomID(c.Param("id"))
		msgs, err := chat.History(id, 50)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history lookup failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"messages": msgs})
	}
}
