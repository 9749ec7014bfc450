package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"sorteos-backend/internal/common/logger"
	"sorteos-backend/internal/common/middleware"
	"sorteos-backend/internal/features/chat"
)

type ChatHandler struct {
	hub      *chat.Hub
	upgrader websocket.Upgrader
}

// NewChatHandler accepts upgrades from the given origins; an empty list accepts any.
func NewChatHandler(hub *chat.Hub, origins []string) *ChatHandler {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	return &ChatHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(allowed) == 0 {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

func (h *ChatHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/ws/chat", middleware.RequireAuth(), h.connect)
}

// @Summary Live chat
// @Description Upgrades to a websocket. Browsers pass the bearer token as the token query parameter.
// @Tags chat
// @Security BearerAuth
// @Param token query string false "Bearer token"
// @Success 101
// @Failure 401 {object} middleware.ErrorResponse
// @Router /ws/chat [get]
func (h *ChatHandler) connect(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		logger.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}

	name := principal.Name
	if name == "" {
		name = fmt.Sprintf("usuario-%d", principal.UserID)
	}
	chat.NewSession(h.hub, conn, principal.UserID, name).Serve()
}
