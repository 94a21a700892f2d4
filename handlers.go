package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// emptyMessageReply is returned without consulting the responder
const emptyMessageReply = "Please enter a message!"

// maxMessageSize caps one websocket frame
const maxMessageSize = 64 * 1024

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is already open on the HTTP routes
	},
}

type handlers struct {
	store    *KnowledgeStore
	logger   zerolog.Logger
	watching bool
}

// reply applies the boundary check and otherwise asks the current responder
func (h *handlers) reply(msg string) string {
	if msg == "" {
		return emptyMessageReply
	}
	return h.store.Responder().Respond(msg)
}

func (h *handlers) handleIndex(c echo.Context) error {
	return c.Render(http.StatusOK, "index.html", map[string]string{
		"Title":    "Keyword Responder",
		"Greeting": "Hello! Ask me about AI, programming, databases, or try 12 * 7.",
	})
}

func (h *handlers) handleGet(c echo.Context) error {
	var req ChatRequest

	// Bind request (form or JSON body). Other content types carry no msg.
	if err := c.Bind(&req); err != nil && isJSON(c) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Msg == "" {
		req.Msg = c.FormValue("msg")
	}
	if req.Msg == "" {
		req.Msg = c.QueryParam("msg")
	}

	return c.JSON(http.StatusOK, ChatResponse{Response: h.reply(req.Msg)})
}

func (h *handlers) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return nil
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn().Err(err).Msg("websocket closed unexpectedly")
			}
			return nil
		}
		if msgType != websocket.TextMessage {
			continue
		}

		out, err := json.Marshal(ChatResponse{Response: h.reply(string(data))})
		if err != nil {
			return err
		}
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			h.logger.Debug().Err(err).Msg("websocket write failed")
			return nil
		}
	}
}

func isJSON(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON)
}

func (h *handlers) handleHealth(c echo.Context) error {
	autoReload := "disabled"
	if h.watching && h.store.FilePath() != "" {
		autoReload = "enabled"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"timestamp":   time.Now(),
		"auto_reload": autoReload,
	})
}

func (h *handlers) handleKnowledgeInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Info())
}

func (h *handlers) handleReload(c echo.Context) error {
	if err := h.store.Reload(); err != nil {
		h.logger.Error().Err(err).Msg("manual reload failed")
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, ReloadResponse{
		Message:    "Knowledge base reloaded",
		Knowledge:  h.store.Info(),
		ReloadedAt: time.Now(),
	})
}
