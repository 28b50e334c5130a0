package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Dosada05/chess-cup/realtime"
	"github.com/Dosada05/chess-cup/services"
)

type WebSocketHandler struct {
	hub               *realtime.Hub
	tournamentService services.TournamentService
	upgrader          websocket.Upgrader
	logger            *slog.Logger
}

// NewWebSocketHandler accepts connections from any origin when
// allowedOrigins is empty or contains "*".
func NewWebSocketHandler(hub *realtime.Hub, ts services.TournamentService, allowedOrigins []string, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:               hub,
		tournamentService: ts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

// ServeWs serves GET /ws/tournament. Without a tournament query parameter the
// client follows whichever tournament is current. The current state is sent
// right after the upgrade.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("tournament")
	if room == "" {
		room = services.CurrentRoom
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.String("room", room), slog.Any("error", err))
		return
	}

	client := realtime.NewClient(h.hub, conn, room)
	state := h.tournamentService.State()
	if room == services.CurrentRoom || room == state.ID {
		initial, err := json.Marshal(services.UpdateMessage{Type: services.MessageTournamentUpdated, Payload: state, RoomID: room})
		if err == nil {
			client.Send <- initial
		}
	}
	select {
	case h.hub.Register <- client:
	case <-h.hub.Done():
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

// ViewersHandler serves GET /ws/tournament/viewers with the number of
// clients connected to a room.
func (h *WebSocketHandler) ViewersHandler(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("tournament")
	if room == "" {
		room = services.CurrentRoom
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"room": room, "viewers": h.hub.ClientCount(room)}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
