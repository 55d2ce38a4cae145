package server

import (
	"encoding/json"
	"net/http"
)

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Players int    `json:"players"`
	Tick    uint64 `json:"tick"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.closed.Load() {
		status, code = "closed", http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(healthResponse{
		Status:  status,
		Clients: s.ClientCount(),
		Players: s.game.Players(),
		Tick:    s.game.Tick(),
	})
}
