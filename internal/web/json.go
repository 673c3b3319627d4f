package web

import (
	"encoding/json"
	"net/http"
)

// commandResponse is the JSON reply to a direction request.
type commandResponse struct {
	Actuator  string `json:"actuator"`
	Direction string `json:"direction,omitempty"`
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
}

func writeCommand(w http.ResponseWriter, code int, resp commandResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
