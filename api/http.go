package api

import (
	"encoding/json"
	"net/http"

	"TiltifyBot/scheduler"
)

// StatusSource reports the last published aggregate status.
type StatusSource interface {
	Status() scheduler.Status
}

func HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("TiltifyBot is alive"))
}

func HandleStatus(src StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(src.Status()); err != nil {
			http.Error(w, "Unable to encode status", http.StatusInternalServerError)
		}
	}
}
