package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prestonh/lcr-backend/internal/hub"
)

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func ListRooms(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []string, 1)
		h.Inbox() <- hub.ListRooms{Reply: reply}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Rooms []string `json:"rooms"`
		}{Rooms: <-reply})
	}
}

func CreateRoom(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}

		reply := make(chan error, 1)
		h.Inbox() <- hub.CreateRoom{Name: body.Name, Reply: reply}
		if err := <-reply; err != nil {
			if errors.Is(err, hub.ErrRoomExists) {
				http.Error(w, "room already exists", http.StatusConflict)
				return
			}
			http.Error(w, "failed to create room", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(struct {
			Name string `json:"name"`
		}{Name: body.Name})
	}
}
