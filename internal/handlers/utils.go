// internal/handlers/utils.go
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
)

// SeatCookie holds the seat token issued by the join endpoint.
const SeatCookie = "seat_token"

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// errorStatus maps room errors to HTTP statuses.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, room.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, room.ErrAlreadyExists), errors.Is(err, room.ErrNameTaken), errors.Is(err, room.ErrRoomClosing):
		return http.StatusConflict
	case errors.Is(err, room.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, room.ErrIllegalAction):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := errorStatus(err)
	log := s.log.WithFields(logrus.Fields{"path": r.URL.Path, "status": status})
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		writeError(w, status, "internal error")
		return
	}
	log.WithError(err).Debug("request refused")
	writeError(w, status, err.Error())
}

// seatToken reads the seat token from the query string or the seat cookie.
func seatToken(r *http.Request) string {
	if tok := r.URL.Query().Get("token"); tok != "" {
		return tok
	}
	if c, err := r.Cookie(SeatCookie); err == nil {
		return c.Value
	}
	return ""
}
