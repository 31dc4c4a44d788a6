// internal/handlers/rooms.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
)

// OwnerKeyHeader carries the owner key for administrative requests. The key
// may also be passed as the "key" query parameter.
const OwnerKeyHeader = "X-Owner-Key"

// CreateRoomRequest is the optional body of POST /rooms/{room}.
type CreateRoomRequest struct {
	OwnerKey string         `json:"ownerKey,omitempty"`
	Rules    map[string]any `json:"rules,omitempty"`
}

// JoinResponse is returned when a player takes a seat over HTTP.
type JoinResponse struct {
	Room   string `json:"room"`
	Player string `json:"player"`
	Token  string `json:"token,omitempty"`
	Socket string `json:"socket"`
}

// RoomOptions describes how a room plays.
type RoomOptions struct {
	Rules          *game.HouseRules `json:"rules,omitempty"`
	AllowReconnect bool             `json:"allowReconnect"`
	ReconnectGrace string           `json:"reconnectGrace"`
	MinPlayers     int              `json:"minPlayers"`
	Protected      bool             `json:"protected"`
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rooms": s.reg.Rooms()})
}

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "room")

	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad room request payload")
		return
	}

	var opts []room.RoomOption
	if req.Rules != nil {
		house, err := game.ParseRules(req.Rules, s.house)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		opts = append(opts, room.WithRules(game.NewRules(house)))
	}
	if req.OwnerKey != "" {
		hash, err := auth.HashOwnerKey(req.OwnerKey, s.keyParams)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		opts = append(opts, room.WithOwnerKeyHash(hash))
	}

	rm, err := s.reg.CreateRoom(name, opts...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.log.WithFields(logrus.Fields{"room": name, "protected": req.OwnerKey != ""}).Info("room created")
	writeJSON(w, http.StatusCreated, rm.Summary())
}

func (s *Server) getRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := s.reg.GetRoom(chi.URLParam(r, "room"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rm.Snapshot(s.viewer(r, rm.Name())))
}

// viewer is the player whose hand a snapshot may show. The player query is
// honored only with a seat token issued for that room and player; everyone
// else gets the spectator view.
func (s *Server) viewer(r *http.Request, roomName string) string {
	player := r.URL.Query().Get("player")
	if player == "" || s.signer == nil {
		return ""
	}
	tokRoom, tokPlayer, err := s.signer.VerifySeat(seatToken(r))
	if err != nil || tokRoom != roomName || tokPlayer != player {
		return ""
	}
	return player
}

func (s *Server) roomOptions(w http.ResponseWriter, r *http.Request) {
	rm, err := s.reg.GetRoom(chi.URLParam(r, "room"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	p := rm.Policy()
	opts := RoomOptions{
		AllowReconnect: p.AllowReconnect,
		ReconnectGrace: p.ReconnectGrace.String(),
		MinPlayers:     p.MinPlayers,
		Protected:      rm.OwnerKeyHash() != "",
	}
	if rules, ok := rm.Rules().(*game.Rules); ok {
		house := rules.House
		opts.Rules = &house
	}
	writeJSON(w, http.StatusOK, opts)
}

// ownedRoom resolves the room and checks the owner key when the room has one.
// It writes the error response itself and returns nil on failure.
func (s *Server) ownedRoom(w http.ResponseWriter, r *http.Request) *room.Room {
	rm, err := s.reg.GetRoom(chi.URLParam(r, "room"))
	if err != nil {
		s.fail(w, r, err)
		return nil
	}
	hash := rm.OwnerKeyHash()
	if hash == "" {
		return rm
	}
	key := r.Header.Get(OwnerKeyHeader)
	if key == "" {
		key = r.URL.Query().Get("key")
	}
	if key == "" {
		writeError(w, http.StatusUnauthorized, "owner key required")
		return nil
	}
	ok, err := auth.CheckOwnerKey(key, hash)
	if err != nil {
		s.fail(w, r, err)
		return nil
	}
	if !ok {
		writeError(w, http.StatusForbidden, "wrong owner key")
		return nil
	}
	return rm
}

// closeRoom closes a room at once, or with ?drain=true lets connected
// players finish and removes the room when the last one leaves.
func (s *Server) closeRoom(w http.ResponseWriter, r *http.Request) {
	rm := s.ownedRoom(w, r)
	if rm == nil {
		return
	}
	drain := r.URL.Query().Get("drain") == "true"
	var ok bool
	if drain {
		ok = s.reg.DrainRoom(rm.Name())
	} else {
		ok = s.reg.CloseRoom(rm.Name())
	}
	if !ok {
		s.fail(w, r, room.ErrNotFound)
		return
	}
	s.log.WithFields(logrus.Fields{"room": rm.Name(), "drain": drain}).Info("room closed")
	writeJSON(w, http.StatusOK, map[string]any{"room": rm.Name(), "closed": true, "drain": drain})
}

func (s *Server) restartRoom(w http.ResponseWriter, r *http.Request) {
	rm := s.ownedRoom(w, r)
	if rm == nil {
		return
	}
	if err := rm.Shutdown(); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rm.Snapshot(""))
}

func (s *Server) clearScoreboard(w http.ResponseWriter, r *http.Request) {
	rm := s.ownedRoom(w, r)
	if rm == nil {
		return
	}
	if err := rm.ClearScoreboard(); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rm.Snapshot(""))
}

// joinRoom seats a player ahead of the websocket handshake and hands back a
// seat token for it. The seat is held for the reconnect grace window.
func (s *Server) joinRoom(w http.ResponseWriter, r *http.Request) {
	roomName, player := chi.URLParam(r, "room"), chi.URLParam(r, "player")
	rm, err := s.reg.GetRoom(roomName)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if _, err := rm.Join(player); err != nil {
		s.fail(w, r, err)
		return
	}

	resp := JoinResponse{
		Room:   roomName,
		Player: player,
		Socket: "/rooms/" + roomName + "/players/" + player + "/ws",
	}
	if s.signer != nil {
		tok, err := s.signer.IssueSeat(roomName, player)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		resp.Token = tok
		http.SetCookie(w, &http.Cookie{
			Name:     SeatCookie,
			Value:    tok,
			Path:     "/rooms/" + roomName,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	s.log.WithFields(logrus.Fields{"room": roomName, "player": player}).Info("player seated")
	writeJSON(w, http.StatusOK, resp)
}
