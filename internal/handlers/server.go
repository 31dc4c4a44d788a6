// internal/handlers/server.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jason-s-yu/uno/internal/auth"
	"github.com/jason-s-yu/uno/internal/game"
	"github.com/jason-s-yu/uno/internal/gateway"
	"github.com/jason-s-yu/uno/internal/middleware"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/sirupsen/logrus"
)

// Server holds what the HTTP endpoints need: the room registry, the realtime
// gateway and the seat token signer.
type Server struct {
	reg       *room.Registry
	gw        *gateway.Gateway
	signer    *auth.Signer
	house     game.HouseRules
	keyParams auth.KeyParams
	origins   []string
	readLimit int64
	log       logrus.FieldLogger
}

type Option func(*Server)

// WithHouseRules sets the rules used by rooms created without their own.
func WithHouseRules(h game.HouseRules) Option {
	return func(s *Server) { s.house = h }
}

// WithKeyParams sets the argon2 cost used to hash owner keys.
func WithKeyParams(p auth.KeyParams) Option {
	return func(s *Server) { s.keyParams = p }
}

// WithAllowedOrigins restricts CORS and websocket origins. Entries may carry
// a scheme ("https://uno.example") or be bare host patterns.
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) { s.origins = origins }
}

func NewServer(reg *room.Registry, gw *gateway.Gateway, signer *auth.Signer, logger logrus.FieldLogger, opts ...Option) *Server {
	s := &Server{
		reg:       reg,
		gw:        gw,
		signer:    signer,
		house:     game.DefaultHouseRules(),
		keyParams: auth.DefaultKeyParams,
		origins:   []string{"*"},
		readLimit: 4096,
		log:       logger.WithField("component", "http"),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router mounts every endpoint.
func (s *Server) Router(logger logrus.FieldLogger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.LogMiddleware(logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Heartbeat("/ping"))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", OwnerKeyHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/rooms", s.listRooms)
	r.Route("/rooms/{room}", func(r chi.Router) {
		r.Post("/", s.createRoom)
		r.Get("/", s.getRoom)
		r.Get("/options", s.roomOptions)
		r.Post("/close", s.closeRoom)
		r.Post("/restart", s.restartRoom)
		r.Post("/clear", s.clearScoreboard)
		r.Post("/players/{player}", s.joinRoom)
		r.Get("/players/{player}/ws", s.playerSocket)
	})
	return r
}

// originPatterns converts CORS origins to the host patterns websocket.Accept
// matches against.
func originPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		out = append(out, strings.TrimSuffix(o, "/"))
	}
	return out
}
