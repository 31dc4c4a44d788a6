// internal/auth/seat.go
package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const seatIssuer = "uno"

// SeatClaims is the payload of a seat token: proof that the holder was
// seated as Player in Room over HTTP before opening the realtime channel.
type SeatClaims struct {
	Room   string `json:"room"`
	Player string `json:"player"`
	jwt.RegisteredClaims
}

// Signer issues and verifies seat tokens with an ed25519 key pair.
type Signer struct {
	private ed25519.PrivateKey
	public  ed25519.PublicKey
	ttl     time.Duration
	now     func() time.Time
}

// NewSigner generates a fresh key pair. Tokens expire after ttl; zero means
// they never expire.
func NewSigner(ttl time.Duration) (*Signer, error) {
	public, private, err := ed25519.GenerateKey(nil)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key pair: %w", err)
	}
	return &Signer{private: private, public: public, ttl: ttl, now: time.Now}, nil
}

// LoadSigner reads a raw ed25519 key pair from disk.
func LoadSigner(privatePath, publicPath string, ttl time.Duration) (*Signer, error) {
	privateKeyData, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("read private key file: %w", err)
	}
	publicKeyData, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("read public key file: %w", err)
	}
	if len(privateKeyData) != ed25519.PrivateKeySize || len(publicKeyData) != ed25519.PublicKeySize {
		return nil, errors.New("key files are not raw ed25519 keys")
	}
	return &Signer{
		private: ed25519.PrivateKey(privateKeyData),
		public:  ed25519.PublicKey(publicKeyData),
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// IssueSeat signs a token for player in room.
func (s *Signer) IssueSeat(room, player string) (string, error) {
	now := s.now()
	claims := SeatClaims{
		Room:   room,
		Player: player,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:   seatIssuer,
			Subject:  player,
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}
	token := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	return token.SignedString(s.private)
}

// VerifySeat checks a seat token and returns the seat it was issued for.
func (s *Signer) VerifySeat(token string) (string, string, error) {
	var claims SeatClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return s.public, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(seatIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", "", fmt.Errorf("jwt parse error: %w", err)
	}
	if claims.Room == "" || claims.Player == "" {
		return "", "", errors.New("seat token without room or player")
	}
	return claims.Room, claims.Player, nil
}
