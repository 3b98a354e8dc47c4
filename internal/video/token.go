package video

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jonesrussell/interview-orchestrator/internal/domain"
)

// VideoGrant scopes an access token to a single room.
type VideoGrant struct {
	Room     string `json:"room"`
	RoomJoin bool   `json:"roomJoin"`
	CanPub   bool   `json:"canPublish"`
	CanSub   bool   `json:"canSubscribe"`
}

// AccessClaims are the claims the video provider expects in participant
// and admin tokens.
type AccessClaims struct {
	Video *VideoGrant `json:"video,omitempty"`
	Name  string      `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer mints room-scoped access tokens signed with the provider
// API secret. Tokens are stateless; issuing one involves no provider call.
type TokenIssuer struct {
	apiKey    string
	apiSecret []byte
	serverURL string
	ttl       time.Duration
}

// NewTokenIssuer creates a token issuer for the given provider credentials.
func NewTokenIssuer(apiKey, apiSecret, serverURL string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		apiKey:    apiKey,
		apiSecret: []byte(apiSecret),
		serverURL: serverURL,
		ttl:       ttl,
	}
}

// IssueParticipantToken mints a join token for one participant in one room.
func (i *TokenIssuer) IssueParticipantToken(roomName, identity, displayName string) (*domain.Credential, error) {
	now := time.Now()
	expiresAt := now.Add(i.ttl)

	claims := &AccessClaims{
		Video: &VideoGrant{
			Room:     roomName,
			RoomJoin: true,
			CanPub:   true,
			CanSub:   true,
		},
		Name: displayName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.apiKey,
			Subject:   identity,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.apiSecret)
	if err != nil {
		return nil, fmt.Errorf("sign participant token: %w", err)
	}

	return &domain.Credential{
		Token:     signed,
		Identity:  identity,
		RoomName:  roomName,
		ServerURL: i.serverURL,
		ExpiresAt: expiresAt,
	}, nil
}

// issueAdminToken mints a short-lived token for server-to-server room
// management calls.
func (i *TokenIssuer) issueAdminToken() (string, error) {
	now := time.Now()
	claims := &AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.apiKey,
			Subject:   "room-admin",
			ExpiresAt: jwt.NewNumericDate(now.Add(adminTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.apiSecret)
	if err != nil {
		return "", fmt.Errorf("sign admin token: %w", err)
	}
	return signed, nil
}

const adminTokenTTL = time.Minute
