package video

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenIssuer_IssueParticipantToken(t *testing.T) {
	issuer := NewTokenIssuer("api-key-1", "super-secret", "wss://video.example.com", 2*time.Hour)

	cred, err := issuer.IssueParticipantToken("interview-abc123", "candidate:cand-1", "A. Candidate")
	if err != nil {
		t.Fatalf("IssueParticipantToken() error = %v", err)
	}

	if cred.RoomName != "interview-abc123" {
		t.Errorf("credential room = %s, want interview-abc123", cred.RoomName)
	}
	if cred.Identity != "candidate:cand-1" {
		t.Errorf("credential identity = %s, want candidate:cand-1", cred.Identity)
	}
	if cred.ServerURL != "wss://video.example.com" {
		t.Errorf("credential server url = %s", cred.ServerURL)
	}
	if remaining := time.Until(cred.ExpiresAt); remaining < time.Hour {
		t.Errorf("credential expires too soon: %v", remaining)
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(cred.Token, claims, func(*jwt.Token) (any, error) {
		return []byte("super-secret"), nil
	})
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if !token.Valid {
		t.Fatal("token is not valid")
	}

	if claims.Issuer != "api-key-1" {
		t.Errorf("issuer = %s, want api-key-1", claims.Issuer)
	}
	if claims.Subject != "candidate:cand-1" {
		t.Errorf("subject = %s", claims.Subject)
	}
	if claims.Video == nil {
		t.Fatal("video grant missing")
	}
	if claims.Video.Room != "interview-abc123" {
		t.Errorf("grant room = %s", claims.Video.Room)
	}
	if !claims.Video.RoomJoin || !claims.Video.CanPub || !claims.Video.CanSub {
		t.Errorf("grant missing permissions: %+v", claims.Video)
	}
}

func TestTokenIssuer_WrongSecretRejected(t *testing.T) {
	issuer := NewTokenIssuer("api-key-1", "super-secret", "wss://video.example.com", time.Hour)

	cred, err := issuer.IssueParticipantToken("interview-abc123", "interviewer:int-1", "Interviewer")
	if err != nil {
		t.Fatalf("IssueParticipantToken() error = %v", err)
	}

	_, err = jwt.ParseWithClaims(cred.Token, &AccessClaims{}, func(*jwt.Token) (any, error) {
		return []byte("other-secret"), nil
	})
	if err == nil {
		t.Fatal("token parsed with wrong secret")
	}
}
