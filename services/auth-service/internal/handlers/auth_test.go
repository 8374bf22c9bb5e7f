package handlers

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/appointly/appointly/libs/auth"
)

func TestPasswordHashing(t *testing.T) {
	password := "pass123"
	hash, err := hashPassword(password)
	if err != nil {
		t.Fatalf("hashPassword failed: %v", err)
	}
	if hash == "" {
		t.Fatal("expected non-empty hash")
	}
	if err := verifyPassword(hash, password); err != nil {
		t.Fatalf("verifyPassword should succeed: %v", err)
	}
	if err := verifyPassword(hash, "wrong-pass"); err == nil {
		t.Fatal("verifyPassword should fail for wrong password")
	}
}

func TestHS256SignerRoundTrip(t *testing.T) {
	signer := NewHS256Signer("test-secret")
	now := time.Now()
	token, err := signer.Sign(auth.Claims{
		Sub:   "user-1",
		Email: "ann@example.com",
		Role:  "member",
		Iat:   now.Unix(),
		Exp:   now.Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.Sub != "user-1" || claims.Email != "ann@example.com" || claims.Role != "member" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestRotatingSignerVerifiesOldKid(t *testing.T) {
	keyA, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	keyB, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	kidA := keyIDFromPublicKey(&keyA.PublicKey)
	kidB := keyIDFromPublicKey(&keyB.PublicKey)

	signer, err := NewRotatingRS256Signer(map[string]*rsa.PrivateKey{
		kidA: keyA,
		kidB: keyB,
	}, kidA)
	if err != nil {
		t.Fatalf("NewRotatingRS256Signer failed: %v", err)
	}

	now := time.Now()
	oldToken, err := signer.Sign(auth.Claims{
		Sub: "user-1",
		Iat: now.Unix(),
		Exp: now.Add(time.Hour).Unix(),
	})
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if err := signer.SetActiveKid(kidB); err != nil {
		t.Fatalf("SetActiveKid failed: %v", err)
	}
	if _, err := signer.Verify(oldToken); err != nil {
		t.Fatalf("token signed before rotation should still verify: %v", err)
	}

	if err := signer.SetActiveKid("no-such-kid"); err == nil {
		t.Fatal("SetActiveKid should reject unknown kid")
	}
	if len(signer.JWKS()) != 2 {
		t.Fatalf("expected 2 keys in JWKS, got %d", len(signer.JWKS()))
	}
}
