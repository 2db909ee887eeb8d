package auth

import (
	"testing"
	"time"
)

func TestGenerateAndVerifyToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", time.Hour)

	token, expiresAt, err := mgr.GenerateToken("2023001", "STUDENT")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}
	if !expiresAt.After(time.Now()) {
		t.Error("expected expiry in the future")
	}

	claims, err := mgr.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if claims.UserID != "2023001" {
		t.Errorf("expected user id 2023001, got %s", claims.UserID)
	}
	if claims.Role != "STUDENT" {
		t.Errorf("expected role STUDENT, got %s", claims.Role)
	}
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	mgr := NewJWTManager("secret-a", time.Hour)
	other := NewJWTManager("secret-b", time.Hour)

	token, _, err := mgr.GenerateToken("T001", "COUNSELOR")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := other.VerifyToken(token); err == nil {
		t.Fatal("expected verification to fail with wrong secret")
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	mgr := NewJWTManager("test-secret", -time.Minute)

	token, _, err := mgr.GenerateToken("A001", "ADVISOR")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := mgr.VerifyToken(token); err == nil {
		t.Fatal("expected verification to fail for expired token")
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "password123" {
		t.Fatal("hash must not equal plaintext")
	}

	if err := CheckPassword(hash, "password123"); err != nil {
		t.Errorf("CheckPassword rejected correct password: %v", err)
	}
	if err := CheckPassword(hash, "wrong"); err == nil {
		t.Error("CheckPassword accepted wrong password")
	}
}
