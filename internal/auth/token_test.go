package auth

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"too short (11 chars)", "abcdefghijk", true},
		{"exactly 12 chars", "abcdefghijkl", false},
		{"at max (72 chars)", strings.Repeat("a", 72), false},
		{"over max (73 chars)", strings.Repeat("a", 73), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateToken(tt.token)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrWeakToken) {
				t.Errorf("expected ErrWeakToken, got %v", err)
			}
		})
	}
}

func TestHashAndVerifyToken(t *testing.T) {
	// MinCost keeps the test fast; HashToken itself uses bcryptCost.
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse-battery"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if err := VerifyToken("correct-horse-battery", hash); err != nil {
		t.Errorf("VerifyToken(correct) = %v", err)
	}
	if err := VerifyToken("wrong-horse-battery", hash); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyToken(wrong) = %v, want ErrInvalidToken", err)
	}
	if err := VerifyToken("anything", []byte("not-a-hash")); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("VerifyToken(bad hash) = %v, want ErrInvalidToken", err)
	}
}

func TestHashToken_RejectsWeak(t *testing.T) {
	if _, err := HashToken("short"); !errors.Is(err, ErrWeakToken) {
		t.Fatalf("expected ErrWeakToken, got %v", err)
	}
}

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr error
	}{
		{"Bearer abc123", "abc123", nil},
		{"Bearer   padded  ", "padded", nil},
		{"", "", ErrMissingToken},
		{"Bearer ", "", ErrMissingToken},
		{"Basic dXNlcjpwYXNz", "", ErrInvalidToken},
	}
	for _, tt := range tests {
		got, err := ParseBearer(tt.header)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseBearer(%q) error = %v, want %v", tt.header, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseBearer(%q) = %q, %v", tt.header, got, err)
		}
	}
}

func TestAdminContext(t *testing.T) {
	ctx := context.Background()
	if AdminFromContext(ctx) != nil {
		t.Fatal("expected no admin in empty context")
	}
	if got := ContextWithAdmin(ctx, nil); got != ctx {
		t.Error("nil admin should return the original context")
	}
	ctx = ContextWithAdmin(ctx, &Admin{Name: "ops"})
	if a := AdminFromContext(ctx); a == nil || a.Name != "ops" {
		t.Errorf("AdminFromContext = %+v", a)
	}
}
