package auth

import (
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHashPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		cost     int
		wantErr  bool
	}{
		{"valid password", "securePassword123!", MinCost, false},
		{"unicode password", "生命體徵-密碼", MinCost, false},
		{"bcrypt length limit", strings.Repeat("a", 72), MinCost, false},
		{"empty password", "", MinCost, true},
		{"cost too low", "pw", 2, true},
		{"cost too high", "pw", 40, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password, tt.cost)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.HasPrefix(hash, "$2a$") && !strings.HasPrefix(hash, "$2b$") {
				t.Errorf("hash is not bcrypt: %q", hash)
			}
			if err := VerifyPassword(tt.password, hash); err != nil {
				t.Errorf("VerifyPassword() on own hash = %v", err)
			}
		})
	}
}

func TestHashPassword_EmptyPassword(t *testing.T) {
	if _, err := HashPassword("", 0); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("err = %v, want ErrEmptyPassword", err)
	}
}

func TestHashPassword_SaltsEachHash(t *testing.T) {
	a, _ := HashPassword("same", MinCost)
	b, _ := HashPassword("same", MinCost)
	if a == b {
		t.Error("two hashes of the same password should differ")
	}
}

func TestVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse", MinCost)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		password string
		hash     string
		want     error
	}{
		{"match", "correct horse", hash, nil},
		{"mismatch", "battery staple", hash, ErrPasswordMismatch},
		{"empty password", "", hash, ErrEmptyPassword},
		{"empty hash", "correct horse", "", ErrInvalidHash},
		{"garbage hash", "correct horse", "not-a-hash", ErrPasswordMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyPassword(tt.password, tt.hash); !errors.Is(got, tt.want) && got != tt.want {
				t.Errorf("VerifyPassword() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestHashCost(t *testing.T) {
	hash, _ := HashPassword("pw", bcrypt.MinCost+1)
	cost, err := HashCost(hash)
	if err != nil || cost != bcrypt.MinCost+1 {
		t.Errorf("HashCost() = %d, %v", cost, err)
	}
	if _, err := HashCost("nope"); !errors.Is(err, ErrInvalidHash) {
		t.Errorf("HashCost(invalid) err = %v", err)
	}
}
