package auth

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword returns the bcrypt hash of a password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// DummyHash is a bcrypt hash at the default cost that no login matches.
// Comparing against it when an account is missing keeps login timing flat.
var DummyHash = sync.OnceValue(func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte("contexta-no-such-user"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("dummy hash: %v", err))
	}
	return string(hash)
})

// NormalizeAnswer trims and lowercases a security answer so that
// "  Rover " and "rover" match.
func NormalizeAnswer(answer string) string {
	return strings.ToLower(strings.TrimSpace(answer))
}

func HashAnswer(answer string) (string, error) {
	return HashPassword(NormalizeAnswer(answer))
}

func CheckAnswer(hash, answer string) bool {
	return CheckPassword(hash, NormalizeAnswer(answer))
}
