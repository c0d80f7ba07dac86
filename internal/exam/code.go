package exam

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
)

// CodeLength is the length of a test share code.
const CodeLength = 4

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NormalizeCode trims and upper-cases a test code and checks its shape.
func NormalizeCode(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !ValidCode(code) {
		return "", fieldError("code", "must be exactly 4 letters or digits")
	}
	return code, nil
}

// ValidCode reports whether code is exactly 4 uppercase alphanumerics.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if strings.IndexByte(codeAlphabet, code[i]) < 0 {
			return false
		}
	}
	return true
}

// GenerateCode creates a random share code from crypto/rand.
func GenerateCode() (string, error) {
	return generateCode(rand.Reader)
}

// generateCode draws one byte per symbol, rejecting bytes at or above the
// largest multiple of the alphabet size so every symbol is equally likely.
func generateCode(r io.Reader) (string, error) {
	limit := 256 - 256%len(codeAlphabet)
	code := make([]byte, 0, CodeLength)
	var b [1]byte
	for len(code) < CodeLength {
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		if int(b[0]) >= limit {
			continue
		}
		code = append(code, codeAlphabet[int(b[0])%len(codeAlphabet)])
	}
	return string(code), nil
}
