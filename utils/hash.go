package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

// MakeHash returns hash string from plain text
func MakeHash(s string) string {
	hash := sha1.New()
	hash.Write([]byte(s))
	hashBytes := hash.Sum(nil)
	return hex.EncodeToString(hashBytes)
}

// SanitizeID returns an identifier safe to embed in cache keys and file names
func SanitizeID(id string) string {
	return strings.ReplaceAll(id, "/", "_")
}
