package service

import (
	"crypto/rand"
	"encoding/hex"
)

func newID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return prefix + hex.EncodeToString(bytes)
}
