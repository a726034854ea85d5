package utils

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"strings"
)

// GetServerID returns a stable-ish identifier for this process, used in health
// output and metric labels.
// Order: explicit override, sanitized hostname, random fallback.
func GetServerID(override string) string {
	if override != "" {
		return override
	}

	hostname, err := os.Hostname()
	if err == nil && hostname != "" && hostname != "localhost" {
		cleanHost := strings.Map(func(r rune) rune {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
				return r
			}
			return -1
		}, hostname)
		if cleanHost != "" {
			return "plexai-" + cleanHost
		}
	}

	randomPart := make([]byte, 4)
	_, _ = rand.Read(randomPart)
	return "plexai-" + hex.EncodeToString(randomPart)
}
