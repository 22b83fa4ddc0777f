package logger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

var (
	redactKeys = []string{"api_key", "apikey", "token", "secret", "password", "authorization", "cookie"}
	hashKeys   = []string{"owner_id", "user_id"}
)

var (
	settingsOnce sync.Once
	redactOn     bool
	salt         string
)

func loadSettings() {
	settingsOnce.Do(func() {
		switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED"))) {
		case "0", "false", "no", "off":
			redactOn = false
		default:
			redactOn = true
		}
		salt = strings.TrimSpace(os.Getenv("LOG_HASH_SALT"))
	})
}

func levelFromEnv() zapcore.Level {
	lvl := zapcore.DebugLevel
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		if err := lvl.Set(strings.ToLower(raw)); err != nil {
			return zapcore.DebugLevel
		}
	}
	return lvl
}

func scrub(kv []interface{}) []interface{} {
	loadSettings()
	if !redactOn || len(kv) == 0 {
		return kv
	}
	out := make([]interface{}, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i+1 >= len(kv) {
			out = append(out, kv[i])
			break
		}
		name := fmt.Sprint(kv[i])
		out = append(out, name, scrubValue(strings.ToLower(name), kv[i+1]))
	}
	return out
}

func scrubValue(key string, v interface{}) interface{} {
	for _, k := range redactKeys {
		if strings.Contains(key, k) {
			return redacted
		}
	}
	for _, k := range hashKeys {
		if strings.Contains(key, k) {
			return fingerprint(v)
		}
	}
	if m, ok := v.(map[string]interface{}); ok {
		clean := make(map[string]interface{}, len(m))
		for mk, mv := range m {
			clean[mk] = scrubValue(strings.ToLower(mk), mv)
		}
		return clean
	}
	if s, ok := v.(string); ok && strings.HasPrefix(strings.ToLower(s), "bearer ") {
		return redacted
	}
	return v
}

func fingerprint(v interface{}) string {
	raw := strings.TrimSpace(fmt.Sprint(v))
	if v == nil || raw == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(salt + raw))
	return "hash:" + hex.EncodeToString(sum[:])[:12]
}
