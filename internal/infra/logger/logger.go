package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey keys the per-request correlation id on a context.Context.
type RequestIDKey struct{}

var (
	global     *zap.Logger
	initGlobal sync.Once
)

// New builds the process-wide logger. Production gets the JSON encoder at
// info level; every other env gets the colored console encoder for local
// work. Subsequent calls return the same instance.
func New(env string) (*zap.Logger, error) {
	var err error
	initGlobal.Do(func() {
		cfg := zap.NewProductionConfig()
		if env != "production" {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		global, err = cfg.Build()
	})
	return global, err
}

// MaskEmail hides the local part of an address beyond its first three
// characters: billing@acme.example -> bil***@acme.example. Addresses are
// PII under the tenant data-handling policy and never logged verbatim.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return "***"
	}

	local := email[:at]
	if len(local) > 3 {
		local = local[:3]
	}
	return local + "***" + email[at:]
}

// MaskIP keeps enough of the address to group log lines by network while
// dropping the host part: 192.168.1.100 -> 192.168.*.*. IPv6 keeps the
// first four groups.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	if octets := strings.Split(ip, "."); len(octets) == 4 {
		return octets[0] + "." + octets[1] + ".*.*"
	}

	if groups := strings.Split(ip, ":"); len(groups) >= 4 {
		return strings.Join(groups[:4], ":") + ":*:*:*:*"
	}

	return "***"
}
