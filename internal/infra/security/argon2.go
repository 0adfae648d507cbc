package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2Config holds the Argon2id cost parameters.
type Argon2Config struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns production-safe Argon2id parameters (64 MiB,
// 3 passes, 4 lanes).
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Iterations:  3,
		Parallelism: 4,
		SaltLength:  16,
		KeyLength:   32,
	}
}

var (
	// ErrInvalidHash indicates a stored hash that cannot be parsed.
	ErrInvalidHash = errors.New("security: invalid argon2id hash encoding")
	// ErrIncompatibleVersion indicates a hash produced by an unsupported argon2 version.
	ErrIncompatibleVersion = errors.New("security: incompatible argon2 version")
)

// PasswordHasher derives and verifies Argon2id password hashes using the
// encoded form $argon2id$v=19$m=...,t=...,p=...$<salt>$<key>.
type PasswordHasher struct {
	cfg Argon2Config
}

// NewPasswordHasher validates the config and returns a hasher.
func NewPasswordHasher(cfg Argon2Config) (*PasswordHasher, error) {
	if cfg.Memory == 0 || cfg.Iterations == 0 || cfg.Parallelism == 0 {
		return nil, errors.New("security: argon2 cost parameters must be positive")
	}
	if cfg.SaltLength < 8 {
		return nil, errors.New("security: argon2 salt length must be at least 8 bytes")
	}
	if cfg.KeyLength < 16 {
		return nil, errors.New("security: argon2 key length must be at least 16 bytes")
	}
	return &PasswordHasher{cfg: cfg}, nil
}

// Hash derives an encoded Argon2id hash with a fresh random salt.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(password), salt, h.cfg.Iterations, h.cfg.Memory, h.cfg.Parallelism, h.cfg.KeyLength)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.cfg.Memory,
		h.cfg.Iterations,
		h.cfg.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	)

	return encoded, nil
}

// Verify reports whether the password matches the encoded hash. The stored
// parameters are used for derivation, so hashes created under older cost
// settings keep verifying.
func (h *PasswordHasher) Verify(password, encodedHash string) (bool, error) {
	cfg, salt, key, err := decodeArgon2Hash(encodedHash)
	if err != nil {
		return false, err
	}

	derived := argon2.IDKey([]byte(password), salt, cfg.Iterations, cfg.Memory, cfg.Parallelism, uint32(len(key)))

	if subtle.ConstantTimeCompare(key, derived) == 1 {
		return true, nil
	}
	return false, nil
}

func decodeArgon2Hash(encodedHash string) (Argon2Config, []byte, []byte, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return Argon2Config{}, nil, nil, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return Argon2Config{}, nil, nil, ErrInvalidHash
	}
	if version != argon2.Version {
		return Argon2Config{}, nil, nil, ErrIncompatibleVersion
	}

	var cfg Argon2Config
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &cfg.Memory, &cfg.Iterations, &cfg.Parallelism); err != nil {
		return Argon2Config{}, nil, nil, ErrInvalidHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return Argon2Config{}, nil, nil, ErrInvalidHash
	}

	key, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return Argon2Config{}, nil, nil, ErrInvalidHash
	}

	cfg.SaltLength = uint32(len(salt))
	cfg.KeyLength = uint32(len(key))

	return cfg, salt, key, nil
}
