package security

import (
	"errors"
	"strings"
	"testing"
)

func testHasher(t *testing.T) *PasswordHasher {
	t.Helper()
	hasher, err := NewPasswordHasher(Argon2Config{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  8,
		KeyLength:   16,
	})
	if err != nil {
		t.Fatalf("NewPasswordHasher returned error: %v", err)
	}
	return hasher
}

func TestPasswordHasher_HashAndVerify(t *testing.T) {
	hasher := testHasher(t)

	encoded, err := hasher.Hash("correct horse battery staple 9")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("expected argon2id encoding, got %s", encoded)
	}

	ok, err := hasher.Verify("correct horse battery staple 9", encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected password to verify against its own hash")
	}

	ok, err = hasher.Verify("wrong password", encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected wrong password to fail verification")
	}
}

func TestPasswordHasher_HashesAreSalted(t *testing.T) {
	hasher := testHasher(t)

	first, err := hasher.Hash("same password 42")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	second, err := hasher.Hash("same password 42")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	if first == second {
		t.Fatalf("expected distinct hashes for the same password")
	}
}

func TestPasswordHasher_VerifyUsesStoredParameters(t *testing.T) {
	// A hash created under one cost configuration must keep verifying
	// after the hasher's configuration changes.
	oldHasher := testHasher(t)
	encoded, err := oldHasher.Hash("migrating password 7")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}

	newHasher, err := NewPasswordHasher(Argon2Config{
		Memory:      2048,
		Iterations:  2,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewPasswordHasher returned error: %v", err)
	}

	ok, err := newHasher.Verify("migrating password 7", encoded)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if !ok {
		t.Fatalf("expected hash to verify under new cost configuration")
	}
}

func TestPasswordHasher_VerifyRejectsMalformedHash(t *testing.T) {
	hasher := testHasher(t)

	cases := []struct {
		name    string
		encoded string
	}{
		{"empty", ""},
		{"wrong algorithm", "$bcrypt$v=19$m=1024,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5"},
		{"missing sections", "$argon2id$v=19$m=1024,t=1,p=1"},
		{"bad salt encoding", "$argon2id$v=19$m=1024,t=1,p=1$!!!$a2V5a2V5a2V5a2V5a2V5"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := hasher.Verify("anything", tc.encoded); !errors.Is(err, ErrInvalidHash) {
				t.Fatalf("expected ErrInvalidHash, got %v", err)
			}
		})
	}
}

func TestPasswordHasher_VerifyRejectsIncompatibleVersion(t *testing.T) {
	hasher := testHasher(t)

	encoded := "$argon2id$v=18$m=1024,t=1,p=1$c2FsdHNhbHQ$a2V5a2V5a2V5a2V5a2V5"
	if _, err := hasher.Verify("anything", encoded); !errors.Is(err, ErrIncompatibleVersion) {
		t.Fatalf("expected ErrIncompatibleVersion, got %v", err)
	}
}

func TestNewPasswordHasher_RejectsBadConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Argon2Config
	}{
		{"zero memory", Argon2Config{Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}},
		{"zero iterations", Argon2Config{Memory: 1024, Parallelism: 1, SaltLength: 16, KeyLength: 32}},
		{"zero parallelism", Argon2Config{Memory: 1024, Iterations: 1, SaltLength: 16, KeyLength: 32}},
		{"short salt", Argon2Config{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 4, KeyLength: 32}},
		{"short key", Argon2Config{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 8}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewPasswordHasher(tc.cfg); err == nil {
				t.Fatalf("expected config error for %s", tc.name)
			}
		})
	}
}

func TestDefaultArgon2Config(t *testing.T) {
	cfg := DefaultArgon2Config()
	if _, err := NewPasswordHasher(cfg); err != nil {
		t.Fatalf("default config must be accepted, got %v", err)
	}
}
