package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"expense_tracker/internal/config"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// Argon2id parameters (OWASP recommended minimum).
const (
	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4
	argon2KeyLen  = 32
	argon2SaltLen = 16
)

// Bounds on parameters read back from stored argon2id hashes. IDKey allocates
// m KiB, so a corrupt row must never reach it with an arbitrary m.
const (
	argon2MaxMemory  = 1 << 20
	argon2MaxTime    = 10
	argon2MaxThreads = 16
	argon2MinSaltLen = 8
	argon2MaxSaltLen = 64
	argon2MinKeyLen  = 16
	argon2MaxKeyLen  = 64
)

// PasswordVault hashes and verifies user secrets. New hashes use the configured
// scheme; Verify accepts any scheme the vault knows, so switching schemes keeps
// existing accounts working.
type PasswordVault struct {
	scheme     string
	bcryptCost int
}

func NewPasswordVault(cfg config.PasswordConfig) *PasswordVault {
	cost := cfg.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordVault{
		scheme:     cfg.Scheme,
		bcryptCost: cost,
	}
}

func (v *PasswordVault) Hash(secret string) (string, error) {
	if v.scheme == config.PasswordSchemeArgon2id {
		return hashArgon2id(secret)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), v.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt hash: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether secret produced hashed. Malformed hashes verify as false.
func (v *PasswordVault) Verify(secret, hashed string) bool {
	switch {
	case strings.HasPrefix(hashed, "$argon2id$"):
		return verifyArgon2id(secret, hashed)
	case strings.HasPrefix(hashed, "$2a$"), strings.HasPrefix(hashed, "$2b$"), strings.HasPrefix(hashed, "$2y$"):
		return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(secret)) == nil
	default:
		return false
	}
}

// hashArgon2id encodes as $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>.
func hashArgon2id(secret string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(secret), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyArgon2id(secret, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false
	}

	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false
	}
	if memory == 0 || memory > argon2MaxMemory ||
		iterations == 0 || iterations > argon2MaxTime ||
		threads == 0 || threads > argon2MaxThreads {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < argon2MinSaltLen || len(salt) > argon2MaxSaltLen {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) < argon2MinKeyLen || len(expected) > argon2MaxKeyLen {
		return false
	}

	computed := argon2.IDKey([]byte(secret), salt, iterations, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1
}
