// Package auth provides password hashing and session tokens for accounts.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrInvalidHash indicates the hash format is invalid.
	ErrInvalidHash = errors.New("invalid hash format")
	// ErrIncompatibleVersion indicates the hash version is not supported.
	ErrIncompatibleVersion = errors.New("incompatible argon2 version")
)

// Params are the Argon2id cost parameters encoded into every hash.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
	KeyLen  uint32
	SaltLen uint32
}

// DefaultParams follows the OWASP minimum for interactive logins.
var DefaultParams = Params{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 4,
	KeyLen:  32,
	SaltLen: 16,
}

// Hasher hashes and verifies account passwords.
type Hasher struct {
	params Params
}

// NewHasher creates a Hasher with the given parameters.
func NewHasher(params Params) *Hasher {
	return &Hasher{params: params}
}

// encodedHash is the parsed form of
// $argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>.
type encodedHash struct {
	params Params
	salt   []byte
	key    []byte
}

func (e encodedHash) String() string {
	b64 := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, e.params.Memory, e.params.Time, e.params.Threads,
		b64.EncodeToString(e.salt), b64.EncodeToString(e.key))
}

func parseEncodedHash(s string) (encodedHash, error) {
	var e encodedHash

	fields := strings.Split(s, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return e, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[2], "v=%d", &version); err != nil {
		return e, ErrInvalidHash
	}
	if version != argon2.Version {
		return e, ErrIncompatibleVersion
	}

	p := &e.params
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.Memory, &p.Time, &p.Threads); err != nil {
		return e, ErrInvalidHash
	}

	var err error
	if e.salt, err = base64.RawStdEncoding.DecodeString(fields[4]); err != nil {
		return e, ErrInvalidHash
	}
	if e.key, err = base64.RawStdEncoding.DecodeString(fields[5]); err != nil || len(e.key) == 0 {
		return e, ErrInvalidHash
	}
	p.SaltLen, p.KeyLen = uint32(len(e.salt)), uint32(len(e.key))
	return e, nil
}

func derive(password string, salt []byte, p Params) []byte {
	return argon2.IDKey([]byte(password), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
}

// Hash returns an Argon2id hash of password in PHC string format.
func (h *Hasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	return encodedHash{params: h.params, salt: salt, key: derive(password, salt, h.params)}.String(), nil
}

// Verify checks password against a PHC hash using the parameters stored in
// the hash, so accounts hashed under older settings can still sign in.
// A wrong password is (false, nil); only malformed hashes return an error.
func (h *Hasher) Verify(password, hash string) (bool, error) {
	e, err := parseEncodedHash(hash)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(derive(password, e.salt, e.params), e.key) == 1, nil
}

var defaultHasher = NewHasher(DefaultParams)

// HashPassword hashes with DefaultParams.
func HashPassword(password string) (string, error) {
	return defaultHasher.Hash(password)
}

// VerifyPassword verifies a password against a PHC-encoded hash.
func VerifyPassword(password, encodedHash string) (bool, error) {
	return defaultHasher.Verify(password, encodedHash)
}
