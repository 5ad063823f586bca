package identity

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

// DefaultBcryptCost is the default cost parameter for bcrypt hashing.
// Cost 10 provides a good balance between security and performance.
const DefaultBcryptCost = 10

// MinPasswordLength is the minimum required password length.
const MinPasswordLength = 8

// MaxPasswordLength is the maximum allowed password length.
// bcrypt silently truncates at 72 bytes, so we enforce this limit.
const MaxPasswordLength = 72

// DefaultScramIterations is the default PBKDF2 iteration count for new
// SCRAM credentials.
const DefaultScramIterations = 4096

// MinScramIterations is the lowest iteration count accepted when creating
// credentials, matching the RFC 5802 recommendation.
const MinScramIterations = 4096

const scramSaltLen = 16

// ErrPasswordTooShort is returned when a password is too short.
var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

// ErrPasswordTooLong is returned when a password is too long.
var ErrPasswordTooLong = fmt.Errorf("password must be at most %d characters", MaxPasswordLength)

// ValidatePassword checks password length constraints.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > MaxPasswordLength {
		return ErrPasswordTooLong
	}
	return nil
}

// HashPassword creates a bcrypt hash of the given password for the PLAIN
// mechanism's verifier.
func HashPassword(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), DefaultBcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword checks a cleartext password against a bcrypt hash.
func VerifyPassword(hashed, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(password)) == nil
}

// scramHash returns the hash constructor for a SCRAM mechanism name.
func scramHash(mechanism string) (func() hash.Hash, error) {
	switch mechanism {
	case "SCRAM-SHA-256":
		return sha256.New, nil
	case "SCRAM-SHA-512":
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("identity: not a SCRAM mechanism: %s", mechanism)
	}
}

// NewScramCredential derives the server-side SCRAM verifier material from a
// cleartext password, per RFC 5802:
//
//	SaltedPassword = PBKDF2(password, salt, iterations)
//	ClientKey      = HMAC(SaltedPassword, "Client Key")
//	StoredKey      = H(ClientKey)
//	ServerKey      = HMAC(SaltedPassword, "Server Key")
func NewScramCredential(mechanism, password string, iterations int) (ScramCredential, error) {
	newHash, err := scramHash(mechanism)
	if err != nil {
		return ScramCredential{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return ScramCredential{}, err
	}
	if iterations == 0 {
		iterations = DefaultScramIterations
	}
	if iterations < MinScramIterations {
		return ScramCredential{}, errors.New("identity: scram iteration count too low")
	}

	salt := make([]byte, scramSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return ScramCredential{}, fmt.Errorf("identity: generate salt: %w", err)
	}

	salted := pbkdf2.Key([]byte(password), salt, iterations, newHash().Size(), newHash)

	clientMAC := hmac.New(newHash, salted)
	clientMAC.Write([]byte("Client Key"))
	clientKey := clientMAC.Sum(nil)

	h := newHash()
	h.Write(clientKey)
	storedKey := h.Sum(nil)

	serverMAC := hmac.New(newHash, salted)
	serverMAC.Write([]byte("Server Key"))
	serverKey := serverMAC.Sum(nil)

	return ScramCredential{
		Salt:       salt,
		StoredKey:  storedKey,
		ServerKey:  serverKey,
		Iterations: iterations,
	}, nil
}

// NewUser builds a complete credential entry from a cleartext password. The
// entry carries a bcrypt hash for PLAIN plus stored verifiers for both SCRAM
// hash families, so the user can authenticate with any shared-secret
// mechanism.
func NewUser(username, password string, iterations int) (*User, error) {
	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := &User{
		Username:     username,
		PasswordHash: passwordHash,
		Scram:        make(map[string]ScramCredential, 2),
		Enabled:      true,
	}
	for _, mechanism := range []string{"SCRAM-SHA-256", "SCRAM-SHA-512"} {
		cred, err := NewScramCredential(mechanism, password, iterations)
		if err != nil {
			return nil, err
		}
		user.Scram[mechanism] = cred
	}
	return user, nil
}
