// Package signature implements the request signing schemes spoken with the payment provider.
// Everything here is pure: no I/O, no clock reads except in the timestamp helpers.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	ErrInvalidSignature = errors.New("signature: verification failed")
	ErrMissingKey       = errors.New("signature: key not configured")
)

// Request is the material a transactional signature covers.
type Request struct {
	Method      string
	Path        string
	Body        []byte
	Timestamp   string
	AccessToken string
}

// RequestSigner signs outbound requests. Implementations that need a bearer token report it so
// the caller can fetch one before signing.
type RequestSigner interface {
	SignRequest(req Request) (string, error)
	NeedsAccessToken() bool
}

// NotificationVerifier authenticates inbound provider requests.
type NotificationVerifier interface {
	VerifyNotification(req Request, signature string) error
}

// BodyDigest is lowercase hex of sha256(body). The raw bytes are hashed as received.
func BodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func AccessTokenString(clientID, timestamp string) string {
	return clientID + "|" + timestamp
}

func TransactionString(method, path string, body []byte, timestamp string) string {
	return strings.Join([]string{strings.ToUpper(method), path, BodyDigest(body), timestamp}, ":")
}

func SymmetricString(method, path, accessToken string, body []byte, timestamp string) string {
	return strings.Join([]string{strings.ToUpper(method), path, accessToken, BodyDigest(body), timestamp}, ":")
}
