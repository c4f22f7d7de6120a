package signature

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
)

// SymmetricSigner is the HMAC-SHA512 scheme keyed by the client secret. It covers the bearer token,
// so requests signed this way need an access token first.
type SymmetricSigner struct {
	secret []byte
}

func NewSymmetricSigner(clientSecret string) *SymmetricSigner {
	return &SymmetricSigner{secret: []byte(clientSecret)}
}

func (s *SymmetricSigner) SignTransaction(method, path, accessToken string, body []byte, timestamp string) (string, error) {
	if s == nil || len(s.secret) == 0 {
		return "", ErrMissingKey
	}
	return base64.StdEncoding.EncodeToString(s.mac(SymmetricString(method, path, accessToken, body, timestamp))), nil
}

func (s *SymmetricSigner) mac(stringToSign string) []byte {
	m := hmac.New(sha512.New, s.secret)
	m.Write([]byte(stringToSign))
	return m.Sum(nil)
}

func (s *SymmetricSigner) SignRequest(req Request) (string, error) {
	return s.SignTransaction(req.Method, req.Path, req.AccessToken, req.Body, req.Timestamp)
}

func (s *SymmetricSigner) NeedsAccessToken() bool {
	return true
}

func (s *SymmetricSigner) VerifyNotification(req Request, signature string) error {
	if s == nil || len(s.secret) == 0 {
		return ErrMissingKey
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(got, s.mac(SymmetricString(req.Method, req.Path, req.AccessToken, req.Body, req.Timestamp))) {
		return ErrInvalidSignature
	}
	return nil
}
