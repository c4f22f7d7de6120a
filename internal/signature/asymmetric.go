package signature

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// AsymmetricSigner signs with RSA-SHA256 PKCS#1 v1.5 and base64-encodes the result.
type AsymmetricSigner struct {
	key *rsa.PrivateKey
}

func NewAsymmetricSigner(key *rsa.PrivateKey) *AsymmetricSigner {
	return &AsymmetricSigner{key: key}
}

func (s *AsymmetricSigner) Sign(stringToSign string) (string, error) {
	if s == nil || s.key == nil {
		return "", ErrMissingKey
	}
	digest := sha256.Sum256([]byte(stringToSign))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("rsa sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func (s *AsymmetricSigner) SignAccessToken(clientID, timestamp string) (string, error) {
	return s.Sign(AccessTokenString(clientID, timestamp))
}

func (s *AsymmetricSigner) SignTransaction(method, path string, body []byte, timestamp string) (string, error) {
	return s.Sign(TransactionString(method, path, body, timestamp))
}

func (s *AsymmetricSigner) SignRequest(req Request) (string, error) {
	return s.SignTransaction(req.Method, req.Path, req.Body, req.Timestamp)
}

func (s *AsymmetricSigner) NeedsAccessToken() bool {
	return false
}

// AsymmetricVerifier checks signatures produced with the counterparty's private key.
type AsymmetricVerifier struct {
	key *rsa.PublicKey
}

func NewAsymmetricVerifier(key *rsa.PublicKey) *AsymmetricVerifier {
	return &AsymmetricVerifier{key: key}
}

func (v *AsymmetricVerifier) Verify(stringToSign, signature string) error {
	if v == nil || v.key == nil {
		return ErrMissingKey
	}
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(sig) == 0 {
		return ErrInvalidSignature
	}
	digest := sha256.Sum256([]byte(stringToSign))
	if err := rsa.VerifyPKCS1v15(v.key, crypto.SHA256, digest[:], sig); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

func (v *AsymmetricVerifier) VerifyAccessToken(clientID, timestamp, signature string) error {
	return v.Verify(AccessTokenString(clientID, timestamp), signature)
}

func (v *AsymmetricVerifier) VerifyTransaction(method, path string, body []byte, timestamp, signature string) error {
	return v.Verify(TransactionString(method, path, body, timestamp), signature)
}

func (v *AsymmetricVerifier) VerifyNotification(req Request, signature string) error {
	return v.VerifyTransaction(req.Method, req.Path, req.Body, req.Timestamp, signature)
}
