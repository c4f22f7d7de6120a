package signature

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Legacy is the older merchant-notification scheme: sha1(md5(userID+password+billNo+statusCode)),
// both stages rendered as lowercase hex.
type Legacy struct {
	UserID   string
	Password string
}

func (l Legacy) Sign(billNo, statusCode string) string {
	inner := md5.Sum([]byte(l.UserID + l.Password + billNo + statusCode))
	outer := sha1.Sum([]byte(hex.EncodeToString(inner[:])))
	return hex.EncodeToString(outer[:])
}

func (l Legacy) Verify(billNo, statusCode, signature string) error {
	if l.UserID == "" || l.Password == "" {
		return ErrMissingKey
	}
	want := l.Sign(billNo, statusCode)
	got := strings.ToLower(strings.TrimSpace(signature))
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}
