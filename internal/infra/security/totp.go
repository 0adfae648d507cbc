package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	totpPeriod = 30 * time.Second
	totpDigits = 6
	totpSkew   = 1
)

// GenerateTOTPSecret returns a fresh base32-encoded shared secret suitable
// for RFC 6238 authenticator apps.
func GenerateTOTPSecret() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// BuildOTPAuthURL renders the otpauth:// provisioning URI encoded into the
// QR code shown during 2FA enrollment.
func BuildOTPAuthURL(issuer, account, secret string) string {
	label := url.PathEscape(fmt.Sprintf("%s:%s", issuer, account))
	params := url.Values{}
	params.Set("secret", secret)
	params.Set("issuer", issuer)
	params.Set("algorithm", "SHA1")
	params.Set("digits", fmt.Sprintf("%d", totpDigits))
	params.Set("period", fmt.Sprintf("%.0f", totpPeriod.Seconds()))
	return fmt.Sprintf("otpauth://totp/%s?%s", label, params.Encode())
}

// VerifyTOTP checks a 6-digit code against the shared secret at the given
// instant, accepting one 30-second step of clock skew in either direction.
func VerifyTOTP(secret, code string, at time.Time) (bool, error) {
	code = strings.TrimSpace(code)
	if len(code) != totpDigits {
		return false, nil
	}

	key, err := decodeTOTPSecret(secret)
	if err != nil {
		return false, err
	}

	counter := at.Unix() / int64(totpPeriod.Seconds())
	for offset := int64(-totpSkew); offset <= totpSkew; offset++ {
		step := counter + offset
		if step < 0 {
			continue
		}
		candidate := hotp(key, uint64(step))
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

func decodeTOTPSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	normalized = strings.TrimRight(normalized, "=")

	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("decode totp secret: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("decode totp secret: empty key")
	}
	return key, nil
}

// hotp computes an RFC 4226 HMAC-SHA1 one-time password with dynamic
// truncation.
func hotp(key []byte, counter uint64) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%06d", value%1000000)
}
