// Package totpx is the TOTP provisioning library: secret generation,
// otpauth URI issuance, QR payload rendering, and windowed verification.
// It is pure; nothing here touches storage.
package totpx

import (
	"bytes"
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"image/png"
	"net/url"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	// SecretBytes is the seed entropy: 160 bits per RFC 4226's
	// recommendation for SHA-1 HOTP.
	SecretBytes = 20

	// Period is the TOTP time step in seconds.
	Period = 30

	// Digits in a code.
	Digits = 6

	// DefaultSkew is the accepted window around the current step. One
	// step either side tolerates ordinary clock drift on phones.
	DefaultSkew = 1
)

// b32 is the RFC 4648 alphabet without padding, as authenticator apps
// expect.
var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// Provisioner issues and verifies TOTP secrets for one issuer. The zero
// Skew means DefaultSkew; set SkewSteps explicitly to widen or disable
// the window.
type Provisioner struct {
	Issuer    string
	SkewSteps *uint
}

func (p Provisioner) skew() uint {
	if p.SkewSteps != nil {
		return *p.SkewSteps
	}
	return DefaultSkew
}

// GenerateSecret returns a fresh 160-bit base32 seed.
func (p Provisioner) GenerateSecret() (string, error) {
	seed := make([]byte, SecretBytes)
	if _, err := rand.Read(seed); err != nil {
		return "", fmt.Errorf("generate secret: %w", err)
	}
	return b32.EncodeToString(seed), nil
}

// ProvisioningURI builds the standard otpauth URI for an authenticator
// app: 30-second step, SHA-1, 6 digits.
func (p Provisioner) ProvisioningURI(secret, account string) string {
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", p.Issuer)
	v.Set("algorithm", otp.AlgorithmSHA1.String())
	v.Set("digits", otp.DigitsSix.String())
	v.Set("period", fmt.Sprintf("%d", Period))

	u := url.URL{
		Scheme:   "otpauth",
		Host:     "totp",
		Path:     "/" + p.Issuer + ":" + account,
		RawQuery: v.Encode(),
	}
	return u.String()
}

// RenderQR renders a provisioning URI into a PNG payload of size×size
// pixels for the enrollment wizard to display. Styling beyond the raw
// image is the UI layer's concern.
func RenderQR(uri string, size int) ([]byte, error) {
	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return nil, fmt.Errorf("parse provisioning uri: %w", err)
	}
	img, err := key.Image(size, size)
	if err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode qr png: %w", err)
	}
	return buf.Bytes(), nil
}

// Verify reports whether code is valid for secret within the configured
// skew window. Codes that are not exactly six digits are rejected before
// any TOTP computation.
func (p Provisioner) Verify(secret, code string) bool {
	return p.VerifyAt(secret, code, time.Now().UTC())
}

// VerifyAt is Verify against an explicit time, for deterministic tests.
func (p Provisioner) VerifyAt(secret, code string, at time.Time) bool {
	if !ValidCode(code) {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, at, totp.ValidateOpts{
		Period:    Period,
		Skew:      p.skew(),
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// ValidCode reports whether code has the shape of a TOTP code: exactly
// six ASCII digits.
func ValidCode(code string) bool {
	if len(code) != Digits {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizeSecret uppercases a user-supplied seed and strips the spaces
// authenticator apps insert for readability.
func NormalizeSecret(secret string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
}

// ValidSecret reports whether secret parses as a base32 TOTP seed.
func ValidSecret(secret string) bool {
	secret = NormalizeSecret(secret)
	if secret == "" {
		return false
	}
	_, err := b32.DecodeString(secret)
	return err == nil
}
