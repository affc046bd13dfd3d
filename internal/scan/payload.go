// Package scan captures public pet lookups and persists them for owners.
package scan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	maxCodeLength     = 64
	maxMetaLength     = 500
	visitorHashLength = 16
)

// Payload is the compact scan event format stored in the Redis stream.
type Payload struct {
	PetCode     string `json:"pc"`
	Referrer    string `json:"r,omitempty"`
	UserAgent   string `json:"ua,omitempty"`
	VisitorHash string `json:"vh"`
	CountryCode string `json:"cc,omitempty"`
	ScannedAt   int64  `json:"t"` // Unix milliseconds
}

// NewPayload builds a sanitized payload for a lookup of code. The raw IP is
// only used to derive the visitor hash.
func NewPayload(code, ip, referrer, userAgent, cfIPCountry string, at time.Time) Payload {
	return Payload{
		PetCode:     code,
		Referrer:    SanitizeReferrer(referrer),
		UserAgent:   TruncateUserAgent(userAgent),
		VisitorHash: VisitorHash(ip, userAgent, at),
		CountryCode: CountryCode(cfIPCountry),
		ScannedAt:   at.UnixMilli(),
	}
}

// Validate checks payload fields read back from the stream.
func (p Payload) Validate() error {
	if p.PetCode == "" {
		return fmt.Errorf("pet_code is required")
	}
	if len(p.PetCode) > maxCodeLength {
		return fmt.Errorf("pet_code too long")
	}
	if len(p.VisitorHash) != visitorHashLength || !isHex(p.VisitorHash) {
		return fmt.Errorf("visitor_hash must be %d hex chars", visitorHashLength)
	}
	if p.CountryCode != "" && len(p.CountryCode) != 2 {
		return fmt.Errorf("country_code must be 2 chars")
	}
	if p.ScannedAt <= 0 {
		return fmt.Errorf("scanned_at must be set")
	}
	if len(p.Referrer) > maxMetaLength {
		return fmt.Errorf("referrer too long")
	}
	if len(p.UserAgent) > maxMetaLength {
		return fmt.Errorf("user_agent too long")
	}
	return nil
}

// VisitorHash creates a privacy-safe visitor identifier:
// SHA256(IP + UserAgent + daily salt) truncated to 16 hex chars.
// The salt rotates at midnight UTC, so visitors cannot be followed across days.
func VisitorHash(ip, userAgent string, at time.Time) string {
	salt := "petlink:" + at.UTC().Format("2006-01-02")
	sum := sha256.Sum256([]byte(ip + userAgent + salt))
	return hex.EncodeToString(sum[:])[:visitorHashLength]
}

// SanitizeReferrer drops query and fragment and truncates the result.
func SanitizeReferrer(ref string) string {
	if ref == "" {
		return ""
	}

	parsed, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	parsed.RawQuery = ""
	parsed.Fragment = ""

	sanitized := parsed.String()
	if len(sanitized) > maxMetaLength {
		return sanitized[:maxMetaLength]
	}
	return sanitized
}

// TruncateUserAgent caps the user agent length.
func TruncateUserAgent(ua string) string {
	if len(ua) > maxMetaLength {
		return ua[:maxMetaLength]
	}
	return ua
}

// CountryCode normalizes the Cloudflare CF-IPCountry header.
func CountryCode(cfIPCountry string) string {
	if len(cfIPCountry) == 2 {
		return strings.ToUpper(cfIPCountry)
	}
	return ""
}

// NewConsumerID creates a stable-ish consumer ID for Redis consumer groups.
func NewConsumerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return fmt.Sprintf("%s-%d-%d", host, os.Getpid(), time.Now().UnixNano())
}

func isHex(value string) bool {
	for i := 0; i < len(value); i++ {
		ch := value[i]
		if (ch >= '0' && ch <= '9') || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') {
			continue
		}
		return false
	}
	return true
}
