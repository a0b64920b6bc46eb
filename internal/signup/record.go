// Package signup stores launch signups and notifies downstream consumers.
package signup

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/language"
)

var (
	// ErrInvalidEmail is returned before any store call when the address is
	// malformed.
	ErrInvalidEmail = errors.New("signup: invalid email")
	// ErrAlreadyExists is returned when the address already signed up.
	ErrAlreadyExists = errors.New("signup: already registered")
	// ErrStoreUnavailable wraps store failures other than duplicates.
	ErrStoreUnavailable = errors.New("signup: store unavailable")
)

// Device classes derived from the user agent.
const (
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceDesktop = "desktop"
)

const maxEmailLen = 254

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Request is what a visitor submits.
type Request struct {
	Email     string            `json:"email"`
	Locale    string            `json:"locale,omitempty"`
	UserAgent string            `json:"userAgent,omitempty"`
	Referrer  string            `json:"referrer,omitempty"`
	SourceURL string            `json:"sourceUrl,omitempty"`
	UTM       map[string]string `json:"utm,omitempty"`
}

// Record is one stored signup.
type Record struct {
	Email       string            `json:"email"`
	SubmittedAt time.Time         `json:"submittedAt"`
	Locale      string            `json:"locale,omitempty"`
	UserAgent   string            `json:"userAgent,omitempty"`
	Referrer    string            `json:"referrer,omitempty"`
	SourceURL   string            `json:"sourceUrl,omitempty"`
	DeviceType  string            `json:"deviceType"`
	UTM         map[string]string `json:"utm,omitempty"`
}

// Key is the record's identity: the lower-cased, trimmed email.
func (r Record) Key() string {
	return Key(r.Email)
}

// Key normalizes an email into a record key.
func Key(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate reports ErrInvalidEmail for anything that is not a plausible
// single address.
func Validate(email string) error {
	e := strings.TrimSpace(email)
	if e == "" || len(e) > maxEmailLen || !emailPattern.MatchString(e) {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}
	return nil
}

// NewRecord validates req and builds the record to store.
func NewRecord(req Request, now time.Time) (Record, error) {
	if err := Validate(req.Email); err != nil {
		return Record{}, err
	}
	return Record{
		Email:       Key(req.Email),
		SubmittedAt: now.UTC(),
		Locale:      CanonicalLocale(req.Locale),
		UserAgent:   req.UserAgent,
		Referrer:    req.Referrer,
		SourceURL:   req.SourceURL,
		DeviceType:  DeviceType(req.UserAgent),
		UTM:         cleanUTM(req.UTM),
	}, nil
}

// CanonicalLocale returns the BCP 47 form of a locale or Accept-Language
// value, or "" when nothing parses.
func CanonicalLocale(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if tag, err := language.Parse(s); err == nil {
		return tag.String()
	}
	tags, _, err := language.ParseAcceptLanguage(s)
	if err != nil || len(tags) == 0 {
		return ""
	}
	return tags[0].String()
}

var mobilePattern = regexp.MustCompile(`(?i)mobi|iphone|ipod|android|blackberry|opera mini|iemobile`)

// DeviceType classifies a user agent as mobile, tablet or desktop.
func DeviceType(ua string) string {
	switch {
	case isTablet(ua):
		return DeviceTablet
	case mobilePattern.MatchString(ua):
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

func isTablet(ua string) bool {
	l := strings.ToLower(ua)
	for _, marker := range []string{"ipad", "tablet", "kindle", "silk/", "playbook"} {
		if strings.Contains(l, marker) {
			return true
		}
	}
	return strings.Contains(l, "android") && !strings.Contains(l, "mobile")
}

func cleanUTM(in map[string]string) map[string]string {
	var out map[string]string
	for k, v := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if v == "" || !strings.HasPrefix(k, "utm_") {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[k] = v
	}
	return out
}
