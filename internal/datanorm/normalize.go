// Package datanorm canonicalizes lead identities so that cosmetically
// different spellings of the same phone or email compare equal.
package datanorm

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"github.com/nyaruka/phonenumbers"
)

// DigitsOnly strips everything but ASCII digits.
func DigitsOnly(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizePhone returns the canonical digit string for a phone number.
// Russian trunk prefix 8 becomes country code 7, and bare 10-digit mobile
// numbers get the 7 prefix. The result is stable under re-normalization.
func NormalizePhone(raw string) string {
	digits := DigitsOnly(raw)
	switch {
	case len(digits) == 11 && digits[0] == '8':
		return "7" + digits[1:]
	case len(digits) == 10 && digits[0] == '9':
		return "7" + digits
	}
	return digits
}

// NormalizeEmail lower-cases and trims an email, dropping quoting artifacts.
func NormalizeEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	return strings.Trim(email, "\"'<>")
}

// EmailDomain returns the part after the last @, or "".
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}

// NormalizeName collapses whitespace, folds ё to е and title-cases each word.
func NormalizeName(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.NewReplacer("ё", "е", "Ё", "Е").Replace(s)
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(strings.ToLower(w))
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

// HashIdentity returns the hex SHA-256 of an already normalized value. Store
// keys use it so raw PII never lands in Redis.
func HashIdentity(normalized string) string {
	h := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(h[:])
}

// PhoneRegion returns the ISO region of a normalized phone, or "" when the
// number is not valid for any region.
func PhoneRegion(normalized string) string {
	if normalized == "" {
		return ""
	}
	num, err := phonenumbers.Parse("+"+normalized, "")
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return ""
	}
	return phonenumbers.GetRegionCodeForNumber(num)
}

// PhoneE164 formats a normalized phone as E.164, falling back to "+digits".
func PhoneE164(normalized string) string {
	num, err := phonenumbers.Parse("+"+normalized, "")
	if err != nil {
		return "+" + normalized
	}
	return phonenumbers.Format(num, phonenumbers.E164)
}
