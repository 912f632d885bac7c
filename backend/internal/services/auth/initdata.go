package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

const (
	webAppDataKey = "WebAppData"

	FieldHash         = "hash"
	FieldAuthDate     = "auth_date"
	FieldUser         = "user"
	FieldQueryID      = "query_id"
	FieldChatType     = "chat_type"
	FieldChatInstance = "chat_instance"
)

var (
	errInvalidEscape = errors.New("invalid percent-encoding")
	errEmptyHash     = errors.New("hash field is empty")
	errHashDiffers   = errors.New("computed hash differs")
)

// Fields holds the decoded initData pairs. Each key appears once: the first
// occurrence in the raw string wins.
type Fields map[string]string

// Verifier checks Telegram Mini App initData against one bot token.
// It holds only the derived key and is safe for concurrent use.
type Verifier struct {
	key []byte
}

func NewVerifier(botToken string) *Verifier {
	return &Verifier{key: DeriveKey(botToken)}
}

// DeriveKey returns HMAC-SHA256 keyed with "WebAppData" over the bot token.
func DeriveKey(botToken string) []byte {
	return hmacSHA256([]byte(webAppDataKey), []byte(botToken))
}

// Verify parses initData, recomputes its signature and returns the remaining
// fields without hash.
func (v *Verifier) Verify(initData string) (Fields, error) {
	fields, err := ParseFields(initData)
	if err != nil {
		return nil, err
	}

	claimed := fields[FieldHash]
	delete(fields, FieldHash)
	if claimed == "" {
		return nil, newAuthError(KindMissingSignature, errEmptyHash)
	}

	calculated := v.Sign(fields)
	if subtle.ConstantTimeCompare([]byte(calculated), []byte(claimed)) != 1 {
		return nil, newAuthError(KindSignatureMismatch, errHashDiffers)
	}

	return fields, nil
}

// Sign returns the lowercase hex signature of the canonical form of fields.
// A hash entry in fields is ignored.
func (v *Verifier) Sign(fields Fields) string {
	return hex.EncodeToString(hmacSHA256(v.key, []byte(CanonicalForm(fields))))
}

// ParseFields decodes an &-separated query string. Pairs without "=" become
// keys with empty values; ";" is an ordinary character.
func ParseFields(initData string) (Fields, error) {
	fields := make(Fields)
	rest := initData
	for rest != "" {
		var pair string
		pair, rest, _ = strings.Cut(rest, "&")
		if pair == "" {
			continue
		}

		rawKey, rawValue, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, newAuthError(KindMalformedCredential, errInvalidEscape)
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, newAuthError(KindMalformedCredential, errInvalidEscape)
		}

		if _, seen := fields[key]; seen {
			continue
		}
		fields[key] = value
	}
	return fields, nil
}

// CanonicalForm renders fields except hash as key=value lines sorted by the
// decoded key, joined by "\n" without a trailing newline.
func CanonicalForm(fields Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == FieldHash {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(fields[k])
	}
	return b.String()
}

// Encode renders fields as a query string in key order. Used to build signed
// initData for local tooling and tests.
func Encode(fields Fields) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(fields[k]))
	}
	return strings.Join(pairs, "&")
}

func hmacSHA256(key, data []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}
