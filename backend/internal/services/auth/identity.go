package auth

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// DefaultMaxAge is the freshness window applied when none is configured.
const DefaultMaxAge = 24 * time.Hour

var (
	errAuthDateNotInteger = errors.New("auth_date is not an integer")
	errAuthDateTooOld     = errors.New("auth_date is outside the freshness window")
	errUserNotObject      = errors.New("user is not a JSON object")
)

// Identity is the verified caller. ID is meaningful only when HasID is set.
type Identity struct {
	ID           int64
	HasID        bool
	User         map[string]any
	AuthDate     int64
	HasAuthDate  bool
	QueryID      string
	ChatType     string
	ChatInstance string
}

// ExtractIdentity reads auth_date and user from verified fields.
//
// A missing auth_date is accepted and leaves HasAuthDate unset. A credential
// exactly maxAge old is still fresh; one second more is stale. A missing user
// yields an empty user object and no ID.
func ExtractIdentity(fields Fields, now time.Time, maxAge time.Duration) (Identity, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	identity := Identity{
		QueryID:      fields[FieldQueryID],
		ChatType:     fields[FieldChatType],
		ChatInstance: fields[FieldChatInstance],
	}

	if raw := fields[FieldAuthDate]; raw != "" {
		authDate, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Identity{}, newAuthError(KindMalformedTimestamp, errAuthDateNotInteger)
		}
		if now.Unix()-authDate > int64(maxAge/time.Second) {
			return Identity{}, newAuthError(KindStaleCredential, errAuthDateTooOld)
		}
		identity.AuthDate = authDate
		identity.HasAuthDate = true
	}

	user := map[string]any{}
	if raw := fields[FieldUser]; raw != "" {
		decoded, err := decodeUser([]byte(raw))
		if err != nil {
			return Identity{}, newAuthError(KindMalformedUserPayload, errUserNotObject)
		}
		user = decoded
	}
	identity.User = user
	identity.ID, identity.HasID = userID(user)

	return identity, nil
}

// decodeUser keeps numbers as json.Number so 64-bit ids survive a round trip.
func decodeUser(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var user map[string]any
	if err := dec.Decode(&user); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errUserNotObject
	}
	if dec.More() {
		return nil, errUserNotObject
	}
	return user, nil
}

func userID(user map[string]any) (int64, bool) {
	num, ok := user["id"].(json.Number)
	if !ok {
		return 0, false
	}
	id, err := num.Int64()
	if err != nil {
		return 0, false
	}
	return id, true
}
