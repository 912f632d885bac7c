package auth_test

import (
	"errors"
	"strconv"
	"testing"
	"testing/quick"
	"time"

	authsvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/auth"
)

const botToken = "7000000001:AAE-service-test-token"

var fixedNow = time.Unix(1700000000, 0)

func newServiceForTest(t *testing.T, admins ...int64) *authsvc.Service {
	t.Helper()

	svc, err := authsvc.NewService(
		botToken,
		authsvc.NewAdminSet(admins...),
		authsvc.WithClock(func() time.Time { return fixedNow }),
		authsvc.WithAccessTokens(authsvc.NewJWTManager("jwt-test-secret", 15*time.Minute)),
	)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	return svc
}

func initDataFor(token string, userID int64, authDate time.Time) string {
	fields := authsvc.Fields{
		authsvc.FieldAuthDate: strconv.FormatInt(authDate.Unix(), 10),
		authsvc.FieldQueryID:  "AAHdF6IQAAAAAN0XohDhrOrc",
		authsvc.FieldUser:     `{"id":` + strconv.FormatInt(userID, 10) + `,"first_name":"Test"}`,
	}
	fields[authsvc.FieldHash] = authsvc.NewVerifier(token).Sign(fields)
	return authsvc.Encode(fields)
}

func TestNewServiceRequiresBotToken(t *testing.T) {
	if _, err := authsvc.NewService("  ", authsvc.NewAdminSet()); !errors.Is(err, authsvc.ErrEmptyBotToken) {
		t.Fatalf("expected ErrEmptyBotToken, got %v", err)
	}
}

func TestAuthenticateRecoversUserID(t *testing.T) {
	svc := newServiceForTest(t)

	property := func(userID int64) bool {
		identity, err := svc.Authenticate(initDataFor(botToken, userID, fixedNow))
		return err == nil && identity.HasID && identity.ID == userID
	}
	if err := quick.Check(property, nil); err != nil {
		t.Fatalf("user id not recovered: %v", err)
	}
}

func TestAuthenticateShortCircuitsOnSignature(t *testing.T) {
	svc := newServiceForTest(t)

	stale := initDataFor("another-token", 1, fixedNow.Add(-48*time.Hour))
	if _, err := svc.Authenticate(stale); !errors.Is(err, authsvc.ErrSignatureMismatch) {
		t.Fatalf("signature must be checked before freshness, got %v", err)
	}
}

func TestAuthenticateStaleCredential(t *testing.T) {
	svc := newServiceForTest(t)

	if _, err := svc.Authenticate(initDataFor(botToken, 5, fixedNow.Add(-86401*time.Second))); !errors.Is(err, authsvc.ErrStaleCredential) {
		t.Fatalf("expected ErrStaleCredential, got %v", err)
	}
	if _, err := svc.Authenticate(initDataFor(botToken, 5, fixedNow.Add(-86399*time.Second))); err != nil {
		t.Fatalf("credential inside the window must pass: %v", err)
	}
}

func TestAuthenticateHonoursMaxAgeOption(t *testing.T) {
	svc, err := authsvc.NewService(botToken, authsvc.NewAdminSet(),
		authsvc.WithClock(func() time.Time { return fixedNow }),
		authsvc.WithMaxAge(time.Hour),
	)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}

	if _, err := svc.Authenticate(initDataFor(botToken, 5, fixedNow.Add(-2*time.Hour))); !errors.Is(err, authsvc.ErrStaleCredential) {
		t.Fatalf("expected ErrStaleCredential with 1h window, got %v", err)
	}
}

func TestIsAdmin(t *testing.T) {
	svc := newServiceForTest(t, 371331803, 42)

	admin, err := svc.Authenticate(initDataFor(botToken, 371331803, fixedNow))
	if err != nil {
		t.Fatalf("authenticate admin: %v", err)
	}
	if !svc.IsAdmin(admin) {
		t.Fatalf("configured admin id must be admin")
	}

	regular, err := svc.Authenticate(initDataFor(botToken, 1001, fixedNow))
	if err != nil {
		t.Fatalf("authenticate regular user: %v", err)
	}
	if svc.IsAdmin(regular) {
		t.Fatalf("regular user must not be admin")
	}

	if svc.IsAdmin(authsvc.Identity{User: map[string]any{}}) {
		t.Fatalf("identity without id must not be admin")
	}
	if svc.IsAdmin(authsvc.Identity{ID: 42}) {
		t.Fatalf("identity with HasID unset must not be admin")
	}
}

func TestResolveTarget(t *testing.T) {
	svc := newServiceForTest(t, 1)
	admin := authsvc.Identity{ID: 1, HasID: true}
	user := authsvc.Identity{ID: 2, HasID: true}
	other := int64(3)
	own := int64(2)

	cases := []struct {
		name      string
		identity  authsvc.Identity
		ok        bool
		requested *int64
		want      int64
		wantErr   error
	}{
		{name: "no identity", ok: false, wantErr: authsvc.ErrUnauthorized},
		{name: "identity without id", identity: authsvc.Identity{}, ok: true, wantErr: authsvc.ErrUnauthorized},
		{name: "own data implicit", identity: user, ok: true, want: 2},
		{name: "own data explicit", identity: user, ok: true, requested: &own, want: 2},
		{name: "other user as regular", identity: user, ok: true, requested: &other, wantErr: authsvc.ErrForbidden},
		{name: "other user as admin", identity: admin, ok: true, requested: &other, want: 3},
		{name: "admin own data", identity: admin, ok: true, want: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.ResolveTarget(tc.identity, tc.ok, tc.requested)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolve target: %v", err)
			}
			if got != tc.want {
				t.Fatalf("unexpected target: got %d want %d", got, tc.want)
			}
		})
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	svc := newServiceForTest(t, 77)

	identity, err := svc.Authenticate(initDataFor(botToken, 77, fixedNow))
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}

	token, expiresAt, err := svc.IssueAccessToken(identity)
	if err != nil {
		t.Fatalf("issue access token: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("token must expire in the future, got %s", expiresAt)
	}

	parsed, err := svc.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("validate access token: %v", err)
	}
	if !parsed.HasID || parsed.ID != 77 {
		t.Fatalf("unexpected identity from token: %+v", parsed)
	}
	if parsed.User["first_name"] != "Test" {
		t.Fatalf("user payload not carried: %#v", parsed.User)
	}
	if !svc.IsAdmin(parsed) {
		t.Fatalf("admin rights must be re-evaluated from the admin set")
	}

	if _, err := svc.ValidateAccessToken(token + "x"); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("tampered token must be unauthorized, got %v", err)
	}
}

func TestAccessTokenRequiresUserID(t *testing.T) {
	svc := newServiceForTest(t)
	if _, _, err := svc.IssueAccessToken(authsvc.Identity{User: map[string]any{}}); !errors.Is(err, authsvc.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestAccessTokensDisabledWithoutSecret(t *testing.T) {
	svc, err := authsvc.NewService(botToken, authsvc.NewAdminSet(),
		authsvc.WithAccessTokens(authsvc.NewJWTManager("", time.Minute)),
	)
	if err != nil {
		t.Fatalf("new auth service: %v", err)
	}
	if svc.TokensEnabled() {
		t.Fatalf("tokens must be disabled without a secret")
	}
	if _, err := svc.ValidateAccessToken("anything"); !errors.Is(err, authsvc.ErrTokenDisabled) {
		t.Fatalf("expected ErrTokenDisabled, got %v", err)
	}
}

func TestCredentialFromHeader(t *testing.T) {
	cases := map[string]string{
		"tma query_id=A&hash=b": "query_id=A&hash=b",
		"query_id=A&hash=b":     "query_id=A&hash=b",
		"  tma a=b  ":           "a=b",
	}
	for in, want := range cases {
		got, ok := authsvc.CredentialFromHeader(in)
		if !ok || got != want {
			t.Fatalf("%q: got %q (ok=%v) want %q", in, got, ok, want)
		}
	}
	if _, ok := authsvc.CredentialFromHeader("   "); ok {
		t.Fatalf("blank header must not yield a credential")
	}
}

func TestReasonNeverEchoesInput(t *testing.T) {
	svc := newServiceForTest(t)
	secretish := "user=%7B%22id%22%3A1%7D&hash=" + botToken
	_, err := svc.Authenticate(secretish)
	if err == nil {
		t.Fatalf("expected failure")
	}
	reason := authsvc.Reason(err)
	if reason != "Invalid initData signature" {
		t.Fatalf("unexpected reason: %q", reason)
	}
	if authsvc.Reason(errors.New("boom")) != "Invalid initData" {
		t.Fatalf("unknown errors must map to the generic reason")
	}
}

func TestAdminSetIDs(t *testing.T) {
	set := authsvc.NewAdminSet(3, 1, 2, 1)
	ids := set.IDs()
	if set.Len() != 3 || len(ids) != 3 || ids[0] != 1 || ids[2] != 3 {
		t.Fatalf("unexpected admin ids: %v", ids)
	}
	if !set.Contains(2) || set.Contains(4) {
		t.Fatalf("unexpected membership")
	}
}
