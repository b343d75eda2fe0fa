package auth

import (
	"errors"
	"testing"
	"time"
)

func testTokenService(t *testing.T, now *time.Time) *TokenService {
	t.Helper()
	svc, err := NewTokenService(TokenConfig{
		AccessSecret:  []byte("access-secret-for-tests"),
		RefreshSecret: []byte("refresh-secret-for-tests"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
		ResetTTL:      30 * time.Minute,
		Issuer:        "parkit-test",
	}, WithTokenClock(func() time.Time { return *now }))
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return svc
}

func testUser() *User {
	return &User{
		ID:             "user-42",
		Email:          "driver@example.com",
		Role:           RoleClient,
		OrganizationID: "org-7",
		Active:         true,
	}
}

func TestAccessTokenRoundTrip(t *testing.T) {
	now := time.Now().UTC()
	svc := testTokenService(t, &now)

	token, exp, err := svc.IssueAccessToken(testUser())
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if !exp.After(now) {
		t.Fatalf("expected future expiry, got %v", exp)
	}

	claims, err := svc.VerifyAccessToken(token)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.UserID() != "user-42" {
		t.Fatalf("unexpected subject: %s", claims.UserID())
	}
	if claims.Email != "driver@example.com" || claims.Role != RoleClient || claims.OrganizationID != "org-7" {
		t.Fatalf("claims did not round-trip: %+v", claims)
	}
	if claims.ExpiresAt.Time.Before(claims.IssuedAt.Time) {
		t.Fatalf("expiry precedes issued-at")
	}
}

func TestExpiredTokenIsDistinctFromMalformed(t *testing.T) {
	now := time.Now().UTC()
	svc := testTokenService(t, &now)

	token, _, err := svc.IssueAccessToken(testUser())
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	now = now.Add(16 * time.Minute)
	_, err = svc.VerifyAccessToken(token)
	if !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}

	_, err = svc.VerifyAccessToken("not.a.jwt")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for malformed input, got %v", err)
	}
	if errors.Is(err, ErrTokenExpired) {
		t.Fatalf("malformed token must not report expiry")
	}
}

func TestCrossClassRejection(t *testing.T) {
	now := time.Now().UTC()
	svc := testTokenService(t, &now)
	user := testUser()

	access, _, err := svc.IssueAccessToken(user)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	refresh, _, err := svc.IssueRefreshToken(user)
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	if _, err := svc.VerifyRefreshToken(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("access token must fail refresh verification, got %v", err)
	}
	if _, err := svc.VerifyAccessToken(refresh); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("refresh token must fail access verification, got %v", err)
	}
}

func TestResetTokenDiscriminator(t *testing.T) {
	now := time.Now().UTC()
	svc := testTokenService(t, &now)
	user := testUser()

	reset, _, err := svc.IssuePasswordResetToken(user)
	if err != nil {
		t.Fatalf("IssuePasswordResetToken: %v", err)
	}
	claims, err := svc.VerifyPasswordResetToken(reset)
	if err != nil {
		t.Fatalf("VerifyPasswordResetToken: %v", err)
	}
	if claims.TokenType != TokenTypePasswordReset {
		t.Fatalf("unexpected token type %q", claims.TokenType)
	}

	// A signature-valid access token must not pass the reset check.
	access, _, err := svc.IssueAccessToken(user)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if _, err := svc.VerifyPasswordResetToken(access); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected discriminator mismatch, got %v", err)
	}
}

func TestTamperedTokenRejected(t *testing.T) {
	now := time.Now().UTC()
	svc := testTokenService(t, &now)

	token, _, err := svc.IssueAccessToken(testUser())
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	tampered := token[:len(token)-2] + "xx"
	if _, err := svc.VerifyAccessToken(tampered); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestNewTokenServiceRejectsSharedSecrets(t *testing.T) {
	_, err := NewTokenService(TokenConfig{
		AccessSecret:  []byte("same"),
		RefreshSecret: []byte("same"),
	})
	if err == nil {
		t.Fatalf("expected error for identical secrets")
	}
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc.def.ghi", "abc.def.ghi"},
		{"  Bearer   abc  ", "abc"},
		{"", ""},
		{"Bearer", ""},
		{"Bearer ", ""},
		{"Basic dXNlcjpwYXNz", ""},
		{"abc.def.ghi", ""},
	}
	for _, tc := range cases {
		if got := ExtractBearer(tc.header); got != tc.want {
			t.Fatalf("ExtractBearer(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
