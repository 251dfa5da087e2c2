package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func mintToken(t *testing.T, userID int64, expiresAt time.Time) string {
	t.Helper()

	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     expiresAt.Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("mint token failed: %v", err)
	}
	return raw
}

func TestDecodeRoundTrip(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	raw := mintToken(t, 42, exp)

	claims, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if claims.Subject != 42 {
		t.Fatalf("subject = %d, want 42", claims.Subject)
	}
	if !claims.ExpiresAt.Equal(exp) {
		t.Fatalf("expiresAt = %v, want %v", claims.ExpiresAt, exp)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		"",
		"not-a-jwt",
		"a.b",
		"a.b.c.d",
		"!!!.###.$$$",
	}
	for _, raw := range cases {
		if _, err := Decode(raw); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Decode(%q) err = %v, want ErrMalformedToken", raw, err)
		}
	}
}

func TestDecodeMissingExp(t *testing.T) {
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 7,
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("mint token failed: %v", err)
	}

	if _, err := Decode(raw); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("Decode without exp err = %v, want ErrMalformedToken", err)
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()

	cases := []struct {
		name string
		raw  string
		want bool
	}{
		{"valid", mintToken(t, 1, now.Add(time.Hour)), false},
		{"expired", mintToken(t, 1, now.Add(-time.Hour)), true},
		{"exactly now", mintToken(t, 1, now), true},
		{"malformed", "garbage", true},
		{"empty", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Expired(tc.raw, now); got != tc.want {
				t.Fatalf("Expired = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestExpiredNeverTrustsUndecodable(t *testing.T) {
	// Even a far-future check time must not make garbage valid.
	if !Expired("x.y.z", time.Unix(0, 0)) {
		t.Fatal("undecodable token reported as valid")
	}
}

func TestPairComplete(t *testing.T) {
	if (Pair{}).Complete() {
		t.Fatal("empty pair reported complete")
	}
	if (Pair{Access: "a"}).Complete() {
		t.Fatal("access-only pair reported complete")
	}
	if !(Pair{Access: "a", Refresh: "r"}).Complete() {
		t.Fatal("full pair reported incomplete")
	}
}
