package identity

import (
	"testing"
	"time"

	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
)

func fixedClock(value time.Time) func() time.Time {
	return func() time.Time { return value }
}

func TestVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 22, 10, 0, 0, 0, time.UTC)
	verifier := NewVerifier([]byte("test-secret"), fixedClock(now))

	token, err := verifier.Sign(Identity{UID: "user-1", Email: "Bram@Example.com", DisplayName: "Bram"}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	got, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if got.UID != "user-1" {
		t.Fatalf("uid = %q, want user-1", got.UID)
	}
	if got.Email != "bram@example.com" {
		t.Fatalf("email = %q, want lowercased", got.Email)
	}
}

func TestVerifyFailsClosed(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 22, 10, 0, 0, 0, time.UTC)
	verifier := NewVerifier([]byte("test-secret"), fixedClock(now))
	other := NewVerifier([]byte("other-secret"), fixedClock(now))

	cases := map[string]string{
		"empty":   "",
		"garbage": "not.a.token",
	}
	if wrongKey, err := other.Sign(Identity{UID: "user-1"}, time.Hour); err == nil {
		cases["wrong key"] = wrongKey
	}

	for name, token := range cases {
		if _, err := verifier.Verify(token); !apperrors.IsCode(err, apperrors.CodeIdentityUnverified) {
			t.Fatalf("%s: err = %v, want unverified", name, err)
		}
	}
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	t.Parallel()

	issued := time.Date(2026, time.August, 22, 10, 0, 0, 0, time.UTC)
	verifier := NewVerifier([]byte("test-secret"), fixedClock(issued))
	token, err := verifier.Sign(Identity{UID: "user-1"}, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	later := NewVerifier([]byte("test-secret"), fixedClock(issued.Add(time.Hour)))
	if _, err := later.Verify(token); !apperrors.IsCode(err, apperrors.CodeIdentityUnverified) {
		t.Fatalf("err = %v, want unverified", err)
	}
}

func TestVerifyRequiresSubject(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.August, 22, 10, 0, 0, 0, time.UTC)
	verifier := NewVerifier([]byte("test-secret"), fixedClock(now))
	token, err := verifier.Sign(Identity{UID: ""}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := verifier.Verify(token); !apperrors.IsCode(err, apperrors.CodeIdentityUnverified) {
		t.Fatalf("err = %v, want unverified", err)
	}
}
