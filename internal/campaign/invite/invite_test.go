package invite

import (
	"errors"
	"testing"
	"time"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
}

func TestCreateInvite(t *testing.T) {
	created, err := CreateInvite(CreateInviteInput{
		CampaignID:    "camp-1",
		CampaignName:  "Lost Mines",
		Email:         " Astrid@Example.COM ",
		InvitedByUID:  "dm-1",
		InvitedByName: "Marcus",
	}, fixedNow, nil)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}

	if created.Email != "astrid@example.com" {
		t.Fatalf("email = %q, want lowercased", created.Email)
	}
	if created.Status != StatusPending {
		t.Fatalf("status = %v, want pending", created.Status)
	}
	wantExpiry := fixedNow().Add(7 * 24 * time.Hour)
	if !created.ExpiresAt.Equal(wantExpiry) {
		t.Fatalf("expires at = %v, want %v", created.ExpiresAt, wantExpiry)
	}
}

func TestCreateInviteValidation(t *testing.T) {
	if _, err := CreateInvite(CreateInviteInput{Email: "a@b.c"}, fixedNow, nil); !errors.Is(err, ErrEmptyCampaignID) {
		t.Fatalf("error = %v, want ErrEmptyCampaignID", err)
	}
	if _, err := CreateInvite(CreateInviteInput{CampaignID: "c1"}, fixedNow, nil); !errors.Is(err, ErrEmptyEmail) {
		t.Fatalf("error = %v, want ErrEmptyEmail", err)
	}
}

func TestExpired(t *testing.T) {
	created, err := CreateInvite(CreateInviteInput{CampaignID: "c1", Email: "a@b.c"}, fixedNow, nil)
	if err != nil {
		t.Fatalf("create invite: %v", err)
	}
	if created.Expired(fixedNow().Add(6 * 24 * time.Hour)) {
		t.Fatal("expected invite to still be valid at day 6")
	}
	if !created.Expired(fixedNow().Add(8 * 24 * time.Hour)) {
		t.Fatal("expected invite to be expired at day 8")
	}
}

func TestStatusLabelRoundTrip(t *testing.T) {
	for _, status := range []Status{StatusPending, StatusAccepted, StatusDeclined} {
		if got := StatusFromLabel(StatusLabel(status)); got != status {
			t.Fatalf("round trip for %v = %v", status, got)
		}
	}
}
