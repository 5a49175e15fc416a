package roll

import (
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/wyrmtable/internal/dice"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
}

func TestCreateRequest(t *testing.T) {
	dc := 14
	request, err := CreateRequest(CreateRequestInput{
		CampaignID: "camp-1",
		DmUID:      "dm-1",
		Type:       " DEX Save ",
		DC:         &dc,
		TargetUIDs: []string{"p1", "p2"},
	}, fixedNow, nil)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if request.Type != "DEX Save" {
		t.Fatalf("type = %q, want trimmed", request.Type)
	}
	if len(request.Responses) != 0 {
		t.Fatal("expected empty responses")
	}
}

func TestCreateRequestValidation(t *testing.T) {
	if _, err := CreateRequest(CreateRequestInput{CampaignID: "c", TargetUIDs: []string{"p1"}}, fixedNow, nil); !errors.Is(err, ErrEmptyType) {
		t.Fatalf("error = %v, want ErrEmptyType", err)
	}
	if _, err := CreateRequest(CreateRequestInput{CampaignID: "c", Type: "DEX Save"}, fixedNow, nil); !errors.Is(err, ErrNoTargets) {
		t.Fatalf("error = %v, want ErrNoTargets", err)
	}
}

func TestHasResponse(t *testing.T) {
	request := Request{Responses: []Response{{UID: "p1", Result: dice.Result{Total: 12}}}}
	if !request.HasResponse("p1") {
		t.Fatal("expected p1 to have responded")
	}
	if request.HasResponse("p2") {
		t.Fatal("expected p2 to be missing")
	}
}

func TestPasses(t *testing.T) {
	dc := 15
	request := Request{DC: &dc}

	passed, hasDC := request.Passes(15)
	if !hasDC || !passed {
		t.Fatal("expected 15 to pass DC 15")
	}
	passed, _ = request.Passes(14)
	if passed {
		t.Fatal("expected 14 to fail DC 15")
	}

	_, hasDC = Request{}.Passes(20)
	if hasDC {
		t.Fatal("expected no DC verdict without a DC")
	}
}
