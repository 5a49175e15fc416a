package dice

import (
	"errors"
	"math/rand"
	"reflect"
	"testing"
)

func TestRollDiceDeterministic(t *testing.T) {
	request := Request{
		Dice: []Spec{
			{Sides: 6, Count: 2},
			{Sides: 8, Count: 1, Modifier: 3},
		},
		Seed: 42,
	}

	first, err := RollDice(request)
	if err != nil {
		t.Fatalf("first roll: %v", err)
	}
	second, err := RollDice(request)
	if err != nil {
		t.Fatalf("second roll: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected deterministic rolls, got %+v and %+v", first, second)
	}
}

func TestRollDiceTotals(t *testing.T) {
	result, err := RollDice(Request{
		Dice: []Spec{
			{Sides: 6, Count: 3, Modifier: 2},
			{Sides: 20, Count: 1},
		},
		Seed: 7,
	})
	if err != nil {
		t.Fatalf("roll: %v", err)
	}
	if len(result.Rolls) != 2 {
		t.Fatalf("expected 2 rolls, got %d", len(result.Rolls))
	}

	wantTotal := 0
	for _, roll := range result.Rolls {
		rollSum := roll.Modifier
		for _, value := range roll.Results {
			if value < 1 || value > roll.Sides {
				t.Fatalf("die result %d out of range for d%d", value, roll.Sides)
			}
			rollSum += value
		}
		if rollSum != roll.Total {
			t.Fatalf("roll total = %d, want %d", roll.Total, rollSum)
		}
		wantTotal += roll.Total
	}
	if result.Total != wantTotal {
		t.Fatalf("result total = %d, want %d", result.Total, wantTotal)
	}
}

func TestRollDiceValidation(t *testing.T) {
	tests := []struct {
		name    string
		request Request
		want    error
	}{
		{"no dice", Request{}, ErrMissingDice},
		{"zero sides", Request{Dice: []Spec{{Sides: 0, Count: 1}}}, ErrInvalidDiceSpec},
		{"zero count", Request{Dice: []Spec{{Sides: 6, Count: 0}}}, ErrInvalidDiceSpec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RollDice(tt.request)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRollInitiativeRange(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		value := RollInitiative(rng, 3)
		if value < 4 || value > 23 {
			t.Fatalf("initiative %d out of range for 1d20+3", value)
		}
	}
}
