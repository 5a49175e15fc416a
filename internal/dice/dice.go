// Package dice implements deterministic seeded dice rolling.
package dice

import (
	"math/rand"

	apperrors "github.com/louisbranch/wyrmtable/internal/platform/errors"
)

var (
	// ErrMissingDice indicates a roll request had no dice specified.
	ErrMissingDice = apperrors.New(apperrors.CodeDiceMissing, "at least one die must be provided")
	// ErrInvalidDiceSpec indicates a die specification has invalid fields.
	ErrInvalidDiceSpec = apperrors.New(apperrors.CodeDiceInvalidSpec, "dice must have positive sides and count")
)

// Spec describes a set of identical dice to roll.
type Spec struct {
	Sides    int
	Count    int
	Modifier int
}

// Roll holds the individual results for one dice specification.
type Roll struct {
	Sides    int
	Results  []int
	Modifier int
	Total    int
}

// Request describes a full dice roll.
type Request struct {
	Dice []Spec
	Seed int64
}

// Result holds the outcome of a dice roll.
type Result struct {
	Rolls []Roll
	Total int
}

// RollDice rolls dice based on the provided request.
//
// RollDice is deterministic with respect to the Seed field on Request: given
// the same Seed and the same Dice slice (including order and values), it
// always produces the same Result. Dice specs are processed in slice order
// and the resulting Roll entries appear in the same order.
//
// Each Roll.Total is the sum of its die results plus the spec modifier;
// Result.Total sums every Roll.Total in the request.
func RollDice(request Request) (Result, error) {
	if len(request.Dice) == 0 {
		return Result{}, ErrMissingDice
	}
	rng := rand.New(rand.NewSource(request.Seed))
	return RollWithRng(rng, request.Dice)
}

// RollWithRng rolls dice using a provided random source.
// This is useful when the caller wants to control the RNG directly.
func RollWithRng(rng *rand.Rand, specs []Spec) (Result, error) {
	if len(specs) == 0 {
		return Result{}, ErrMissingDice
	}

	rolls := make([]Roll, 0, len(specs))
	total := 0

	for _, spec := range specs {
		if spec.Sides <= 0 || spec.Count <= 0 {
			return Result{}, ErrInvalidDiceSpec
		}

		results := make([]int, spec.Count)
		rollTotal := spec.Modifier
		for i := 0; i < spec.Count; i++ {
			value := rollDie(rng, spec.Sides)
			results[i] = value
			rollTotal += value
		}

		rolls = append(rolls, Roll{
			Sides:    spec.Sides,
			Results:  results,
			Modifier: spec.Modifier,
			Total:    rollTotal,
		})
		total += rollTotal
	}

	return Result{
		Rolls: rolls,
		Total: total,
	}, nil
}

// RollInitiative rolls 1d20 plus the provided dexterity modifier.
func RollInitiative(rng *rand.Rand, dexModifier int) int {
	return rollDie(rng, 20) + dexModifier
}

// rollDie rolls a single die with the provided number of sides.
func rollDie(rng *rand.Rand, sides int) int {
	return rng.Intn(sides) + 1
}
