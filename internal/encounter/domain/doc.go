// Package domain holds the combat encounter state machine: turn advancement,
// combatant invariants (hp clamping, condition de-duplication), and the
// pre-rendered combat log entries.
package domain
