// Package game holds the house-building rules shared by the handlers: which
// parts are valid, when a house repeats an earlier one, and when a child has
// built every combination.
package game

import (
	"fmt"

	"atelier-server-go/models"
)

const (
	ShapeSquare   = "square"
	ShapeTriangle = "triangle"
)

// Colors available in the palette
var Colors = []string{"red", "blue", "yellow"}

// TotalCombos is the number of distinct body|roof color pairs
var TotalCombos = len(Colors) * len(Colors)

// ComboKey identifies a house by its colors only
func ComboKey(h models.House) string {
	return h.Body.Color + "|" + h.Roof.Color
}

// IsDuplicate reports whether history already holds a house with the same
// body and roof colors. Part ids and positions are ignored.
func IsDuplicate(history []models.House, h models.House) bool {
	for _, prev := range history {
		if prev.Body.Color == h.Body.Color && prev.Roof.Color == h.Roof.Color {
			return true
		}
	}
	return false
}

// UniqueCombos counts distinct combos in history
func UniqueCombos(history []models.House) int {
	seen := make(map[string]struct{}, len(history))
	for _, h := range history {
		seen[ComboKey(h)] = struct{}{}
	}
	return len(seen)
}

// IsComplete is true once every combination has been built
func IsComplete(history []models.House) bool {
	return UniqueCombos(history) >= TotalCombos
}

// ValidateHouse checks shapes and colors of both parts
func ValidateHouse(h models.House) error {
	if h.Body.Type != ShapeSquare {
		return fmt.Errorf("body must be a %s, got %q", ShapeSquare, h.Body.Type)
	}
	if h.Roof.Type != ShapeTriangle {
		return fmt.Errorf("roof must be a %s, got %q", ShapeTriangle, h.Roof.Type)
	}
	if !knownColor(h.Body.Color) {
		return fmt.Errorf("unknown body color %q", h.Body.Color)
	}
	if !knownColor(h.Roof.Color) {
		return fmt.Errorf("unknown roof color %q", h.Roof.Color)
	}
	return nil
}

func knownColor(c string) bool {
	for _, k := range Colors {
		if k == c {
			return true
		}
	}
	return false
}

// AppendOutcome is the result of trying to add a house to a history
type AppendOutcome struct {
	History   []models.House
	Duplicate bool
	// Complete becomes true on the append that reaches TotalCombos
	Complete bool
}

// Append returns history with h added, unless h repeats an existing combo.
// The input slice is not modified.
func Append(history []models.House, h models.House) AppendOutcome {
	if IsDuplicate(history, h) {
		return AppendOutcome{History: history, Duplicate: true, Complete: IsComplete(history)}
	}
	next := make([]models.House, len(history), len(history)+1)
	copy(next, history)
	next = append(next, h)
	return AppendOutcome{History: next, Complete: IsComplete(next)}
}
