// Package grid defines the placement token carried by network components.
// The simulation core never interprets positions; they exist so observers
// can draw pumps and consumers where the layout puts them.
// This package is PURE and must NOT import any infrastructure packages.
package grid

import "fmt"

// Position locates a component on the presentation plane.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String renders the position for log lines.
func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}
