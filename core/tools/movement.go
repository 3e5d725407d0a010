package tools

import (
	"fmt"
	"math/rand"

	"github.com/SargassoLLC/anemone/core/types"
)

// Collision map for the 12x12 room. 'X' is blocked, '.' walkable.
var collisionRows = []string{
	"XXXX..XXXXXX",
	"..XX...XX...",
	".......XXXX.",
	"..XX...XX...",
	"..XX...XX...",
	"........XX..",
	"............",
	"..XXXXXX..XX",
	"..XX...X..X.",
	"....XXX...X.",
	"XX...X.....X",
	"X....X......",
}

var blocked = func() map[types.Position]bool {
	m := map[types.Position]bool{}
	for y, row := range collisionRows {
		for x, ch := range row {
			if ch == 'X' {
				m[types.Position{X: x, Y: y}] = true
			}
		}
	}
	return m
}()

func IsBlocked(x, y int) bool {
	return blocked[types.Position{X: x, Y: y}]
}

func IsValidPosition(x, y int) bool {
	return x >= 0 && x < types.RoomCols && y >= 0 && y < types.RoomRows && !IsBlocked(x, y)
}

// HandleMove moves to a named location, returning the tool result.
func HandleMove(position *types.Position, location string) string {
	target, ok := types.RoomLocation(location)
	if !ok {
		return fmt.Sprintf("Unknown location: %s", location)
	}
	*position = target
	return fmt.Sprintf("Moved to %s.", location)
}

// IdleWander takes a random one-tile step if the destination is free.
func IdleWander(position *types.Position) {
	nx := position.X + rand.Intn(3) - 1
	ny := position.Y + rand.Intn(3) - 1
	if IsValidPosition(nx, ny) {
		position.X = nx
		position.Y = ny
	}
}
