package tools

import (
	"testing"

	"github.com/SargassoLLC/anemone/core/types"
)

func TestBlockedTiles(t *testing.T) {
	if !IsBlocked(0, 0) || !IsBlocked(3, 0) {
		t.Error("row 0 corners should be blocked")
	}
	if IsBlocked(4, 0) || IsBlocked(5, 0) {
		t.Error("row 0 gap should be walkable")
	}
	for x := 0; x < types.RoomCols; x++ {
		if IsBlocked(x, 6) {
			t.Errorf("row 6 tile %d should be walkable", x)
		}
	}
}

func TestIsValidPosition(t *testing.T) {
	if !IsValidPosition(5, 5) {
		t.Error("center should be valid")
	}
	for _, p := range []types.Position{{X: -1, Y: 0}, {X: 12, Y: 0}, {X: 0, Y: -1}, {X: 0, Y: 12}} {
		if IsValidPosition(p.X, p.Y) {
			t.Errorf("out of bounds %v should be invalid", p)
		}
	}
	if IsValidPosition(0, 0) {
		t.Error("blocked tile should be invalid")
	}
}

func TestHandleMove(t *testing.T) {
	pos := types.Position{X: 5, Y: 5}
	result := HandleMove(&pos, "desk")
	if pos.X != 10 || pos.Y != 1 {
		t.Errorf("position = %v", pos)
	}
	if result != "Moved to desk." {
		t.Errorf("result = %q", result)
	}
}

func TestHandleMoveUnknownLocation(t *testing.T) {
	pos := types.Position{X: 5, Y: 5}
	result := HandleMove(&pos, "bathroom")
	if result != "Unknown location: bathroom" {
		t.Errorf("result = %q", result)
	}
	if pos.X != 5 || pos.Y != 5 {
		t.Errorf("position moved: %v", pos)
	}
}

func TestIdleWanderStaysValid(t *testing.T) {
	pos := types.Position{X: 5, Y: 5}
	for i := 0; i < 200; i++ {
		IdleWander(&pos)
		if !IsValidPosition(pos.X, pos.Y) {
			t.Fatalf("wandered to invalid tile %v", pos)
		}
	}
}
