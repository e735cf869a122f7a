package chess

import (
	"fmt"
	"time"

	"github.com/park285/chess-web/internal/chess/uci"
)

const DefaultMoveTime = 500 * time.Millisecond

// SearchBudget bounds a single engine reply.
type SearchBudget struct {
	MoveTime time.Duration
	Depth    int
}

func DefaultBudget() SearchBudget {
	return SearchBudget{MoveTime: DefaultMoveTime}
}

func ValidateBudget(b SearchBudget) error {
	if b.MoveTime < 0 {
		return fmt.Errorf("move time must be >= 0: %s", b.MoveTime)
	}
	if b.Depth < 0 {
		return fmt.Errorf("depth must be >= 0: %d", b.Depth)
	}
	if b.MoveTime == 0 && b.Depth == 0 {
		return fmt.Errorf("budget defines no search limit")
	}
	return nil
}

func limitsFromBudget(b SearchBudget) uci.Limits {
	return uci.Limits{
		Depth:          b.Depth,
		MoveTimeMillis: int(b.MoveTime / time.Millisecond),
	}
}
