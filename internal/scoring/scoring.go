// Package scoring holds the point policies shared by the review session and
// the quiz game.
package scoring

// Policy awards points for a solved item. attempt is 1-based: the number of
// tries it took, including the successful one.
type Policy interface {
	Points(attempt int) int
}

// Flat awards the same bonus regardless of attempts.
type Flat int

func (f Flat) Points(attempt int) int {
	if attempt < 1 {
		return 0
	}
	return int(f)
}

// LadderPolicy awards steps[attempt-1], or nothing once attempts run past the ladder.
type LadderPolicy struct {
	steps []int
}

// Ladder builds a LadderPolicy, e.g. Ladder(10, 5, 3).
func Ladder(steps ...int) LadderPolicy {
	s := make([]int, len(steps))
	copy(s, steps)
	return LadderPolicy{steps: s}
}

func (l LadderPolicy) Points(attempt int) int {
	if attempt < 1 || attempt > len(l.steps) {
		return 0
	}
	return l.steps[attempt-1]
}

// MaxAttempts is the number of attempts that can still earn points.
func (l LadderPolicy) MaxAttempts() int {
	return len(l.steps)
}
