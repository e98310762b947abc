package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLadder(t *testing.T) {
	l := Ladder(10, 5, 3)
	testCases := []struct {
		attempt  int
		expected int
	}{
		{0, 0},
		{1, 10},
		{2, 5},
		{3, 3},
		{4, 0},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, l.Points(tc.attempt), "attempt %d", tc.attempt)
	}
	assert.Equal(t, 3, l.MaxAttempts())
}

func TestFlat(t *testing.T) {
	f := Flat(10)
	assert.Equal(t, 10, f.Points(1))
	assert.Equal(t, 10, f.Points(3))
	assert.Equal(t, 0, f.Points(0))
}
