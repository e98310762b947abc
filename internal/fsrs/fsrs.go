// Package fsrs is the simplified FSRS scheduler used by the local deck.
package fsrs

import (
	"math"
	"time"

	"github.com/conorfennell/flipdeck/internal/domain"
)

// Params holds the parameters for the FSRS algorithm.
type Params struct {
	A                float64 // scales the overall memory increase
	B                float64 // difficulty exponent
	C                float64 // stability exponent
	D                float64 // retention effect scaler
	DesiredRetention float64 // e.g. 0.9 for 90%
	HardFactor       float64 // growth multiplier for Hard
	EasyBonus        float64 // growth multiplier for Easy
	RelearnDelay     time.Duration
}

func DefaultParams() *Params {
	return &Params{
		A:                0.2,
		B:                0.5,
		C:                0.1,
		D:                4.0,
		DesiredRetention: 0.9,
		HardFactor:       0.8,
		EasyBonus:        1.3,
		RelearnDelay:     10 * time.Minute,
	}
}

// initialStability is the stability in days after the first review of a new card.
var initialStability = map[domain.Rating]float64{
	domain.Hard: 1,
	domain.Good: 2,
	domain.Easy: 4,
}

const initialDifficulty = 5.0

// CardState holds the memory state of a card for one learner.
type CardState struct {
	Stability  float64
	Difficulty float64
	Reps       int
	Lapses     int
	LastReview time.Time
	Due        time.Time
}

// IsNew reports whether the card has never been reviewed.
func (s CardState) IsNew() bool {
	return s.Reps == 0
}

// Next calculates the state after a review at now.
func (p *Params) Next(cur CardState, rating domain.Rating, now time.Time) CardState {
	next := CardState{
		Difficulty: cur.Difficulty,
		Reps:       cur.Reps + 1,
		Lapses:     cur.Lapses,
		LastReview: now,
	}
	if cur.IsNew() {
		next.Difficulty = initialDifficulty
	}

	switch {
	case rating == domain.Again:
		// Forgotten: stability resets, difficulty grows, the card comes back soon.
		next.Stability = 1
		next.Difficulty = math.Min(10, next.Difficulty+0.5)
		if !cur.IsNew() {
			next.Lapses++
		}
		next.Due = now.Add(p.RelearnDelay)
		return next
	case cur.IsNew():
		next.Stability = initialStability[rating]
	default:
		next.Stability = p.grow(cur.Stability, next.Difficulty, rating)
	}

	switch rating {
	case domain.Hard:
		next.Difficulty = math.Min(10, next.Difficulty+0.1)
	case domain.Easy:
		next.Difficulty = math.Max(1, next.Difficulty-0.15)
	}
	next.Due = DueDate(now, next.Stability)
	return next
}

// grow applies the core FSRS formula for a successful review:
// S' = S * (1 + a * D^(-b) * S^c * (e^(d * (1-R)) - 1))
func (p *Params) grow(stability, difficulty float64, rating domain.Rating) float64 {
	stability = math.Max(1, stability)
	difficulty = math.Max(1, difficulty)

	factor := p.A * math.Pow(difficulty, -p.B) * math.Pow(stability, p.C)
	multiplier := math.Exp(p.D*(1-p.DesiredRetention)) - 1
	increase := factor * multiplier

	switch rating {
	case domain.Hard:
		increase *= p.HardFactor
	case domain.Easy:
		increase *= p.EasyBonus
	}
	return stability * (1 + increase)
}

// DueDate schedules the next review round(stability) days after now.
func DueDate(now time.Time, stability float64) time.Time {
	days := time.Duration(math.Round(stability))
	return now.Add(days * 24 * time.Hour)
}
