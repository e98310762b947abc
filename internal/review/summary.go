package review

// Tier is the qualitative band of a finished session.
type Tier string

const (
	TierExcellent      Tier = "excellent"
	TierGood           Tier = "good"
	TierKeepPracticing Tier = "keep_practicing"
)

// Thresholds are the minimum scores for the upper tiers.
type Thresholds struct {
	Excellent int `koanf:"excellent" validate:"gte=0,lte=100,gtefield=Good"`
	Good      int `koanf:"good" validate:"gte=0,lte=100"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Excellent: 90, Good: 70}
}

// Summary is the presentable result of a session.
type Summary struct {
	Reviewed     int
	Correct      int
	Score        int
	BestStreak   int
	Points       int
	Tier         Tier
	Message      string
	CallToAction string
}

var tierCopy = map[Tier][2]string{
	TierExcellent:      {"Amazing! You remembered almost everything.", "Review more cards"},
	TierGood:           {"Great job! You're getting there.", "Keep going"},
	TierKeepPracticing: {"Nice effort! Practice makes perfect.", "Try these cards again"},
}

// Summarize maps final counters onto a tier.
func Summarize(st Stats, th Thresholds) Summary {
	score := st.Score()
	tier := TierKeepPracticing
	switch {
	case st.Reviewed > 0 && score >= th.Excellent:
		tier = TierExcellent
	case st.Reviewed > 0 && score >= th.Good:
		tier = TierGood
	}
	text := tierCopy[tier]
	return Summary{
		Reviewed:     st.Reviewed,
		Correct:      st.Correct,
		Score:        score,
		BestStreak:   st.BestStreak,
		Points:       st.Points,
		Tier:         tier,
		Message:      text[0],
		CallToAction: text[1],
	}
}
