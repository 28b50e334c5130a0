package models

// Stage is one round of the knockout bracket.
type Stage string

const (
	StageGroup        Stage = "group"
	StageRound16      Stage = "round16"
	StageQuarterfinal Stage = "quarterfinal"
	StageSemifinal    Stage = "semifinal"
	StageFinal        Stage = "final"
	StageComplete     Stage = "complete"
)

// KnockoutStages lists the playable stages in bracket order.
var KnockoutStages = []Stage{StageRound16, StageQuarterfinal, StageSemifinal, StageFinal}

func (s Stage) IsValid() bool {
	for _, st := range KnockoutStages {
		if s == st {
			return true
		}
	}
	return false
}

// Fixture is a group-stage pairing. Results stay nil until the game is played.
type Fixture struct {
	Player1ID string   `json:"player1_id"`
	Player2ID string   `json:"player2_id"`
	Result1   *float64 `json:"result1,omitempty"`
	Result2   *float64 `json:"result2,omitempty"`
	Round     int      `json:"round"`
}

func (f *Fixture) IsPlayed() bool {
	return f.Result1 != nil && f.Result2 != nil
}

// BracketMatch is a knockout pairing. The names are a display cache kept in
// sync with the players; the ids decide who advances.
type BracketMatch struct {
	Player1Name string   `json:"player1"`
	Player2Name string   `json:"player2"`
	Player1ID   string   `json:"player1_id,omitempty"`
	Player2ID   string   `json:"player2_id,omitempty"`
	Result1     *float64 `json:"result1,omitempty"`
	Result2     *float64 `json:"result2,omitempty"`
	Stage       Stage    `json:"stage"`
	MatchNumber int      `json:"match_number"`
}

func (m *BracketMatch) IsPlayed() bool {
	return m.Result1 != nil && m.Result2 != nil
}

// WinnerID returns the id of the player with the higher result. Unplayed and
// drawn matches have no winner.
func (m *BracketMatch) WinnerID() (string, bool) {
	if !m.IsPlayed() || *m.Result1 == *m.Result2 {
		return "", false
	}
	if *m.Result1 > *m.Result2 {
		return m.Player1ID, true
	}
	return m.Player2ID, true
}

// WinnerName is the display name paired with WinnerID.
func (m *BracketMatch) WinnerName() string {
	id, ok := m.WinnerID()
	if !ok {
		return ""
	}
	if id == m.Player1ID {
		return m.Player1Name
	}
	return m.Player2Name
}
