package services

import (
	"time"

	"github.com/Dosada05/chess-cup/brackets"
	"github.com/Dosada05/chess-cup/models"
)

// TournamentState is the read model sent to HTTP and websocket clients. It is
// built from copies so it can be encoded after the service lock is released.
type TournamentState struct {
	ID            string                 `json:"id,omitempty"`
	Name          string                 `json:"name,omitempty"`
	TotalPlayers  int                    `json:"total_players"`
	Structure     brackets.Structure     `json:"structure"`
	Stage         models.Stage           `json:"stage"`
	Autosave      bool                   `json:"autosave"`
	Groups        []GroupView            `json:"groups"`
	Qualification QualificationView      `json:"qualification"`
	Bracket       []*models.BracketMatch `json:"bracket"`
	Champion      *models.Player         `json:"champion,omitempty"`
	CreatedAt     *time.Time             `json:"created_at,omitempty"`
	LastUpdated   *time.Time             `json:"last_updated,omitempty"`
}

type GroupView struct {
	Name      string                      `json:"name"`
	Standings []models.TournamentStanding `json:"standings"`
	Rounds    []RoundView                 `json:"rounds"`
}

type RoundView struct {
	Round    int           `json:"round"`
	Fixtures []FixtureView `json:"fixtures"`
}

// FixtureView carries the index used to address the fixture in result
// requests along with the players' current names.
type FixtureView struct {
	Index       int      `json:"index"`
	Player1ID   string   `json:"player1_id"`
	Player1Name string   `json:"player1"`
	Player2ID   string   `json:"player2_id"`
	Player2Name string   `json:"player2"`
	Result1     *float64 `json:"result1,omitempty"`
	Result2     *float64 `json:"result2,omitempty"`
}

type QualificationView struct {
	Direct    []models.Player `json:"direct"`
	BestThird []models.Player `json:"best_third"`
	Wildcards []models.Player `json:"wildcards"`
	Complete  bool            `json:"complete"`
}

func copyPlayers(players []*models.Player) []models.Player {
	out := make([]models.Player, 0, len(players))
	for _, p := range players {
		out = append(out, *p)
	}
	return out
}

func copyResult(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func buildTournamentState(t *brackets.Tournament, autosave bool) *TournamentState {
	snap := t.Snapshot()
	q := t.Qualification()

	state := &TournamentState{
		ID:           snap.ID,
		Name:         snap.Name,
		TotalPlayers: snap.TotalPlayers,
		Structure:    t.Structure(),
		Stage:        t.Stage(),
		Autosave:     autosave,
		Groups:       make([]GroupView, 0, len(snap.Groups)),
		Qualification: QualificationView{
			Direct:    copyPlayers(q.Direct),
			BestThird: copyPlayers(q.BestThird),
			Wildcards: copyPlayers(q.Wildcards),
			Complete:  q.Complete(),
		},
		Bracket:     snap.Bracket,
		CreatedAt:   snap.CreatedAt,
		LastUpdated: snap.LastUpdated,
	}
	if champ, ok := t.Champion(); ok {
		c := *champ
		state.Champion = &c
	}

	for _, g := range t.Groups() {
		standings, _ := t.Standings(g.Name)
		rows := make([]models.TournamentStanding, 0, len(standings))
		for _, row := range standings {
			p := *row.Player
			row.Player = &p
			rows = append(rows, row)
		}

		names := make(map[string]string, len(g.Players))
		for _, p := range g.Players {
			names[p.ID] = p.Name
		}
		fixtures, _ := t.Fixtures(g.Name)
		rounds := make([]RoundView, 0, brackets.GroupRounds)
		for r := 1; r <= brackets.GroupRounds; r++ {
			rounds = append(rounds, RoundView{Round: r, Fixtures: []FixtureView{}})
		}
		for i, f := range fixtures {
			if f.Round < 1 || f.Round > len(rounds) {
				continue
			}
			rounds[f.Round-1].Fixtures = append(rounds[f.Round-1].Fixtures, FixtureView{
				Index:       i,
				Player1ID:   f.Player1ID,
				Player1Name: names[f.Player1ID],
				Player2ID:   f.Player2ID,
				Player2Name: names[f.Player2ID],
				Result1:     copyResult(f.Result1),
				Result2:     copyResult(f.Result2),
			})
		}

		state.Groups = append(state.Groups, GroupView{Name: g.Name, Standings: rows, Rounds: rounds})
	}
	return state
}
