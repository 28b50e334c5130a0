package brackets

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Dosada05/chess-cup/models"
)

const round16Matches = BracketSize / 2

// nextStages maps a stage to the stage its winners feed and the number of
// winners that stage must produce.
var nextStages = map[models.Stage]struct {
	next  models.Stage
	width int
}{
	models.StageRound16:      {next: models.StageQuarterfinal, width: 8},
	models.StageQuarterfinal: {next: models.StageSemifinal, width: 4},
	models.StageSemifinal:    {next: models.StageFinal, width: 2},
}

type entrant struct {
	id   string
	name string
}

// SeedRound16 pairs the ordered qualifier list as seed 1 vs 16, 2 vs 15 and
// so on down to 8 vs 9.
func SeedRound16(entrants []*models.Player) ([]*models.BracketMatch, error) {
	if len(entrants) != BracketSize {
		return nil, fmt.Errorf("cannot seed round of 16 with %d entrants", len(entrants))
	}
	matches := make([]*models.BracketMatch, 0, round16Matches)
	for i := 0; i < round16Matches; i++ {
		m := &models.BracketMatch{Stage: models.StageRound16, MatchNumber: i + 1}
		seatPlayers(m, entrant{entrants[i].ID, entrants[i].Name}, entrant{entrants[BracketSize-1-i].ID, entrants[BracketSize-1-i].Name})
		matches = append(matches, m)
	}
	return matches, nil
}

func seatPlayers(m *models.BracketMatch, p1, p2 entrant) {
	m.Player1ID, m.Player1Name = p1.id, p1.name
	m.Player2ID, m.Player2Name = p2.id, p2.name
}

// SingleEliminationBracket owns the knockout matches of one cup. Matches of a
// stage are created once and never recreated; stages only move forward.
type SingleEliminationBracket struct {
	matches []*models.BracketMatch
	logger  *slog.Logger
}

func NewSingleEliminationBracket(matches []*models.BracketMatch, logger *slog.Logger) *SingleEliminationBracket {
	if logger == nil {
		logger = slog.Default()
	}
	return &SingleEliminationBracket{matches: matches, logger: logger}
}

func (b *SingleEliminationBracket) Matches() []*models.BracketMatch {
	return b.matches
}

// StageMatches returns the matches of a stage ordered by match number, so
// seeding and advancement never depend on how stored rows were ordered.
func (b *SingleEliminationBracket) StageMatches(stage models.Stage) []*models.BracketMatch {
	out := make([]*models.BracketMatch, 0, round16Matches)
	for _, m := range b.matches {
		if m.Stage == stage {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MatchNumber < out[j].MatchNumber })
	return out
}

// Update seeds the round of 16 the first time a full entrant list is
// available and re-seeds it in place on later calls.
func (b *SingleEliminationBracket) Update(entrants []*models.Player) {
	if len(entrants) != BracketSize {
		b.logger.Warn("knockout update skipped: entrant count is not the bracket size",
			slog.Int("entrants", len(entrants)), slog.Int("expected", BracketSize))
		return
	}
	if len(b.matches) == 0 {
		matches, err := SeedRound16(entrants)
		if err != nil {
			b.logger.Warn("knockout seeding skipped", slog.Any("error", err))
			return
		}
		b.matches = matches
		b.logger.Info("round of 16 created", slog.Int("matches", len(matches)))
		return
	}
	b.Refresh(entrants)
}

// Refresh re-runs the seeding formula over the existing round of 16 slots.
// Match numbers and recorded results stay where they are. It only applies
// while exactly 8 round of 16 matches exist.
func (b *SingleEliminationBracket) Refresh(entrants []*models.Player) bool {
	current := b.StageMatches(models.StageRound16)
	if len(current) != round16Matches {
		b.logger.Warn("round of 16 refresh skipped: unexpected match count",
			slog.Int("matches", len(current)), slog.Int("expected", round16Matches))
		return false
	}
	if len(entrants) != BracketSize {
		b.logger.Warn("round of 16 refresh skipped: entrant count is not the bracket size",
			slog.Int("entrants", len(entrants)))
		return false
	}
	for i, m := range current {
		top, bottom := entrants[i], entrants[BracketSize-1-i]
		seatPlayers(m, entrant{top.ID, top.Name}, entrant{bottom.ID, bottom.Name})
	}
	return true
}

// Match finds a match by stage and 1-based match number.
func (b *SingleEliminationBracket) Match(stage models.Stage, matchNumber int) (*models.BracketMatch, error) {
	if !stage.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	for _, m := range b.matches {
		if m.Stage == stage && m.MatchNumber == matchNumber {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: %s match %d", ErrMatchNotFound, stage, matchNumber)
}

// RecordResult stores a knockout result. Values outside 0, 0.5 and 1 become 0
// and equal results are refused since a knockout game needs a winner.
func (b *SingleEliminationBracket) RecordResult(stage models.Stage, matchNumber int, result1, result2 float64) error {
	m, err := b.Match(stage, matchNumber)
	if err != nil {
		return err
	}
	r1, r2 := ValidateResult(result1), ValidateResult(result2)
	if r1 == r2 {
		return fmt.Errorf("%w: %s match %d (%v-%v)", ErrKnockoutDraw, stage, matchNumber, r1, r2)
	}
	m.Result1, m.Result2 = &r1, &r2
	return nil
}

// Advance creates the next stage from the winners of stage once every match
// of stage has a winner. It does nothing if the next stage already exists or
// stage is the final.
func (b *SingleEliminationBracket) Advance(stage models.Stage) bool {
	return b.advance(stage, slog.LevelWarn)
}

// tryAdvance is Advance for callers where "not ready yet" is the normal case.
func (b *SingleEliminationBracket) tryAdvance(stage models.Stage) bool {
	return b.advance(stage, slog.LevelDebug)
}

func (b *SingleEliminationBracket) advance(stage models.Stage, level slog.Level) bool {
	step, ok := nextStages[stage]
	if !ok {
		b.logger.Log(context.Background(), level, "advance skipped: stage has no successor", slog.String("stage", string(stage)))
		return false
	}

	current := b.StageMatches(stage)
	winners := make([]entrant, 0, len(current))
	for _, m := range current {
		id, ok := m.WinnerID()
		if !ok {
			continue
		}
		winners = append(winners, entrant{id: id, name: m.WinnerName()})
	}
	if len(current) != step.width || len(winners) != step.width {
		b.logger.Log(context.Background(), level, "advance skipped: stage is not finished",
			slog.String("stage", string(stage)),
			slog.Int("matches", len(current)),
			slog.Int("winners", len(winners)),
			slog.Int("expected", step.width))
		return false
	}

	if existing := b.StageMatches(step.next); len(existing) > 0 {
		if !sameEntrants(existing, winners) {
			b.logger.Warn("winners changed after next stage was created; bracket left unchanged",
				slog.String("stage", string(stage)), slog.String("next", string(step.next)))
		}
		return false
	}

	for i := 0; i < step.width/2; i++ {
		m := &models.BracketMatch{Stage: step.next, MatchNumber: i + 1}
		seatPlayers(m, winners[i], winners[step.width-1-i])
		b.matches = append(b.matches, m)
	}
	b.logger.Info("knockout stage created",
		slog.String("stage", string(step.next)), slog.Int("matches", step.width/2))
	return true
}

func sameEntrants(matches []*models.BracketMatch, winners []entrant) bool {
	seated := make(map[string]bool, len(matches)*2)
	for _, m := range matches {
		seated[m.Player1ID] = true
		seated[m.Player2ID] = true
	}
	for _, w := range winners {
		if !seated[w.id] {
			return false
		}
	}
	return true
}

// SyncNames refreshes the display names of every match from the current
// player records. Ids are never touched.
func (b *SingleEliminationBracket) SyncNames(lookup func(id string) *models.Player) {
	for _, m := range b.matches {
		if m.Player1ID != "" {
			if p := lookup(m.Player1ID); p != nil {
				m.Player1Name = p.Name
			}
		}
		if m.Player2ID != "" {
			if p := lookup(m.Player2ID); p != nil {
				m.Player2Name = p.Name
			}
		}
	}
}

// Champion returns the winner of the final once it has been played.
func (b *SingleEliminationBracket) Champion() (id, name string, ok bool) {
	for _, m := range b.matches {
		if m.Stage != models.StageFinal {
			continue
		}
		if id, ok = m.WinnerID(); ok {
			return id, m.WinnerName(), true
		}
	}
	return "", "", false
}

// CurrentStage is the latest stage that exists, complete once the final has a
// winner, and group while no knockout match exists.
func (b *SingleEliminationBracket) CurrentStage() models.Stage {
	if _, _, ok := b.Champion(); ok {
		return models.StageComplete
	}
	stage := models.StageGroup
	for _, s := range models.KnockoutStages {
		if len(b.StageMatches(s)) > 0 {
			stage = s
		}
	}
	return stage
}
