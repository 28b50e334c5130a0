package brackets

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Dosada05/chess-cup/models"
)

// Options configures a Tournament. Zero values fall back to the defaults.
type Options struct {
	TotalPlayers    int
	MinPlayers      int
	PlayersPerGroup int
	Logger          *slog.Logger
	Generator       FixtureGenerator
}

func (o Options) withDefaults() Options {
	if o.MinPlayers <= 0 {
		o.MinPlayers = DefaultMinPlayers
	}
	if o.PlayersPerGroup <= 0 {
		o.PlayersPerGroup = PlayersPerGroup
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Generator == nil {
		o.Generator = NewRoundRobinGenerator()
	}
	return o
}

// Tournament owns the groups, their fixtures and the knockout bracket of one
// cup. All mutations go through its methods so standings, qualification and
// bracket never drift apart. It is not safe for concurrent use.
type Tournament struct {
	opts   Options
	logger *slog.Logger

	id          string
	name        string
	createdAt   *time.Time
	lastUpdated *time.Time

	totalPlayers  int
	structure     Structure
	groups        []*models.Group
	fixtures      map[string][]*models.Fixture
	bracket       *SingleEliminationBracket
	qualification Qualification
}

// NewTournament builds a fresh cup with generated players and schedule. No
// knockout match exists until the first standings update.
func NewTournament(opts Options) (*Tournament, error) {
	opts = opts.withDefaults()
	t := &Tournament{opts: opts, logger: opts.Logger}
	if err := t.Reset(opts.TotalPlayers); err != nil {
		return nil, err
	}
	return t, nil
}

// FromSnapshot restores a cup. Stored points are trusted as-is; qualification
// is recomputed and the bracket is created or refreshed from it.
func FromSnapshot(snap *models.TournamentSnapshot, opts Options) (*Tournament, error) {
	if snap == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidSnapshot)
	}
	opts = opts.withDefaults()
	if snap.PlayersPerGroup > 0 {
		opts.PlayersPerGroup = snap.PlayersPerGroup
	}

	total := ClampPlayers(snap.TotalPlayers, opts.MinPlayers)
	structure, err := CalculateStructure(total, opts.PlayersPerGroup)
	if err != nil {
		return nil, err
	}

	c := cloneSnapshot(snap)
	t := &Tournament{
		opts:         opts,
		logger:       opts.Logger,
		id:           c.ID,
		name:         c.Name,
		createdAt:    c.CreatedAt,
		lastUpdated:  c.LastUpdated,
		totalPlayers: total,
		structure:    structure,
		fixtures:     make(map[string][]*models.Fixture, len(c.Groups)),
	}

	for _, name := range c.GroupNames() {
		players := c.Groups[name]
		if len(players) != opts.PlayersPerGroup {
			return nil, fmt.Errorf("%w: group %s has %d players, expected %d",
				ErrInvalidSnapshot, name, len(players), opts.PlayersPerGroup)
		}
		fixtures := c.Fixtures[name]
		if len(fixtures) == 0 {
			if fixtures, err = opts.Generator.GenerateFixtures(players); err != nil {
				return nil, fmt.Errorf("%w: group %s: %v", ErrInvalidSnapshot, name, err)
			}
		}
		t.groups = append(t.groups, &models.Group{Name: name, Players: players})
		t.fixtures[name] = fixtures
	}
	if len(t.groups) == 0 {
		return nil, fmt.Errorf("%w: no groups", ErrInvalidSnapshot)
	}
	if len(t.groups) != structure.NumGroups {
		return nil, fmt.Errorf("%w: %d groups stored, %d players need %d",
			ErrInvalidSnapshot, len(t.groups), total, structure.NumGroups)
	}

	t.bracket = NewSingleEliminationBracket(c.Bracket, t.logger)
	t.updateKnockouts()
	return t, nil
}

// Reset rebuilds the cup for a new player count. Results, tiebreaks, names
// and knockout matches are discarded; id and name are kept.
func (t *Tournament) Reset(totalPlayers int) error {
	total := ClampPlayers(totalPlayers, t.opts.MinPlayers)
	structure, err := CalculateStructure(total, t.opts.PlayersPerGroup)
	if err != nil {
		return err
	}

	groups := make([]*models.Group, 0, structure.NumGroups)
	fixtures := make(map[string][]*models.Fixture, structure.NumGroups)
	for i := 0; i < structure.NumGroups; i++ {
		g := &models.Group{Name: GroupName(i), Players: make([]*models.Player, 0, t.opts.PlayersPerGroup)}
		for seat := 1; seat <= t.opts.PlayersPerGroup; seat++ {
			id := fmt.Sprintf("%s%d", g.Name, seat)
			g.Players = append(g.Players, &models.Player{ID: id, Name: id})
		}
		gf, err := t.opts.Generator.GenerateFixtures(g.Players)
		if err != nil {
			return fmt.Errorf("generating fixtures for group %s with %s: %w", g.Name, t.opts.Generator.GetName(), err)
		}
		groups = append(groups, g)
		fixtures[g.Name] = gf
	}

	t.totalPlayers = total
	t.structure = structure
	t.groups = groups
	t.fixtures = fixtures
	t.bracket = NewSingleEliminationBracket(nil, t.logger)
	t.qualification = Qualification{}

	t.logger.Info("tournament structure built",
		slog.Int("total_players", total),
		slog.Int("groups", structure.NumGroups),
		slog.Int("qualified_per_group", structure.QualifiedPerGroup),
		slog.Int("wildcards", structure.NumWildcards))
	return nil
}

func (t *Tournament) ID() string   { return t.id }
func (t *Tournament) Name() string { return t.name }

func (t *Tournament) SetID(id string)     { t.id = id }
func (t *Tournament) SetName(name string) { t.name = name }

// Touch records a save time, setting the creation time on first save.
func (t *Tournament) Touch(now time.Time) {
	if t.createdAt == nil {
		created := now
		t.createdAt = &created
	}
	updated := now
	t.lastUpdated = &updated
}

func (t *Tournament) TotalPlayers() int    { return t.totalPlayers }
func (t *Tournament) Structure() Structure { return t.structure }

// Groups returns the groups in alphabetical order.
func (t *Tournament) Groups() []*models.Group {
	return t.groups
}

func (t *Tournament) group(name string) (*models.Group, error) {
	for _, g := range t.groups {
		if g.Name == name {
			return g, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrGroupNotFound, name)
}

func (t *Tournament) Fixtures(group string) ([]*models.Fixture, error) {
	if _, err := t.group(group); err != nil {
		return nil, err
	}
	return t.fixtures[group], nil
}

func (t *Tournament) Bracket() []*models.BracketMatch {
	return t.bracket.Matches()
}

func (t *Tournament) Qualification() Qualification {
	return t.qualification
}

// Standings ranks one group and tags every player with its qualification
// status.
func (t *Tournament) Standings(group string) ([]models.TournamentStanding, error) {
	g, err := t.group(group)
	if err != nil {
		return nil, err
	}
	ranked := RankPlayers(g.Players)
	rows := make([]models.TournamentStanding, 0, len(ranked))
	for i, p := range ranked {
		rows = append(rows, models.TournamentStanding{
			Rank:   i + 1,
			Player: p,
			Status: t.qualification.StatusOf(p.ID),
		})
	}
	return rows, nil
}

func (t *Tournament) player(id string) *models.Player {
	for _, g := range t.groups {
		if p := g.Player(id); p != nil {
			return p
		}
	}
	return nil
}

func (t *Tournament) fixture(group string, index int) (*models.Fixture, error) {
	fixtures, err := t.Fixtures(group)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(fixtures) {
		return nil, fmt.Errorf("%w: group %s index %d", ErrFixtureNotFound, group, index)
	}
	return fixtures[index], nil
}

// RecordResult stores a group result. Values other than 0, 0.5 and 1 are
// stored as 0.
func (t *Tournament) RecordResult(group string, index int, result1, result2 float64) error {
	f, err := t.fixture(group, index)
	if err != nil {
		return err
	}
	r1, r2 := ValidateResult(result1), ValidateResult(result2)
	f.Result1, f.Result2 = &r1, &r2
	t.updateKnockouts()
	return nil
}

// ClearResult marks a group fixture as unplayed again.
func (t *Tournament) ClearResult(group string, index int) error {
	f, err := t.fixture(group, index)
	if err != nil {
		return err
	}
	f.Result1, f.Result2 = nil, nil
	t.updateKnockouts()
	return nil
}

func (t *Tournament) SetTiebreak(playerID string, points float64) error {
	p := t.player(playerID)
	if p == nil {
		return fmt.Errorf("%w: %q", ErrPlayerNotFound, playerID)
	}
	p.TiebreakPoints = points
	t.updateKnockouts()
	return nil
}

// RenamePlayer changes a display name. The id stays, so fixtures and knockout
// matches keep pointing at the same player.
func (t *Tournament) RenamePlayer(playerID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}
	p := t.player(playerID)
	if p == nil {
		return fmt.Errorf("%w: %q", ErrPlayerNotFound, playerID)
	}
	p.Name = name
	t.bracket.SyncNames(t.player)
	return nil
}

// RecordKnockoutResult stores a knockout result and advances the stage when
// it is finished.
func (t *Tournament) RecordKnockoutResult(stage models.Stage, matchNumber int, result1, result2 float64) error {
	if err := t.bracket.RecordResult(stage, matchNumber, result1, result2); err != nil {
		return err
	}
	t.bracket.tryAdvance(stage)
	return nil
}

// AdvanceStage creates the stage after stage from its winners. It reports
// false and changes nothing when stage is unfinished or already advanced.
func (t *Tournament) AdvanceStage(stage models.Stage) (bool, error) {
	if !stage.IsValid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownStage, stage)
	}
	return t.bracket.Advance(stage), nil
}

// Champion returns the winner of the final, if it has been played.
func (t *Tournament) Champion() (*models.Player, bool) {
	id, name, ok := t.bracket.Champion()
	if !ok {
		return nil, false
	}
	if p := t.player(id); p != nil {
		return p, true
	}
	return &models.Player{ID: id, Name: name}, true
}

// Stage is the latest knockout stage that exists, group before the bracket is
// seeded and complete once a champion is known.
func (t *Tournament) Stage() models.Stage {
	return t.bracket.CurrentStage()
}

// updateKnockouts recomputes every group, reselects qualifiers and seeds or
// refreshes the round of 16. An incomplete entrant list leaves the bracket
// as it is.
func (t *Tournament) updateKnockouts() {
	for _, g := range t.groups {
		RecomputeStandings(g.Players, t.fixtures[g.Name])
	}
	t.qualification = SelectQualifiers(t.groups, t.structure.QualifiedPerGroup, t.structure.NumWildcards)
	if !t.qualification.Complete() {
		t.logger.Warn("bracket not updated: qualifier list is incomplete",
			slog.Int("entrants", len(t.qualification.Entrants)),
			slog.Int("expected", BracketSize))
	} else {
		t.bracket.Update(t.qualification.Entrants)
	}
	t.bracket.SyncNames(t.player)
}

// Snapshot returns a deep copy of the current state.
func (t *Tournament) Snapshot() *models.TournamentSnapshot {
	snap := &models.TournamentSnapshot{
		ID:              t.id,
		Name:            t.name,
		TotalPlayers:    t.totalPlayers,
		PlayersPerGroup: t.opts.PlayersPerGroup,
		Groups:          make(map[string][]*models.Player, len(t.groups)),
		Fixtures:        make(map[string][]*models.Fixture, len(t.groups)),
		Bracket:         t.bracket.Matches(),
		CreatedAt:       t.createdAt,
		LastUpdated:     t.lastUpdated,
	}
	for _, g := range t.groups {
		snap.Groups[g.Name] = g.Players
		snap.Fixtures[g.Name] = t.fixtures[g.Name]
	}
	return cloneSnapshot(snap)
}

func cloneSnapshot(s *models.TournamentSnapshot) *models.TournamentSnapshot {
	out := &models.TournamentSnapshot{
		ID:              s.ID,
		Name:            s.Name,
		TotalPlayers:    s.TotalPlayers,
		PlayersPerGroup: s.PlayersPerGroup,
		Groups:          make(map[string][]*models.Player, len(s.Groups)),
		Fixtures:        make(map[string][]*models.Fixture, len(s.Fixtures)),
		Bracket:         make([]*models.BracketMatch, 0, len(s.Bracket)),
		CreatedAt:       cloneTime(s.CreatedAt),
		LastUpdated:     cloneTime(s.LastUpdated),
	}
	for name, players := range s.Groups {
		cp := make([]*models.Player, 0, len(players))
		for _, p := range players {
			v := *p
			cp = append(cp, &v)
		}
		out.Groups[name] = cp
	}
	for name, fixtures := range s.Fixtures {
		cf := make([]*models.Fixture, 0, len(fixtures))
		for _, f := range fixtures {
			v := *f
			v.Result1, v.Result2 = cloneFloat(f.Result1), cloneFloat(f.Result2)
			cf = append(cf, &v)
		}
		out.Fixtures[name] = cf
	}
	for _, m := range s.Bracket {
		v := *m
		v.Result1, v.Result2 = cloneFloat(m.Result1), cloneFloat(m.Result2)
		out.Bracket = append(out.Bracket, &v)
	}
	sort.SliceStable(out.Bracket, func(i, j int) bool {
		a, b := out.Bracket[i], out.Bracket[j]
		if stageOrder(a.Stage) != stageOrder(b.Stage) {
			return stageOrder(a.Stage) < stageOrder(b.Stage)
		}
		return a.MatchNumber < b.MatchNumber
	})
	return out
}

func stageOrder(s models.Stage) int {
	for i, st := range models.KnockoutStages {
		if s == st {
			return i
		}
	}
	return len(models.KnockoutStages)
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
