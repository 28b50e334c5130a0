package models

// QualificationStatus says how a player stands relative to the knockout bracket.
type QualificationStatus string

const (
	QualifiedDirect   QualificationStatus = "direct"
	QualifiedWildcard QualificationStatus = "wildcard"
	NotQualified      QualificationStatus = "eliminated"
)

// TournamentStanding is one row of a ranked group table. Rank is derived on
// read and never stored on the Player.
type TournamentStanding struct {
	Rank   int                 `json:"rank"`
	Player *Player             `json:"player"`
	Status QualificationStatus `json:"status"`
}
