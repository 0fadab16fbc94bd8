package game

import "time"

// DiscID identifies a disc within a match. Player 1 owns 0..n-1, player 2
// owns n..2n-1.
type DiscID int

// Disc is one shuffleboard weight.
type Disc struct {
	ID       DiscID  `json:"id"`
	Owner    int     `json:"owner"` // 1 or 2
	Position Vec3    `json:"position"`
	Velocity Vec3    `json:"velocity"`
	Spin     float64 `json:"spin"`
	Shot     bool    `json:"shot"`
	InPlay   bool    `json:"in_play"` // on the board and tracked by physics
	Scored   bool    `json:"scored"`
	Points   int     `json:"points"`
}

func (d *Disc) reset(launch Vec3) {
	d.Position = launch
	d.Velocity = Vec3{}
	d.Spin = 0
	d.Shot = false
	d.InPlay = false
	d.Scored = false
	d.Points = 0
}

// PlayerSpec describes a seat when a match is created.
type PlayerSpec struct {
	ID          string
	DisplayName string
	DBPlayerID  int
	Token       string // secret the client presents to claim the seat
	AI          bool
}

// Player is a seat in a match.
type Player struct {
	ID             string     `json:"id"`
	Number         int        `json:"number"`
	DisplayName    string     `json:"display_name,omitempty"`
	DBPlayerID     int        `json:"db_player_id,omitempty"`
	PlayerToken    string     `json:"-"`
	AI             bool       `json:"ai"`
	Score          int        `json:"score"`
	ShotsTaken     int        `json:"shots_taken"`
	Discs          []*Disc    `json:"discs"`
	Connected      bool       `json:"connected"`
	ShowedUp       bool       `json:"showed_up"`
	DisconnectedAt *time.Time `json:"-"`
}

func newPlayer(number int, spec PlayerSpec, discs int, launch Vec3) *Player {
	p := &Player{
		ID:          spec.ID,
		Number:      number,
		DisplayName: spec.DisplayName,
		DBPlayerID:  spec.DBPlayerID,
		PlayerToken: spec.Token,
		AI:          spec.AI,
		Discs:       make([]*Disc, discs),
	}
	// AI seats never connect a socket.
	if spec.AI {
		p.Connected = true
		p.ShowedUp = true
	}
	for i := range p.Discs {
		p.Discs[i] = &Disc{
			ID:       DiscID((number-1)*discs + i),
			Owner:    number,
			Position: launch,
		}
	}
	return p
}

// Remaining is the number of discs the player has not shot this round.
func (p *Player) Remaining() int {
	return len(p.Discs) - p.ShotsTaken
}

// nextDisc is the disc the player will shoot next, or nil.
func (p *Player) nextDisc() *Disc {
	for _, d := range p.Discs {
		if !d.Shot {
			return d
		}
	}
	return nil
}

func (p *Player) resetRound(launch Vec3) {
	p.ShotsTaken = 0
	for _, d := range p.Discs {
		d.reset(launch)
	}
}
