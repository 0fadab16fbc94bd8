package game

// GameStatus represents the lifecycle state of a match
type GameStatus string

const (
	StatusWaiting    GameStatus = "WAITING"
	StatusInProgress GameStatus = "IN_PROGRESS"
	StatusCompleted  GameStatus = "COMPLETED"
	StatusCancelled  GameStatus = "CANCELLED"
)

// Phase is the turn scheduler's position inside an in-progress match.
type Phase string

const (
	PhaseIdle            Phase = "IDLE" // match not started yet
	PhaseAiming          Phase = "AIMING"
	PhaseCharging        Phase = "CHARGING"
	PhaseShooting        Phase = "SHOOTING"
	PhaseScoring         Phase = "SCORING"
	PhaseRoundTransition Phase = "ROUND_TRANSITION"
	PhaseGameOver        Phase = "GAME_OVER"
)

// acceptsInput reports whether aim/charge/shoot input is meaningful.
func (p Phase) acceptsInput() bool {
	return p == PhaseAiming || p == PhaseCharging
}
