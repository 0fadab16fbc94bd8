package game

// Board and physics constants for the canonical shuffleboard table.
// These MUST match the constants the browser client renders with.

const (
	DefaultDiscsPerPlayer = 4
	DefaultWinThreshold   = 75

	DiscRadius     = 0.15
	BoardHalfWidth = 1.0
	BoardLength    = 20.0 // end of the scoring region
	LaunchZ        = -1.0 // discs are released from behind the first zone
	BoardMinY      = -0.5 // below this the disc has fallen off
	BoardMaxY      = 2.0

	ShotPower        = 12.0   // board units per second at full power
	MaxAimRadians    = 0.2618 // 15 degrees
	ShotPerturbation = 0.02
	SpinPerturbation = 0.05
	SpinPerRadian    = 1.5

	RestEpsilon = 0.1
	RestTicks   = 3

	BoardFriction      = 2.5  // linear deceleration, units/s^2
	SpinFriction       = 3.0  // angular deceleration, rad/s^2
	CurlFactor         = 0.08 // lateral drift per unit of spin
	DiscRestitution    = 0.85
	DefaultTickHz      = 60
	MaxSimulationSteps = 60 * 60 // one minute of simulated time
)
