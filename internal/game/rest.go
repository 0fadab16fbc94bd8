package game

// RestDetector decides when a moving disc has stopped. A disc is at rest once
// linear and angular speed stay below epsilon for the required number of
// consecutive ticks; with required == 1 a single quiet tick is enough.
type RestDetector struct {
	epsilon  float64
	required int
	quiet    int
}

func NewRestDetector(epsilon float64, ticks int) *RestDetector {
	if ticks < 1 {
		ticks = 1
	}
	return &RestDetector{epsilon: epsilon, required: ticks}
}

// Observe feeds one tick of speeds and reports whether the disc is at rest.
func (d *RestDetector) Observe(linear, angular float64) bool {
	if linear < d.epsilon && abs(angular) < d.epsilon {
		d.quiet++
	} else {
		d.quiet = 0
	}
	return d.AtRest()
}

func (d *RestDetector) AtRest() bool {
	return d.quiet >= d.required
}

// Settle marks the disc as already resting, for discs that were stationary
// when a new shot started.
func (d *RestDetector) Settle() {
	d.quiet = d.required
}

func (d *RestDetector) Reset() {
	d.quiet = 0
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
