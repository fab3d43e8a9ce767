package pipeline

import "time"

// SetBackoff shortens publish retry delays for tests.
func SetBackoff(p *Pipeline, initial, maxBackoff time.Duration) {
	p.initialBackoff = initial
	p.maxBackoff = maxBackoff
}
