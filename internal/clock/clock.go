package clock

import "time"

// Clock abstracts "now" so streak math and scheduler buckets never read
// ambient time directly. Tests pin instants with Fixed.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func System() Clock { return systemClock{} }

// Fixed always returns the same instant.
type Fixed struct {
	Instant time.Time
}

func (f Fixed) Now() time.Time { return f.Instant }

func At(t time.Time) Fixed { return Fixed{Instant: t} }
