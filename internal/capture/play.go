package capture

import (
	"errors"
	"fmt"
	"time"
)

// Sleeper lets tests replay without waiting.
type Sleeper interface {
	Sleep(d time.Duration)
}

type realSleeper struct{}

func (realSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// Play invokes emit for every frame record, honoring the recorded relative
// timing divided by speed (2.0 halves the waits). START markers reset the
// origin. When loop is true the sequence repeats until emit returns an
// error; ordinarily that error is how callers stop playback.
func Play(records []Record, speed float64, loop bool, sleeper Sleeper, emit func(frame []byte) error) error {
	if speed <= 0 {
		return fmt.Errorf("capture: speed must be > 0, got %v", speed)
	}
	if emit == nil {
		return errors.New("capture: emit is nil")
	}
	if len(records) == 0 {
		return errors.New("capture: no records")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}

	for {
		var origin, last time.Duration
		haveLast := false
		for _, rec := range records {
			if rec.Frame == nil {
				origin = rec.At
				last = 0
				haveLast = false
				continue
			}

			at := rec.At - origin
			if at < 0 {
				at = 0
			}
			if haveLast {
				if wait := time.Duration(float64(at-last) / speed); wait > 0 {
					sleeper.Sleep(wait)
				}
			}
			if err := emit(rec.Frame); err != nil {
				return err
			}
			last = at
			haveLast = true
		}
		if !loop {
			return nil
		}
	}
}
