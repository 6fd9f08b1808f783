package firmware

// clock.go implements the wall-clock service firmware gets for free: it
// translates the CLINT's free-running mtime counter into a wall-clock time,
// given the frequency the embedder configured the CLINT to tick at.

import "time"

// Clock converts a CLINT's mtime counter into wall-clock time, given a
// fixed starting epoch and tick frequency.
type Clock struct {
	epoch     time.Time
	freqHz    uint64
	mtimeFunc func() uint64
}

// NewClock creates a Clock that reports epoch plus however much simulated
// time mtime() has advanced, at freqHz ticks per second.
func NewClock(epoch time.Time, freqHz uint64, mtime func() uint64) *Clock {
	if freqHz == 0 {
		freqHz = 1
	}

	return &Clock{epoch: epoch, freqHz: freqHz, mtimeFunc: mtime}
}

// Now returns the current wall-clock time.
func (c *Clock) Now() time.Time {
	ticks := c.mtimeFunc()
	seconds := ticks / c.freqHz
	remainder := ticks % c.freqHz
	nanos := remainder * uint64(time.Second) / c.freqHz

	return c.epoch.Add(time.Duration(seconds)*time.Second + time.Duration(nanos))
}

// Epoch returns the time that corresponds to mtime()==0.
func (c *Clock) Epoch() time.Time { return c.epoch }
