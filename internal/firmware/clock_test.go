package firmware_test

import (
	"testing"
	"time"

	"github.com/smoynes/memsim/internal/firmware"
)

func TestClockConvertsTicksToWallTime(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	var mtime uint64

	clock := firmware.NewClock(epoch, 1000, func() uint64 { return mtime })

	if got := clock.Now(); !got.Equal(epoch) {
		t.Errorf("got %s, want %s", got, epoch)
	}

	mtime = 1500 // 1.5 seconds at 1000 Hz

	want := epoch.Add(1500 * time.Millisecond)
	if got := clock.Now(); !got.Equal(want) {
		t.Errorf("got %s, want %s", got, want)
	}
}
