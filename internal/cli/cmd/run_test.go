package cmd_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smoynes/memsim/internal/cli/cmd"
	"github.com/smoynes/memsim/internal/firmware"
	"github.com/smoynes/memsim/internal/log"
)

func init() {
	log.SetDefault(log.NewFormattedLogger(io.Discard))
}

// TestRunWithoutImageReportsStats boots a system with no boot image and
// checks the bus/cache/TLB summary lines are printed.
func TestRunWithoutImageReportsStats(t *testing.T) {
	var out bytes.Buffer

	code := cmd.Run().Run(context.Background(), nil, &out, log.NewFormattedLogger(io.Discard))
	if code != 0 {
		t.Fatalf("got exit code %d, want 0", code)
	}

	got := out.String()

	for _, want := range []string{"bus:", "cache l1d:", "cache l1i:", "cache l2:", "cache l3:", "tlb:"} {
		if !strings.Contains(got, want) {
			t.Errorf("expected output to contain %q, got:\n%s", want, got)
		}
	}
}

// TestRunLoadsBootImage writes a small hex image to a temp file and
// verifies the run command loads it without error.
func TestRunLoadsBootImage(t *testing.T) {
	img := firmware.HexImage{
		Records: []firmware.ImageRecord{
			{Addr: 0, Data: []byte{0x01, 0x02, 0x03, 0x04}},
		},
	}

	text, err := img.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	path := filepath.Join(t.TempDir(), "boot.hex")
	if err := os.WriteFile(path, text, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var out bytes.Buffer

	code := cmd.Run().Run(context.Background(), []string{"-image", path, "-ticks", "10"},
		&out, log.NewFormattedLogger(io.Discard))
	if code != 0 {
		t.Fatalf("got exit code %d, want 0, output:\n%s", code, out.String())
	}
}

// TestRunRejectsMissingImage verifies a nonexistent boot image path fails
// cleanly with a nonzero exit code.
func TestRunRejectsMissingImage(t *testing.T) {
	var out bytes.Buffer

	code := cmd.Run().Run(context.Background(), []string{"-image", "/no/such/file"},
		&out, log.NewFormattedLogger(io.Discard))
	if code == 0 {
		t.Fatal("expected a nonzero exit code for a missing boot image")
	}
}
