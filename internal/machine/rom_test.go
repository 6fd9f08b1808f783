package machine_test

import (
	"bytes"
	"testing"

	"github.com/smoynes/memsim/internal/machine"
)

func TestROMReadsBackImage(t *testing.T) {
	rom := machine.NewROM([]byte{0xDE, 0xAD, 0xBE, 0xEF}, true)

	got, err := rom.Read(0, 4)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if !bytes.Equal(got, []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Errorf("got %x, want DEADBEEF", got)
	}
}

func TestROMReadPastEndFails(t *testing.T) {
	rom := machine.NewROM([]byte{0x01, 0x02}, true)

	if _, err := rom.Read(1, 4); err == nil {
		t.Fatal("expected an out-of-bounds error")
	}
}

func TestROMStrictWriteRejected(t *testing.T) {
	rom := machine.NewROM([]byte{0x01, 0x02}, true)

	if err := rom.Write(0, []byte{0xFF}); err == nil {
		t.Fatal("expected strict ROM write to fail")
	}
}

func TestROMNonStrictWriteDropped(t *testing.T) {
	rom := machine.NewROM([]byte{0x01, 0x02}, false)

	if err := rom.Write(0, []byte{0xFF}); err != nil {
		t.Fatalf("expected non-strict write to be silently dropped, got %v", err)
	}

	got, err := rom.Read(0, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if !bytes.Equal(got, []byte{0x01, 0x02}) {
		t.Errorf("expected image unchanged by dropped write, got %x", got)
	}
}

func TestROMCopiesImageOnConstruction(t *testing.T) {
	image := []byte{0xAA, 0xBB}
	rom := machine.NewROM(image, true)

	image[0] = 0x00

	got, err := rom.Read(0, 2)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if got[0] != 0xAA {
		t.Errorf("expected ROM to hold a copy of the image, got %x", got)
	}
}
