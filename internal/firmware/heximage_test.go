package firmware_test

import (
	"bytes"
	"testing"

	"github.com/smoynes/memsim/internal/firmware"
	"github.com/smoynes/memsim/internal/machine"
)

func TestHexImageMarshalUnmarshalRoundTrip(t *testing.T) {
	img := firmware.HexImage{
		Records: []firmware.ImageRecord{
			{Addr: 0x0000, Data: []byte{0x01, 0x02, 0x03, 0x04}},
			{Addr: 0x0010, Data: []byte{0xAA, 0xBB}},
		},
	}

	text, err := img.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText: %v", err)
	}

	var decoded firmware.HexImage
	if err := decoded.UnmarshalText(text); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}

	if len(decoded.Records) != len(img.Records) {
		t.Fatalf("got %d records, want %d", len(decoded.Records), len(img.Records))
	}

	for i, rec := range decoded.Records {
		want := img.Records[i]
		if rec.Addr != want.Addr || !bytes.Equal(rec.Data, want.Data) {
			t.Errorf("record %d: got %+v, want %+v", i, rec, want)
		}
	}
}

func TestHexImageUnmarshalRejectsBadChecksum(t *testing.T) {
	var img firmware.HexImage

	// A data record with an intentionally wrong checksum byte.
	bad := []byte(":0400000001020304FF\n:00000001ff\n")

	if err := img.UnmarshalText(bad); err == nil {
		t.Fatal("expected a checksum error")
	}
}

func TestHexImageLoadIntoDRAM(t *testing.T) {
	img := firmware.HexImage{
		Records: []firmware.ImageRecord{
			{Addr: 0x0004, Data: []byte{0x7F, 0x45, 0x4C, 0x46}},
		},
	}

	dram := machine.NewDRAM(0x2000, 0)

	if err := img.LoadInto(dram, 0x1000); err != nil {
		t.Fatalf("LoadInto: %v", err)
	}

	got, err := dram.ReadBytes(0x1004, 4)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}

	if !bytes.Equal(got, []byte{0x7F, 0x45, 0x4C, 0x46}) {
		t.Errorf("got %x, want 7F454C46", got)
	}
}
