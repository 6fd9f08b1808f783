package firmware

// heximage.go implements marshalling and unmarshalling of boot images as
// Intel-Hex-style text records, for loading a ROM or DRAM region from a
// human-readable file. Each line is:
//
//	:LLAAAATT[DD...]CC
//	0123456789
//
// length, 16-bit address, record type, optional data, and a checksum. Only
// the data and end-of-file record types are supported, and addresses are
// 16-bit per record, matching the format's traditional limitation: loading
// above offset 0xFFFF within one image requires multiple images at
// different bases.

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/smoynes/memsim/internal/machine"
)

// HexImage is a sequence of addressed byte runs, as decoded from or destined
// for an Intel-Hex-style text encoding.
type HexImage struct {
	Records []ImageRecord
}

// ImageRecord is one addressed run of bytes.
type ImageRecord struct {
	Addr uint16
	Data []byte
}

type recordKind byte

const (
	kindData recordKind = 0
	kindEOF  recordKind = 1
)

type decodingError struct{}

func (decodingError) Error() string { return "decoding error" }

// ErrDecode is wrapped by every error UnmarshalText returns.
var ErrDecode error = &decodingError{}

// MarshalText encodes the image's records as Intel-Hex-style lines,
// terminated by an end-of-file record.
func (h *HexImage) MarshalText() ([]byte, error) {
	var buf bytes.Buffer

	enc := hex.NewEncoder(&buf)

	for _, rec := range h.Records {
		var check byte

		buf.WriteByte(':')

		length := byte(len(rec.Data))
		check += length

		if _, err := enc.Write([]byte{length}); err != nil {
			return buf.Bytes(), err
		}

		var addr [2]byte
		binary.BigEndian.PutUint16(addr[:], rec.Addr)
		check += addr[0] + addr[1]

		if _, err := enc.Write(addr[:]); err != nil {
			return buf.Bytes(), err
		}

		buf.WriteString("00") // record type: data

		if _, err := enc.Write(rec.Data); err != nil {
			return buf.Bytes(), err
		}

		for _, b := range rec.Data {
			check += b
		}

		if _, err := enc.Write([]byte{1 + ^check}); err != nil {
			return buf.Bytes(), err
		}

		buf.WriteByte('\n')
	}

	buf.WriteString(":00000001ff\n")

	return buf.Bytes(), nil
}

// UnmarshalText decodes Intel-Hex-style lines into the image's records,
// replacing any existing contents.
func (h *HexImage) UnmarshalText(bs []byte) error {
	h.Records = nil

	lines := bufio.NewScanner(bytes.NewReader(bs))

	for lines.Scan() {
		rec := lines.Bytes()

		if len(rec) == 0 {
			continue
		}

		if rec[0] != ':' {
			return fmt.Errorf("%w: line does not start with ':'", ErrDecode)
		}

		var (
			check   byte
			dec     [4]byte
			recLen  byte
			recAddr uint16
			recKind recordKind
		)

		if _, err := hex.Decode(dec[:1], rec[1:3]); err != nil {
			return fmt.Errorf("%w: len: %s", ErrDecode, err)
		}

		recLen = dec[0]
		check += dec[0]

		if _, err := hex.Decode(dec[:2], rec[3:7]); err != nil {
			return fmt.Errorf("%w: addr: %s", ErrDecode, err)
		}

		recAddr = binary.BigEndian.Uint16(dec[:2])
		check += dec[0] + dec[1]

		if _, err := hex.Decode(dec[:1], rec[7:9]); err != nil {
			return fmt.Errorf("%w: type: %s", ErrDecode, err)
		}

		recKind = recordKind(dec[0])
		check += dec[0]

		if _, err := hex.Decode(dec[:1], rec[len(rec)-2:]); err != nil {
			return fmt.Errorf("%w: check: %s", ErrDecode, err)
		}

		recCheck := dec[0]

		switch recKind {
		case kindData:
			data := make([]byte, recLen)

			if recLen > 0 {
				if _, err := hex.Decode(data, rec[9:9+int(recLen)*2]); err != nil {
					return fmt.Errorf("%w: data: %s", ErrDecode, err)
				}
			}

			for _, b := range data {
				check += b
			}

			check = 1 + ^check
			if check != recCheck {
				return fmt.Errorf("%w: checksum invalid: %#02x != %#02x", ErrDecode, check, recCheck)
			}

			h.Records = append(h.Records, ImageRecord{Addr: recAddr, Data: data})

		case kindEOF:
			check = 1 + ^check
			if check != recCheck {
				return fmt.Errorf("%w: checksum invalid: %#02x != %#02x", ErrDecode, check, recCheck)
			}

			return nil

		default:
			return fmt.Errorf("%w: unexpected record type: %d", ErrDecode, recKind)
		}
	}

	if len(h.Records) == 0 {
		return fmt.Errorf("%w: no data decoded", ErrDecode)
	}

	return nil
}

// LoadInto writes every record into dram at base+record.Addr.
func (h *HexImage) LoadInto(dram *machine.DRAM, base machine.PA) error {
	for _, rec := range h.Records {
		if err := dram.WriteBytes(base+machine.PA(rec.Addr), rec.Data); err != nil {
			return err
		}
	}

	return nil
}
