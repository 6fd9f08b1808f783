package firmware

// vars.go implements a small persistent key/value store for firmware
// runtime variables, addressed by (guid, name) the way UEFI variables are,
// with a minimal attribute bitmask and a flat-file TAB-delimited hex
// persistence format.

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/smoynes/memsim/internal/machine"
)

// Attr is a bitmask of variable attributes.
type Attr uint32

const (
	AttrNone              Attr = 0
	AttrReadOnly          Attr = 1 << 0
	AttrRuntimeAccess     Attr = 1 << 1
	AttrBootServiceAccess Attr = 1 << 2
)

// Variable is one stored record.
type Variable struct {
	Attr  Attr
	GUID  string
	Name  string
	Bytes []byte
}

type varKey struct{ guid, name string }

// Store is an in-memory variable table, optionally backed by a file.
type Store struct {
	path string
	vars map[varKey]*Variable
}

// NewStore creates an empty Store. If path is non-empty, Load reads from it
// and Save writes to it; an empty path keeps the store purely in-memory.
func NewStore(path string) *Store {
	return &Store{path: path, vars: make(map[varKey]*Variable)}
}

// Get looks up a variable by (guid, name).
func (s *Store) Get(guid, name string) (*Variable, bool) {
	v, ok := s.vars[varKey{guid, name}]
	return v, ok
}

// Set creates or overwrites a variable. Overwriting a variable that already
// carries AttrReadOnly fails with ErrReadOnly.
func (s *Store) Set(guid, name string, attr Attr, bytes []byte) error {
	key := varKey{guid, name}

	if existing, ok := s.vars[key]; ok && existing.Attr&AttrReadOnly != 0 {
		return fmt.Errorf("%w: variable %s/%s", machine.ErrReadOnly, guid, name)
	}

	cp := make([]byte, len(bytes))
	copy(cp, bytes)

	s.vars[key] = &Variable{Attr: attr, GUID: guid, Name: name, Bytes: cp}

	return nil
}

// Delete removes a variable, failing with ErrReadOnly if it is read-only.
func (s *Store) Delete(guid, name string) error {
	key := varKey{guid, name}

	if existing, ok := s.vars[key]; ok {
		if existing.Attr&AttrReadOnly != 0 {
			return fmt.Errorf("%w: variable %s/%s", machine.ErrReadOnly, guid, name)
		}

		delete(s.vars, key)
	}

	return nil
}

// All returns every stored variable, in no particular order.
func (s *Store) All() []*Variable {
	out := make([]*Variable, 0, len(s.vars))
	for _, v := range s.vars {
		out = append(out, v)
	}

	return out
}

// Save writes every variable to the store's path, one record per line:
// hex(attr) TAB guid TAB name TAB hex(bytes).
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}

	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	return s.WriteTo(f)
}

// WriteTo serializes every variable to w in the line-oriented hex format.
func (s *Store) WriteTo(w io.Writer) error {
	for _, v := range s.vars {
		line := fmt.Sprintf("%s\t%s\t%s\t%s\n",
			hex.EncodeToString(packAttr(v.Attr)), v.GUID, v.Name, hex.EncodeToString(v.Bytes))

		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}

	return nil
}

// Load reads the store's path, replacing the in-memory contents. A missing
// file is treated as an empty store.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	} else if err != nil {
		return err
	}
	defer f.Close()

	return s.ReadFrom(f)
}

// ReadFrom parses the line-oriented hex format from r, replacing the
// in-memory contents.
func (s *Store) ReadFrom(r io.Reader) error {
	s.vars = make(map[varKey]*Variable)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			return fmt.Errorf("firmware: malformed variable record: %q", line)
		}

		attrBytes, err := hex.DecodeString(fields[0])
		if err != nil {
			return fmt.Errorf("firmware: bad attr hex: %w", err)
		}

		data, err := hex.DecodeString(fields[3])
		if err != nil {
			return fmt.Errorf("firmware: bad data hex: %w", err)
		}

		attr := unpackAttr(attrBytes)
		key := varKey{fields[1], fields[2]}
		s.vars[key] = &Variable{Attr: attr, GUID: fields[1], Name: fields[2], Bytes: data}
	}

	return scanner.Err()
}

func packAttr(a Attr) []byte {
	return []byte{byte(a), byte(a >> 8), byte(a >> 16), byte(a >> 24)}
}

func unpackAttr(b []byte) Attr {
	var a Attr

	for i := 0; i < len(b) && i < 4; i++ {
		a |= Attr(b[i]) << (uint(i) * 8)
	}

	return a
}
