// Package demo reads the header of Source engine (HL2DEMO) demo files.
package demo

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Magic opens every demo file.
const Magic = "HL2DEMO\x00"

// pathLen is the fixed width of the string fields in the header.
const pathLen = 260

var (
	// ErrNotDemo means the file does not start with Magic.
	ErrNotDemo = errors.New("demo: not a demo file")
	// ErrWrongGame means the demo was recorded by another game.
	ErrWrongGame = errors.New("demo: recorded by a different game")
	// ErrCorrupt means the header is truncated or has no ticks.
	ErrCorrupt = errors.New("demo: corrupted header")
)

// rawHeader mirrors the on-disk layout, little endian.
type rawHeader struct {
	Magic           [8]byte
	DemoProtocol    int32
	NetworkProtocol int32
	ServerName      [pathLen]byte
	ClientName      [pathLen]byte
	MapName         [pathLen]byte
	GameDir         [pathLen]byte
	PlaybackTime    float32
	Ticks           int32
	Frames          int32
	SignonLength    int32
}

// HeaderSize is the encoded size of a demo header.
var HeaderSize = binary.Size(rawHeader{})

// Header is the decoded demo header.
type Header struct {
	DemoProtocol    int
	NetworkProtocol int
	ServerName      string
	ClientName      string
	MapName         string
	GameDir         string
	PlaybackTime    float32
	// Ticks is the number of ticks in the demo; valid ticks are
	// 0..Ticks-1.
	Ticks        int
	Frames       int
	SignonLength int
}

// LastTick is the highest tick playback can reach.
func (h *Header) LastTick() int { return h.Ticks - 1 }

// Read decodes a header from r.
func Read(r io.Reader) (*Header, error) {
	buf := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, buf)
	if n < len(Magic) || string(buf[:len(Magic)]) != Magic {
		return nil, ErrNotDemo
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	var raw rawHeader
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return &Header{
		DemoProtocol:    int(raw.DemoProtocol),
		NetworkProtocol: int(raw.NetworkProtocol),
		ServerName:      cString(raw.ServerName[:]),
		ClientName:      cString(raw.ClientName[:]),
		MapName:         cString(raw.MapName[:]),
		GameDir:         cString(raw.GameDir[:]),
		PlaybackTime:    raw.PlaybackTime,
		Ticks:           int(raw.Ticks),
		Frames:          int(raw.Frames),
		SignonLength:    int(raw.SignonLength),
	}, nil
}

// ReadFile decodes the header of the demo at path.
func ReadFile(path string) (*Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Inspect reads the header at path and checks it is a playable demo of
// game. The game directory must match exactly and be NUL padded.
func Inspect(path, game string) (*Header, error) {
	h, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if h.GameDir != game {
		return nil, fmt.Errorf("%w: game directory %q, want %q", ErrWrongGame, h.GameDir, game)
	}
	if h.Ticks <= 0 {
		return nil, fmt.Errorf("%w: %d ticks", ErrCorrupt, h.Ticks)
	}
	return h, nil
}

// Encode is the inverse of Read, used to build fixtures.
func Encode(w io.Writer, h *Header) error {
	raw := rawHeader{
		DemoProtocol:    int32(h.DemoProtocol),
		NetworkProtocol: int32(h.NetworkProtocol),
		PlaybackTime:    h.PlaybackTime,
		Ticks:           int32(h.Ticks),
		Frames:          int32(h.Frames),
		SignonLength:    int32(h.SignonLength),
	}
	copy(raw.Magic[:], Magic)
	for _, f := range []struct {
		dst *[pathLen]byte
		src string
	}{
		{&raw.ServerName, h.ServerName},
		{&raw.ClientName, h.ClientName},
		{&raw.MapName, h.MapName},
		{&raw.GameDir, h.GameDir},
	} {
		if len(f.src) >= pathLen {
			return fmt.Errorf("demo: field %q too long", f.src)
		}
		copy(f.dst[:], f.src)
	}
	return binary.Write(w, binary.LittleEndian, &raw)
}

// cString returns b up to the first NUL, or all of b (NULs included) when
// the field is not NUL padded after its terminator.
func cString(b []byte) string {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return string(b)
	}
	if len(bytes.Trim(b[i:], "\x00")) != 0 {
		return string(b)
	}
	return string(b[:i])
}
