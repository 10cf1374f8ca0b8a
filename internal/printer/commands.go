package printer

import (
	"bytes"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

type Alignment byte

const (
	AlignLeft Alignment = iota
	AlignCenter
	AlignRight
)

// CommandSet produces the control sequences of one printer family.
type CommandSet interface {
	Init() []byte
	CodePage() []byte
	Bold(on bool) []byte
	// Size scales glyphs; width and height are multipliers starting at 1.
	Size(width, height int) []byte
	Align(a Alignment) []byte
	Feed(lines int) []byte
	Cut() []byte
}

const (
	esc = 0x1B
	gs  = 0x1D
)

// escPOS is the Epson ESC/POS command set most receipt printers accept.
type escPOS struct{}

func (escPOS) Init() []byte     { return []byte{esc, '@'} }
func (escPOS) CodePage() []byte { return []byte{esc, 't', 19} } // PC858
func (escPOS) Bold(on bool) []byte {
	if on {
		return []byte{esc, 'E', 1}
	}
	return []byte{esc, 'E', 0}
}
func (escPOS) Size(width, height int) []byte {
	return []byte{gs, '!', byte((clampScale(width, 8)-1)<<4 | (clampScale(height, 8) - 1))}
}
func (escPOS) Align(a Alignment) []byte { return []byte{esc, 'a', byte(a)} }
func (escPOS) Feed(lines int) []byte    { return []byte{esc, 'd', byte(clampScale(lines, 255))} }
func (escPOS) Cut() []byte              { return []byte{gs, 'V', 66, 0} }

// starLine is Star Micronics Line Mode.
type starLine struct{}

func (starLine) Init() []byte     { return []byte{esc, '@'} }
func (starLine) CodePage() []byte { return []byte{esc, gs, 't', 4} } // 858
func (starLine) Bold(on bool) []byte {
	if on {
		return []byte{esc, 'E'}
	}
	return []byte{esc, 'F'}
}
func (starLine) Size(width, height int) []byte {
	return []byte{esc, 'i', byte(clampScale(height, 6) - 1), byte(clampScale(width, 6) - 1)}
}
func (starLine) Align(a Alignment) []byte { return []byte{esc, gs, 'a', byte(a)} }
func (starLine) Feed(lines int) []byte    { return []byte{esc, 'a', byte(clampScale(lines, 127))} }
func (starLine) Cut() []byte              { return []byte{esc, 'd', 3} }

func clampScale(n, limit int) int {
	if n < 1 {
		return 1
	}
	if n > limit {
		return limit
	}
	return n
}

var (
	registryMu  sync.RWMutex
	commandSets = map[string]CommandSet{
		KindESCPOS: escPOS{},
		KindStar:   starLine{},
	}
)

// Register makes a device family available under kind.
func Register(kind string, cs CommandSet) {
	registryMu.Lock()
	defer registryMu.Unlock()
	commandSets[strings.ToLower(kind)] = cs
}

func CommandSetFor(kind string) (CommandSet, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	cs, ok := commandSets[strings.ToLower(kind)]
	return cs, ok
}

const trailingFeed = 4

// Encode turns formatted ticket text into a device byte stream. The first
// line is the header and prints bold and centered.
func Encode(cs CommandSet, s DeviceSettings, text string) ([]byte, error) {
	enc := encoding.ReplaceUnsupported(charmap.CodePage858.NewEncoder())

	var buf bytes.Buffer
	buf.Write(cs.Init())
	buf.Write(cs.CodePage())

	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, line := range lines {
		if i == 0 {
			line = strings.TrimSpace(line)
		}
		raw, err := enc.String(line)
		if err != nil {
			return nil, fmt.Errorf("transcode line %d: %w", i+1, err)
		}

		if i == 0 {
			buf.Write(cs.Align(AlignCenter))
			buf.Write(cs.Bold(true))
			buf.WriteString(raw)
			buf.WriteByte('\n')
			buf.Write(cs.Bold(false))
			buf.Write(cs.Align(AlignLeft))
			buf.Write(cs.Size(fontScale(s.FontSize)))
			buf.Write(cs.Bold(s.Bold))
			continue
		}

		buf.WriteString(raw)
		buf.WriteByte('\n')
	}

	buf.Write(cs.Bold(false))
	buf.Write(cs.Size(1, 1))
	buf.Write(cs.Feed(trailingFeed))
	if s.CutPaper {
		buf.Write(cs.Cut())
	}
	return buf.Bytes(), nil
}

func fontScale(size string) (width, height int) {
	switch size {
	case FontLarge:
		return 2, 2
	case FontTall:
		return 1, 2
	default:
		return 1, 1
	}
}
