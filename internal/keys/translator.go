// Package keys turns keyboard events into the byte sequences a shell
// running behind a PTY expects.
package keys

import (
	"fmt"
	"unicode/utf8"
)

type combo struct {
	key  Key
	mods Mod
}

// Translator maps (key, modifiers) pairs to byte sequences. The table is
// built once by NewTranslator and never modified, so a Translator may be
// shared freely between goroutines.
type Translator struct {
	table map[combo][]byte
}

// NewTranslator builds the ANSI/xterm key table.
func NewTranslator() *Translator {
	t := &Translator{table: make(map[combo][]byte)}
	t.buildTable()
	return t
}

// TranslateKey returns the bytes to send for a key press, repeat or
// release. handled reports whether the event was consumed:
//
//   - releases are never handled;
//   - letters without modifiers, or with Shift only, are left unhandled so
//     the character arrives once, through TranslateRune;
//   - Ctrl+letter yields the matching C0 control code;
//   - anything else is looked up in the table, and a miss is still
//     handled, with no bytes.
func (t *Translator) TranslateKey(action Action, key Key, mods Mod) (seq []byte, handled bool) {
	if action == Release {
		return nil, false
	}

	mods &^= lockMods

	if key.IsAlpha() && mods&^ModShift == 0 {
		return nil, false
	}

	if mods.Has(ModControl) && key.IsAlpha() {
		return []byte{byte(key-KeyA) + 1}, true
	}

	if seq, ok := t.table[combo{key, mods}]; ok {
		return append([]byte(nil), seq...), true
	}
	return nil, true
}

// TranslateRune returns the bytes for a typed character. Typed
// characters are always handled; code points above ASCII are sent UTF-8
// encoded.
func (t *Translator) TranslateRune(r rune) (seq []byte, handled bool) {
	if r >= 0 && r < utf8.RuneSelf {
		return []byte{byte(r)}, true
	}
	return utf8.AppendRune(nil, r), true
}

// Len returns the number of table entries.
func (t *Translator) Len() int { return len(t.table) }

func (t *Translator) set(key Key, mods Mod, seq string) {
	t.table[combo{key, mods}] = []byte(seq)
}

// modifierCombos lists every non-empty Shift/Alt/Control combination.
var modifierCombos = []Mod{
	ModShift,
	ModAlt,
	ModShift | ModAlt,
	ModControl,
	ModShift | ModControl,
	ModAlt | ModControl,
	ModShift | ModAlt | ModControl,
}

// xtermParam encodes a modifier mask as the xterm parameter 1 + bits.
func xtermParam(mods Mod) int {
	p := 1
	if mods.Has(ModShift) {
		p += 1
	}
	if mods.Has(ModAlt) {
		p += 2
	}
	if mods.Has(ModControl) {
		p += 4
	}
	return p
}

func (t *Translator) buildTable() {
	t.set(KeyTab, 0, "\t")
	t.set(KeyTab, ModShift, "\t")

	t.set(KeyBackspace, 0, "\b")
	t.set(KeyBackspace, ModShift, "\b")

	t.set(KeyEnter, 0, "\r")
	t.set(KeyEnter, ModShift, "\r")
	t.set(KeyEnter, ModControl, "\r")
	t.set(KeyEnter, ModAlt, "\n")

	t.set(KeyEscape, 0, "\x1b")

	// Cursor keys and Home/End: CSI X, or CSI 1;m X with modifiers.
	for key, final := range map[Key]byte{
		KeyUp:    'A',
		KeyDown:  'B',
		KeyRight: 'C',
		KeyLeft:  'D',
		KeyHome:  'H',
		KeyEnd:   'F',
	} {
		t.set(key, 0, fmt.Sprintf("\x1b[%c", final))
		for _, m := range modifierCombos {
			t.set(key, m, fmt.Sprintf("\x1b[1;%d%c", xtermParam(m), final))
		}
	}

	// F1..F4 use SS3 unmodified and CSI 1;m P..S with modifiers.
	for i, final := range []byte{'P', 'Q', 'R', 'S'} {
		key := KeyF1 + Key(i)
		t.set(key, 0, fmt.Sprintf("\x1bO%c", final))
		for _, m := range modifierCombos {
			t.set(key, m, fmt.Sprintf("\x1b[1;%d%c", xtermParam(m), final))
		}
	}

	// Editing keys and F5..F12: CSI n ~, or CSI n;m ~ with modifiers.
	for key, n := range map[Key]int{
		KeyInsert:   2,
		KeyDelete:   3,
		KeyPageUp:   5,
		KeyPageDown: 6,
		KeyF5:       15,
		KeyF6:       17,
		KeyF7:       18,
		KeyF8:       19,
		KeyF9:       20,
		KeyF10:      21,
		KeyF11:      23,
		KeyF12:      24,
	} {
		t.set(key, 0, fmt.Sprintf("\x1b[%d~", n))
		for _, m := range modifierCombos {
			t.set(key, m, fmt.Sprintf("\x1b[%d;%d~", n, xtermParam(m)))
		}
	}
}
