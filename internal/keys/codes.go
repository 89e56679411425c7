package keys

// Key is a physical key code. Values follow the GLFW numbering: printable
// keys use their uppercase ASCII code, named keys start at 256.
type Key int

const (
	KeySpace Key = 32
	KeyA     Key = 65
	KeyZ     Key = 90

	KeyEscape    Key = 256
	KeyEnter     Key = 257
	KeyTab       Key = 258
	KeyBackspace Key = 259
	KeyInsert    Key = 260
	KeyDelete    Key = 261
	KeyRight     Key = 262
	KeyLeft      Key = 263
	KeyDown      Key = 264
	KeyUp        Key = 265
	KeyPageUp    Key = 266
	KeyPageDown  Key = 267
	KeyHome      Key = 268
	KeyEnd       Key = 269

	KeyF1  Key = 290
	KeyF2  Key = 291
	KeyF3  Key = 292
	KeyF4  Key = 293
	KeyF5  Key = 294
	KeyF6  Key = 295
	KeyF7  Key = 296
	KeyF8  Key = 297
	KeyF9  Key = 298
	KeyF10 Key = 299
	KeyF11 Key = 300
	KeyF12 Key = 301
)

// IsAlpha reports whether k is one of the letter keys A..Z.
func (k Key) IsAlpha() bool { return k >= KeyA && k <= KeyZ }

// Mod is a bit mask of modifier keys held during a key event.
type Mod int

const (
	ModShift    Mod = 0x0001
	ModControl  Mod = 0x0002
	ModAlt      Mod = 0x0004
	ModSuper    Mod = 0x0008
	ModCapsLock Mod = 0x0010
	ModNumLock  Mod = 0x0020

	// lockMods never change what a key sends.
	lockMods = ModCapsLock | ModNumLock
)

// Has reports whether every bit of o is set in m.
func (m Mod) Has(o Mod) bool { return m&o == o }

// Action distinguishes the phases of a key event.
type Action int

const (
	Press Action = iota
	Repeat
	Release
)

func (a Action) String() string {
	switch a {
	case Press:
		return "press"
	case Repeat:
		return "repeat"
	case Release:
		return "release"
	default:
		return "unknown"
	}
}
