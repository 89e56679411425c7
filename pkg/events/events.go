// Package events defines the closed set of events a window or console
// collaborator delivers to a terminal session.
package events

import (
	"github.com/rafabd1/therminal/internal/keys"
)

// Category groups event kinds.
type Category uint8

const (
	CategoryNone Category = iota
	CategoryError
	CategoryWindow
	CategoryKey
	CategoryMouse
)

func (c Category) String() string {
	switch c {
	case CategoryError:
		return "error"
	case CategoryWindow:
		return "window"
	case CategoryKey:
		return "key"
	case CategoryMouse:
		return "mouse"
	default:
		return "none"
	}
}

// Kind identifies a concrete event type.
type Kind uint8

const (
	KindNone Kind = iota
	KindError
	KindWindowResize
	KindWindowMove
	KindWindowFocus
	KindWindowClose
	KindKeyPress
	KindKeyRelease
	KindKeyRepeat
	KindKeyTyped
	KindMousePress
	KindMouseRelease
	KindMouseMove
	KindMouseScroll
)

var kindNames = [...]string{
	KindNone:         "none",
	KindError:        "error",
	KindWindowResize: "window-resize",
	KindWindowMove:   "window-move",
	KindWindowFocus:  "window-focus",
	KindWindowClose:  "window-close",
	KindKeyPress:     "key-press",
	KindKeyRelease:   "key-release",
	KindKeyRepeat:    "key-repeat",
	KindKeyTyped:     "key-typed",
	KindMousePress:   "mouse-press",
	KindMouseRelease: "mouse-release",
	KindMouseMove:    "mouse-move",
	KindMouseScroll:  "mouse-scroll",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Category returns the group k belongs to.
func (k Kind) Category() Category {
	switch k {
	case KindError:
		return CategoryError
	case KindWindowResize, KindWindowMove, KindWindowFocus, KindWindowClose:
		return CategoryWindow
	case KindKeyPress, KindKeyRelease, KindKeyRepeat, KindKeyTyped:
		return CategoryKey
	case KindMousePress, KindMouseRelease, KindMouseMove, KindMouseScroll:
		return CategoryMouse
	default:
		return CategoryNone
	}
}

// Event is implemented only by the types in this package. Consumers
// dispatch with a type switch over the concrete types.
type Event interface {
	Kind() Kind
	event()
}

// Error carries a failure reported by the event source.
type Error struct{ Err error }

// WindowResize reports the new terminal size in character cells.
type WindowResize struct{ Cols, Rows int }

// WindowMove reports the new window position.
type WindowMove struct{ X, Y int }

// WindowFocus reports gaining or losing input focus.
type WindowFocus struct{ Focused bool }

// WindowClose asks the session to end.
type WindowClose struct{}

// KeyPress reports a key going down.
type KeyPress struct {
	Key  keys.Key
	Mods keys.Mod
}

// KeyRelease reports a key going up.
type KeyRelease struct {
	Key  keys.Key
	Mods keys.Mod
}

// KeyRepeat reports auto-repeat of a held key.
type KeyRepeat struct {
	Key  keys.Key
	Mods keys.Mod
}

// KeyTyped reports a decoded character.
type KeyTyped struct{ Rune rune }

// MouseButton identifies a mouse button, 0 being the primary one.
type MouseButton int

const (
	MouseButtonLeft   MouseButton = 0
	MouseButtonRight  MouseButton = 1
	MouseButtonMiddle MouseButton = 2
)

// MousePress reports a button going down.
type MousePress struct {
	Button MouseButton
	Mods   keys.Mod
}

// MouseRelease reports a button going up.
type MouseRelease struct {
	Button MouseButton
	Mods   keys.Mod
}

// MouseMove reports the pointer position.
type MouseMove struct{ X, Y float64 }

// MouseScroll reports wheel offsets.
type MouseScroll struct{ DX, DY float64 }

func (Error) Kind() Kind        { return KindError }
func (WindowResize) Kind() Kind { return KindWindowResize }
func (WindowMove) Kind() Kind   { return KindWindowMove }
func (WindowFocus) Kind() Kind  { return KindWindowFocus }
func (WindowClose) Kind() Kind  { return KindWindowClose }
func (KeyPress) Kind() Kind     { return KindKeyPress }
func (KeyRelease) Kind() Kind   { return KindKeyRelease }
func (KeyRepeat) Kind() Kind    { return KindKeyRepeat }
func (KeyTyped) Kind() Kind     { return KindKeyTyped }
func (MousePress) Kind() Kind   { return KindMousePress }
func (MouseRelease) Kind() Kind { return KindMouseRelease }
func (MouseMove) Kind() Kind    { return KindMouseMove }
func (MouseScroll) Kind() Kind  { return KindMouseScroll }

func (Error) event()        {}
func (WindowResize) event() {}
func (WindowMove) event()   {}
func (WindowFocus) event()  {}
func (WindowClose) event()  {}
func (KeyPress) event()     {}
func (KeyRelease) event()   {}
func (KeyRepeat) event()    {}
func (KeyTyped) event()     {}
func (MousePress) event()   {}
func (MouseRelease) event() {}
func (MouseMove) event()    {}
func (MouseScroll) event()  {}
