package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rafabd1/therminal/internal/keys"
	"github.com/rafabd1/therminal/pkg/events"
)

type keyCombo struct {
	key  keys.Key
	mods keys.Mod
}

// namedKeys maps bubbletea's non-printing keys to key codes. Control
// letters are handled separately; KeyTab and KeyEnter share their values
// with Ctrl+I and Ctrl+M and are listed here.
var namedKeys = map[tea.KeyType]keyCombo{
	tea.KeyTab:        {keys.KeyTab, 0},
	tea.KeyShiftTab:   {keys.KeyTab, keys.ModShift},
	tea.KeyEnter:      {keys.KeyEnter, 0},
	tea.KeyBackspace:  {keys.KeyBackspace, 0},
	tea.KeyEsc:        {keys.KeyEscape, 0},
	tea.KeyInsert:     {keys.KeyInsert, 0},
	tea.KeyDelete:     {keys.KeyDelete, 0},
	tea.KeyPgUp:       {keys.KeyPageUp, 0},
	tea.KeyPgDown:     {keys.KeyPageDown, 0},
	tea.KeyCtrlPgUp:   {keys.KeyPageUp, keys.ModControl},
	tea.KeyCtrlPgDown: {keys.KeyPageDown, keys.ModControl},

	tea.KeyUp:    {keys.KeyUp, 0},
	tea.KeyDown:  {keys.KeyDown, 0},
	tea.KeyRight: {keys.KeyRight, 0},
	tea.KeyLeft:  {keys.KeyLeft, 0},
	tea.KeyHome:  {keys.KeyHome, 0},
	tea.KeyEnd:   {keys.KeyEnd, 0},

	tea.KeyShiftUp:    {keys.KeyUp, keys.ModShift},
	tea.KeyShiftDown:  {keys.KeyDown, keys.ModShift},
	tea.KeyShiftRight: {keys.KeyRight, keys.ModShift},
	tea.KeyShiftLeft:  {keys.KeyLeft, keys.ModShift},
	tea.KeyShiftHome:  {keys.KeyHome, keys.ModShift},
	tea.KeyShiftEnd:   {keys.KeyEnd, keys.ModShift},

	tea.KeyCtrlUp:    {keys.KeyUp, keys.ModControl},
	tea.KeyCtrlDown:  {keys.KeyDown, keys.ModControl},
	tea.KeyCtrlRight: {keys.KeyRight, keys.ModControl},
	tea.KeyCtrlLeft:  {keys.KeyLeft, keys.ModControl},
	tea.KeyCtrlHome:  {keys.KeyHome, keys.ModControl},
	tea.KeyCtrlEnd:   {keys.KeyEnd, keys.ModControl},

	tea.KeyCtrlShiftUp:    {keys.KeyUp, keys.ModControl | keys.ModShift},
	tea.KeyCtrlShiftDown:  {keys.KeyDown, keys.ModControl | keys.ModShift},
	tea.KeyCtrlShiftRight: {keys.KeyRight, keys.ModControl | keys.ModShift},
	tea.KeyCtrlShiftLeft:  {keys.KeyLeft, keys.ModControl | keys.ModShift},
	tea.KeyCtrlShiftHome:  {keys.KeyHome, keys.ModControl | keys.ModShift},
	tea.KeyCtrlShiftEnd:   {keys.KeyEnd, keys.ModControl | keys.ModShift},

	tea.KeyF1:  {keys.KeyF1, 0},
	tea.KeyF2:  {keys.KeyF2, 0},
	tea.KeyF3:  {keys.KeyF3, 0},
	tea.KeyF4:  {keys.KeyF4, 0},
	tea.KeyF5:  {keys.KeyF5, 0},
	tea.KeyF6:  {keys.KeyF6, 0},
	tea.KeyF7:  {keys.KeyF7, 0},
	tea.KeyF8:  {keys.KeyF8, 0},
	tea.KeyF9:  {keys.KeyF9, 0},
	tea.KeyF10: {keys.KeyF10, 0},
	tea.KeyF11: {keys.KeyF11, 0},
	tea.KeyF12: {keys.KeyF12, 0},
}

// keyEvents converts one bubbletea key message into terminal events.
func keyEvents(msg tea.KeyMsg) []events.Event {
	var alt keys.Mod
	if msg.Alt {
		alt = keys.ModAlt
	}

	switch {
	case msg.Type == tea.KeyRunes || msg.Type == tea.KeySpace:
		runes := msg.Runes
		if msg.Type == tea.KeySpace && len(runes) == 0 {
			runes = []rune{' '}
		}
		evs := make([]events.Event, 0, len(runes)+1)
		if msg.Alt && !msg.Paste {
			// Meta sends ESC as a prefix.
			evs = append(evs, events.KeyPress{Key: keys.KeyEscape})
		}
		for _, r := range runes {
			evs = append(evs, events.KeyTyped{Rune: r})
		}
		return evs

	case msg.Type == tea.KeyCtrlAt:
		return []events.Event{events.KeyTyped{Rune: 0}}
	}

	if kc, ok := namedKeys[msg.Type]; ok {
		return []events.Event{events.KeyPress{Key: kc.key, Mods: kc.mods | alt}}
	}

	if t := int(msg.Type); t >= int(tea.KeyCtrlA) && t <= int(tea.KeyCtrlZ) {
		return []events.Event{events.KeyPress{
			Key:  keys.KeyA + keys.Key(t-int(tea.KeyCtrlA)),
			Mods: keys.ModControl | alt,
		}}
	}
	return nil
}

// mouseEvents converts a bubbletea mouse message into terminal events.
func mouseEvents(msg tea.MouseMsg) []events.Event {
	var mods keys.Mod
	if msg.Shift {
		mods |= keys.ModShift
	}
	if msg.Ctrl {
		mods |= keys.ModControl
	}
	if msg.Alt {
		mods |= keys.ModAlt
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		return []events.Event{events.MouseScroll{DY: 1}}
	case tea.MouseButtonWheelDown:
		return []events.Event{events.MouseScroll{DY: -1}}
	case tea.MouseButtonWheelLeft:
		return []events.Event{events.MouseScroll{DX: -1}}
	case tea.MouseButtonWheelRight:
		return []events.Event{events.MouseScroll{DX: 1}}
	}

	button, ok := mouseButtons[msg.Button]
	switch msg.Action {
	case tea.MouseActionMotion:
		return []events.Event{events.MouseMove{X: float64(msg.X), Y: float64(msg.Y)}}
	case tea.MouseActionPress:
		if ok {
			return []events.Event{events.MousePress{Button: button, Mods: mods}}
		}
	case tea.MouseActionRelease:
		if ok {
			return []events.Event{events.MouseRelease{Button: button, Mods: mods}}
		}
	}
	return nil
}

var mouseButtons = map[tea.MouseButton]events.MouseButton{
	tea.MouseButtonLeft:   events.MouseButtonLeft,
	tea.MouseButtonRight:  events.MouseButtonRight,
	tea.MouseButtonMiddle: events.MouseButtonMiddle,
}
