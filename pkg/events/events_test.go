package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindCategories(t *testing.T) {
	tests := []struct {
		ev       Event
		kind     Kind
		category Category
	}{
		{Error{}, KindError, CategoryError},
		{WindowResize{Cols: 80, Rows: 24}, KindWindowResize, CategoryWindow},
		{WindowMove{}, KindWindowMove, CategoryWindow},
		{WindowFocus{Focused: true}, KindWindowFocus, CategoryWindow},
		{WindowClose{}, KindWindowClose, CategoryWindow},
		{KeyPress{}, KindKeyPress, CategoryKey},
		{KeyRelease{}, KindKeyRelease, CategoryKey},
		{KeyRepeat{}, KindKeyRepeat, CategoryKey},
		{KeyTyped{Rune: 'x'}, KindKeyTyped, CategoryKey},
		{MousePress{}, KindMousePress, CategoryMouse},
		{MouseRelease{}, KindMouseRelease, CategoryMouse},
		{MouseMove{}, KindMouseMove, CategoryMouse},
		{MouseScroll{}, KindMouseScroll, CategoryMouse},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.ev.Kind())
			assert.Equal(t, tt.category, tt.ev.Kind().Category())
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "key-typed", KindKeyTyped.String())
	assert.Equal(t, "unknown", Kind(200).String())
	assert.Equal(t, CategoryNone, KindNone.Category())
	assert.Equal(t, "mouse", CategoryMouse.String())
}
