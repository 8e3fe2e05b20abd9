package pos

import "strings"

// KeyAction is what a keyboard shortcut asks the terminal to do
type KeyAction string

const (
	KeyActionNone        KeyAction = "none"
	KeyActionFocusSearch KeyAction = "focus-search"
	KeyActionClearCart   KeyAction = "clear-cart"
	KeyActionCloseModal  KeyAction = "close-modal"
)

// Keymap resolves keyboard shortcuts. Keys typed into form fields never
// trigger shortcuts.
type Keymap struct {
	bindings map[string]KeyAction
}

// DefaultKeymap binds F1, F2 and Escape
func DefaultKeymap() Keymap {
	return Keymap{bindings: map[string]KeyAction{
		"F1":     KeyActionFocusSearch,
		"F2":     KeyActionClearCart,
		"ESCAPE": KeyActionCloseModal,
	}}
}

// Resolve maps a key pressed on an element with tag targetTag to an action
func (k Keymap) Resolve(key, targetTag string) KeyAction {
	switch strings.ToUpper(strings.TrimSpace(targetTag)) {
	case "INPUT", "TEXTAREA":
		return KeyActionNone
	}
	if action, ok := k.bindings[strings.ToUpper(strings.TrimSpace(key))]; ok {
		return action
	}
	return KeyActionNone
}

// NeedsConfirmation reports whether the action must be confirmed first
func (a KeyAction) NeedsConfirmation() bool {
	return a == KeyActionClearCart
}
