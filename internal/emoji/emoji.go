// Package emoji decorates REPL output, with plain-text fallbacks for
// terminals where emoji rendering is unwanted.
package emoji

// emojiMap holds emoji and fallback mappings.
var emojiMap = map[string][2]string{
	// [emoji, fallback]
	"rocket":  {"🚀", "[START]"},
	"brain":   {"🧠", "[>]"},
	"success": {"✅", "[OK]"},
	"error":   {"❌", "[ERR]"},
	"warning": {"⚠️", "[WRN]"},
	"info":    {"ℹ️", "[INF]"},
	"books":   {"📚", "[LIST]"},
	"memo":    {"📝", "[DOC]"},
	"page":    {"📄", "[META]"},
	"trash":   {"🗑️", "[DEL]"},
	"search":  {"🔍", "[FIND]"},
	"export":  {"📤", "[OUT]"},
	"import":  {"📥", "[IN]"},
	"repeat":  {"🔁", "[LOOP]"},
	"wave":    {"👋", "[BYE]"},
}

var emojiDisabled bool

// SetDisabled sets the global emoji disabled state.
func SetDisabled(disabled bool) {
	emojiDisabled = disabled
}

// IsDisabled returns the current emoji disabled state.
func IsDisabled() bool {
	return emojiDisabled
}

// Get returns the emoji or its fallback based on the disabled setting.
func Get(key string) string {
	if mapping, exists := emojiMap[key]; exists {
		if emojiDisabled {
			return mapping[1]
		}
		return mapping[0]
	}
	return "[?]"
}
