package ctf

import (
	"sort"
	"strings"
)

// overlayMarkers are attribute, class or text fragments injected by known
// assistant overlays.
var overlayMarkers = []string{
	"cluely",
	"interview-coder",
	"interviewcoder",
	"final-round",
	"lockedin",
	"leetcode-wizard",
	"ai-assistant",
	"assistant-overlay",
	"gpt-overlay",
	"chatgpt",
	"copilot",
	"sider-",
	"monica-",
	"merlin-",
	"ghost-overlay",
	"data-ai-overlay",
}

// assistantChords are OS or assistant invocation shortcuts, in canonical form.
var assistantChords = map[string]struct{}{
	"alt+space":      {},
	"meta+space":     {},
	"meta+c":         {},
	"meta+h":         {},
	"meta+enter":     {},
	"ctrl+enter":     {},
	"meta+\\":        {},
	"ctrl+\\":        {},
	"meta+shift+s":   {},
	"meta+shift+4":   {},
	"meta+shift+5":   {},
	"ctrl+shift+i":   {},
	"ctrl+shift+j":   {},
	"meta+alt+i":     {},
	"meta+alt+j":     {},
	"f12":            {},
	"printscreen":    {},
	"ctrl+shift+tab": {},
}

// IsOverlayDescriptor reports whether an element descriptor (attributes,
// classes and visible text joined together) matches the overlay denylist.
func IsOverlayDescriptor(desc string) bool {
	desc = strings.ToLower(desc)
	for _, m := range overlayMarkers {
		if strings.Contains(desc, m) {
			return true
		}
	}
	return false
}

var modifierRank = map[string]int{"ctrl": 0, "alt": 1, "shift": 2, "meta": 3}

var keyAliases = map[string]string{
	"control":   "ctrl",
	"option":    "alt",
	"cmd":       "meta",
	"command":   "meta",
	"win":       "meta",
	"super":     "meta",
	"os":        "meta",
	"return":    "enter",
	"prtsc":     "printscreen",
	"backslash": "\\",
}

// NormalizeChord canonicalizes a chord like "Shift+Cmd+S" to "meta+shift+s":
// lowercase, aliases resolved, modifiers ordered ctrl, alt, shift, meta.
func NormalizeChord(chord string) string {
	var mods, keys []string
	for _, part := range strings.Split(chord, "+") {
		p := strings.ToLower(strings.TrimSpace(part))
		if p == "" {
			continue
		}
		if a, ok := keyAliases[p]; ok {
			p = a
		}
		if _, ok := modifierRank[p]; ok {
			mods = append(mods, p)
			continue
		}
		keys = append(keys, p)
	}
	sort.Slice(mods, func(i, j int) bool { return modifierRank[mods[i]] < modifierRank[mods[j]] })
	return strings.Join(append(mods, keys...), "+")
}

func IsSuspiciousChord(chord string) bool {
	_, ok := assistantChords[NormalizeChord(chord)]
	return ok
}
