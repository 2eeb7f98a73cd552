package cli

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/dlev-tools/formantpad/pkg/voice"
)

// suggestThreshold is the minimum Jaro-Winkler similarity before a mistyped
// archetype name earns a "did you mean" hint.
const suggestThreshold = 0.70

// SuggestArchetype returns the catalogued archetype closest to a name that
// matched nothing exactly. The boolean reports whether a candidate cleared
// the similarity threshold; names that already resolve (after case folding)
// return false because no suggestion is needed.
func SuggestArchetype(name string) (voice.Archetype, bool) {
	in := strings.ToLower(strings.TrimSpace(name))
	if in == "" || voice.Archetype(in).IsValid() {
		return "", false
	}

	var best voice.Archetype
	var bestScore float64
	for _, a := range voice.Archetypes() {
		if s := matchr.JaroWinkler(in, string(a), false); s > bestScore {
			best, bestScore = a, s
		}
	}
	if bestScore < suggestThreshold {
		return "", false
	}
	return best, true
}
