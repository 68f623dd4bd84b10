package transform

import (
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// nameSuffixes are generational suffixes dropped before matching.
var nameSuffixes = []string{" JR", " SR", " II", " III", " IV", " V"}

var multiSpaceRe = regexp.MustCompile(`\s{2,}`)

// NameNormalizer folds player names to a matching key: diacritics removed,
// upper case, punctuation and generational suffixes stripped. Results are
// memoized; it is safe for concurrent use.
type NameNormalizer struct {
	mu    sync.RWMutex
	memo  map[string]string
	limit int
}

// NewNameNormalizer creates a normalizer that remembers up to limit names.
// When full, the memo table is cleared.
func NewNameNormalizer(limit int) *NameNormalizer {
	if limit <= 0 {
		limit = 10000
	}
	return &NameNormalizer{memo: make(map[string]string), limit: limit}
}

// Normalize returns the matching key for name.
func (n *NameNormalizer) Normalize(name string) string {
	n.mu.RLock()
	v, ok := n.memo[name]
	n.mu.RUnlock()
	if ok {
		return v
	}

	v = normalizeName(name)

	n.mu.Lock()
	if len(n.memo) >= n.limit {
		n.memo = make(map[string]string)
	}
	n.memo[name] = v
	n.mu.Unlock()
	return v
}

// Len returns the number of memoized names.
func (n *NameNormalizer) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.memo)
}

var defaultNames = NewNameNormalizer(10000)

// NormalizeName uses the package-wide memoized normalizer.
func NormalizeName(name string) string {
	return defaultNames.Normalize(name)
}

func normalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	// Strip diacritics (é → e).
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, name); err == nil {
		name = folded
	}

	name = strings.ToUpper(name)
	name = strings.NewReplacer(
		".", "",
		",", "",
		"'", "",
		"’", "",
		"\"", "",
		"-", " ",
	).Replace(name)
	name = multiSpaceRe.ReplaceAllString(strings.TrimSpace(name), " ")

	for _, suffix := range nameSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}
	return strings.TrimSpace(name)
}

// teamAliases maps alternate franchise codes to the ones the warehouse uses.
var teamAliases = map[string]string{
	"GNB": "GB",
	"KAN": "KC",
	"LVR": "LV",
	"NOR": "NO",
	"NWE": "NE",
	"SFO": "SF",
	"TAM": "TB",
	"JAC": "JAX",
	"WSH": "WAS",
	"LA":  "LAR",
}

// NormalizeTeam upper-cases a team code and maps known aliases.
func NormalizeTeam(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if v, ok := teamAliases[code]; ok {
		return v
	}
	return code
}
