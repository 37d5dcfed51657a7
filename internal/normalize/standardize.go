// Package normalize reconciles entity identity across sources. Different
// APIs spell the same franchise differently ("LA Rams", "Los Angeles Rams",
// "STL"); Standardize maps them all onto one canonical name so games,
// records, and rosters join cleanly.
package normalize

import (
	_ "embed"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"

	"github.com/gridstats/sports-cli/internal/model"
)

//go:embed aliases.yaml
var embeddedAliases []byte

// aliasFile is the YAML shape of the alias table: per league, canonical
// name → the alternate spellings sources actually emit. Every canonical
// name also matches itself, so only true alternates need listing.
type aliasFile struct {
	Leagues map[string]map[string][]string `yaml:"leagues"`
}

// Standardizer maps source team spellings onto canonical names. It is safe
// for concurrent use; unmapped names are remembered so operators can pull
// the list and extend the table.
type Standardizer struct {
	aliases map[model.League]map[string]string // folded alias → canonical

	mu       sync.Mutex
	unmapped map[string]string // league|folded key → first raw spelling seen
}

// NewStandardizer loads the embedded alias table and merges extra entries
// from configuration (league → canonical → aliases). Config entries win on
// conflict so a deployment can correct the embedded table without a
// rebuild.
func NewStandardizer(extra map[string]map[string][]string) (*Standardizer, error) {
	var f aliasFile
	if err := yaml.Unmarshal(embeddedAliases, &f); err != nil {
		return nil, eris.Wrap(err, "normalize: parse embedded alias table")
	}

	s := &Standardizer{
		aliases:  make(map[model.League]map[string]string),
		unmapped: make(map[string]string),
	}
	if err := s.merge(f.Leagues); err != nil {
		return nil, err
	}
	if err := s.merge(extra); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Standardizer) merge(leagues map[string]map[string][]string) error {
	for leagueName, table := range leagues {
		league, err := model.ParseLeague(leagueName)
		if err != nil {
			return eris.Wrapf(err, "normalize: alias table")
		}
		dst := s.aliases[league]
		if dst == nil {
			dst = make(map[string]string)
			s.aliases[league] = dst
		}
		for canonical, names := range table {
			dst[Fold(canonical)] = canonical
			for _, alias := range names {
				dst[Fold(alias)] = canonical
			}
		}
	}
	return nil
}

// Standardize returns the canonical name for a source spelling. When the
// table has no entry, the name is cleaned mechanically (trimmed, collapsed
// whitespace) and flagged unmapped rather than dropped; the record still
// flows, and the miss is logged once so the table can grow.
func (s *Standardizer) Standardize(league model.League, raw string) (name string, unmapped bool) {
	cleaned := strings.Join(strings.Fields(raw), " ")
	if cleaned == "" {
		return "", false
	}

	key := Fold(cleaned)
	if canonical, ok := s.aliases[league][key]; ok {
		return canonical, false
	}

	s.mu.Lock()
	if _, seen := s.unmapped[string(league)+"|"+key]; !seen {
		s.unmapped[string(league)+"|"+key] = cleaned
		s.mu.Unlock()
		zap.L().Warn("no canonical mapping for team name",
			zap.String("league", string(league)),
			zap.String("name", cleaned),
		)
	} else {
		s.mu.Unlock()
	}
	return cleaned, true
}

// Unmapped returns every distinct name seen without a table entry, sorted,
// for the status surface.
func (s *Standardizer) Unmapped() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.unmapped))
	for _, raw := range s.unmapped {
		names = append(names, raw)
	}
	s.mu.Unlock()
	sort.Strings(names)
	return names
}

var foldChain = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold reduces a name to its lookup key: accents stripped, punctuation
// removed, lowercased, whitespace collapsed. "Montréal Canadiens" and
// "montreal  canadiens" fold identically.
func Fold(name string) string {
	folded, _, err := transform.String(foldChain, name)
	if err != nil {
		// Fold must always produce a usable key; on a transform failure
		// the raw string is the best available.
		folded = name
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r) || r == '-' || r == '.' || r == '\'' || r == '&' || r == '/':
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
