package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridstats/sports-cli/internal/model"
)

func newTestStandardizer(t *testing.T) *Standardizer {
	t.Helper()
	s, err := NewStandardizer(nil)
	require.NoError(t, err)
	return s
}

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Kansas City Chiefs", "kansas city chiefs"},
		{"  Green   Bay  Packers ", "green bay packers"},
		{"Montréal Canadiens", "montreal canadiens"},
		{"St. Louis Cardinals", "st louis cardinals"},
		{"L.A. Lakers", "l a lakers"},
		{"Oakland A's", "oakland a s"},
		{"49ers", "49ers"},
		{"D-backs", "d backs"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fold(tt.in), "Fold(%q)", tt.in)
	}
}

func TestStandardize_KnownAliases(t *testing.T) {
	s := newTestStandardizer(t)

	tests := []struct {
		league model.League
		raw    string
		want   string
	}{
		{model.LeagueNFL, "KC", "Kansas City Chiefs"},
		{model.LeagueNFL, "St. Louis Rams", "Los Angeles Rams"},
		{model.LeagueNFL, "Washington Football Team", "Washington Commanders"},
		{model.LeagueNBA, "LA Clippers", "Los Angeles Clippers"},
		{model.LeagueNBA, "New Jersey Nets", "Brooklyn Nets"},
		{model.LeagueMLB, "Cleveland Indians", "Cleveland Guardians"},
		{model.LeagueMLB, "Tampa Bay Devil Rays", "Tampa Bay Rays"},
		{model.LeagueNHL, "Montréal Canadiens", "Montreal Canadiens"},
		{model.LeagueNHL, "Phoenix Coyotes", "Utah Hockey Club"},
	}
	for _, tt := range tests {
		got, unmapped := s.Standardize(tt.league, tt.raw)
		assert.Equal(t, tt.want, got, "%s %q", tt.league, tt.raw)
		assert.False(t, unmapped, "%s %q should be mapped", tt.league, tt.raw)
	}
}

func TestStandardize_CanonicalMatchesItself(t *testing.T) {
	s := newTestStandardizer(t)

	got, unmapped := s.Standardize(model.LeagueNFL, "Kansas City Chiefs")
	assert.Equal(t, "Kansas City Chiefs", got)
	assert.False(t, unmapped)

	// Case and spacing differences still hit the canonical entry.
	got, unmapped = s.Standardize(model.LeagueNFL, "  kansas  city  CHIEFS ")
	assert.Equal(t, "Kansas City Chiefs", got)
	assert.False(t, unmapped)
}

func TestStandardize_LeagueIsolation(t *testing.T) {
	s := newTestStandardizer(t)

	nfl, _ := s.Standardize(model.LeagueNFL, "WAS")
	nba, _ := s.Standardize(model.LeagueNBA, "WAS")
	assert.Equal(t, "Washington Commanders", nfl)
	assert.Equal(t, "Washington Wizards", nba)
}

func TestStandardize_Unmapped(t *testing.T) {
	s := newTestStandardizer(t)

	got, unmapped := s.Standardize(model.LeagueNFL, "  Springfield   Atoms ")
	assert.Equal(t, "Springfield Atoms", got, "unmapped names are cleaned, not dropped")
	assert.True(t, unmapped)

	// Repeats of the same spelling register once.
	_, _ = s.Standardize(model.LeagueNFL, "springfield atoms")
	assert.Equal(t, []string{"Springfield Atoms"}, s.Unmapped())
}

func TestStandardize_EmptyName(t *testing.T) {
	s := newTestStandardizer(t)

	got, unmapped := s.Standardize(model.LeagueNFL, "   ")
	assert.Empty(t, got)
	assert.False(t, unmapped, "blank input is absent data, not an unknown team")
	assert.Empty(t, s.Unmapped())
}

func TestStandardize_ConfigExtension(t *testing.T) {
	s, err := NewStandardizer(map[string]map[string][]string{
		"nfl": {
			"Washington Commanders": {"Washington Sentinels"},
		},
	})
	require.NoError(t, err)

	got, unmapped := s.Standardize(model.LeagueNFL, "Washington Sentinels")
	assert.Equal(t, "Washington Commanders", got)
	assert.False(t, unmapped)

	// Embedded entries survive the merge.
	got, _ = s.Standardize(model.LeagueNFL, "KC")
	assert.Equal(t, "Kansas City Chiefs", got)
}

func TestNewStandardizer_UnknownLeague(t *testing.T) {
	_, err := NewStandardizer(map[string]map[string][]string{
		"xfl": {"Vegas Vipers": {"VGV"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown league")
}
