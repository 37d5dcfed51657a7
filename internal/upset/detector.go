// Package upset scores decided games against pre-game expectation and
// records the ones where the favorite lost. The favorite comes from the
// strongest signal available for the game: the betting market first,
// then league rankings, then season records. A game with no usable
// signal is skipped, not an error, and a favorite that simply won is
// not an upset.
package upset

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gridstats/sports-cli/internal/model"
	"github.com/gridstats/sports-cli/internal/store"
	"github.com/gridstats/sports-cli/pkg/oddsmath"
)

// Magnitudes live on one 0-100 scale across signal classes. The weights
// discount the weaker signals so a market-certified upset of a given
// size always outranks a ranking-only one, and that in turn outranks a
// record-only one.
const (
	rankingWeight = 0.75
	recordWeight  = 0.5

	// maxRankGap saturates the ranking scale; a 25-place gap is as
	// lopsided as rankings get.
	maxRankGap = 25

	// minRecordGap is the win-percentage spread below which two records
	// are too close to name a favorite.
	minRecordGap = 0.15

	// pointWinProbability converts a point-spread favorite to a win
	// probability, the market rule of thumb of roughly two and a half
	// percent per point, capped shy of certainty.
	pointWinProbability  = 0.025
	maxSpreadProbability = 0.95
)

// Detector runs upset detection over stored games.
type Detector struct {
	store store.Store
}

func NewDetector(st store.Store) *Detector {
	return &Detector{store: st}
}

// Detect evaluates every decided game for the league, optionally only
// those played since a date, stores the upsets it finds, and returns
// them. Team records are refreshed from the games table before they are
// read, so detection is self-sufficient after a fetch. Storage keys
// upsets by game, so replaying a range never duplicates rows.
func (d *Detector) Detect(ctx context.Context, league model.League, since time.Time) ([]model.Upset, error) {
	games, err := d.store.ListGames(ctx, store.GameFilter{
		League: league,
		Status: model.GameFinal,
		Since:  since,
	})
	if err != nil {
		return nil, eris.Wrap(err, "upset: load games")
	}

	recordsBySeason := make(map[string]map[string]model.TeamRecord)
	var upsets []model.Upset
	for _, g := range games {
		if !g.Decided() {
			continue
		}
		records, err := d.seasonRecords(ctx, recordsBySeason, league, g.Season)
		if err != nil {
			return nil, err
		}
		u, ok := Evaluate(g, teamRecord(records, g.HomeTeam), teamRecord(records, g.AwayTeam))
		if !ok {
			continue
		}
		zap.L().Debug("upset detected",
			zap.String("league", string(league)),
			zap.String("game", u.GameID),
			zap.String("winner", u.Winner),
			zap.String("loser", u.Loser),
			zap.String("signal", string(u.Signal)),
			zap.Float64("magnitude", u.Magnitude),
		)
		upsets = append(upsets, u)
	}

	var inserted int64
	if len(upsets) > 0 {
		if inserted, err = d.store.InsertUpsets(ctx, upsets); err != nil {
			return nil, eris.Wrap(err, "upset: store upsets")
		}
	}
	zap.L().Info("upset detection finished",
		zap.String("league", string(league)),
		zap.Int("games", len(games)),
		zap.Int("detected", len(upsets)),
		zap.Int64("inserted", inserted),
	)
	return upsets, nil
}

// seasonRecords refreshes and loads the team records for one season,
// memoized for the run.
func (d *Detector) seasonRecords(ctx context.Context, memo map[string]map[string]model.TeamRecord, league model.League, season string) (map[string]model.TeamRecord, error) {
	if records, ok := memo[season]; ok {
		return records, nil
	}
	if _, err := d.store.RefreshTeamRecords(ctx, league, season); err != nil {
		return nil, eris.Wrapf(err, "upset: refresh team records for %q", season)
	}
	list, err := d.store.ListTeamRecords(ctx, league, season)
	if err != nil {
		return nil, eris.Wrapf(err, "upset: load team records for %q", season)
	}
	records := make(map[string]model.TeamRecord, len(list))
	for _, r := range list {
		records[r.Team] = r
	}
	memo[season] = records
	return records, nil
}

func teamRecord(records map[string]model.TeamRecord, team string) *model.TeamRecord {
	if r, ok := records[team]; ok {
		return &r
	}
	return nil
}

// favoriteCall is one signal's verdict: who was expected to win, how
// strongly, and the evidence behind it. The reason is phrased for the
// case where the call turns out wrong, the only case it is stored.
type favoriteCall struct {
	signal       model.UpsetSignal
	favorite     string
	underdog     string
	magnitude    float64
	reason       string
	factors      []model.Factor
	favoriteOdds *float64
}

// Evaluate scores one game against the strongest expectation signal
// available for it. It returns false when the game is undecided or
// drawn, when no signal names a favorite, or when the favorite won.
// home and away carry the teams' season records and may be nil.
//
// Once a signal names a favorite its verdict is final: a moneyline
// favorite that wins is not re-judged against records. Weaker signals
// are consulted only when the stronger ones cannot make a call.
func Evaluate(g model.Game, home, away *model.TeamRecord) (model.Upset, bool) {
	winner := g.Winner()
	if winner == "" {
		return model.Upset{}, false
	}

	call, ok := marketCall(g)
	if !ok {
		call, ok = rankingCall(g, home, away)
	}
	if !ok {
		call, ok = recordCall(g, home, away)
	}
	if !ok || call.favorite == winner {
		return model.Upset{}, false
	}

	return model.Upset{
		League:       g.League,
		GameID:       g.ExternalID,
		Season:       g.Season,
		GameDate:     g.GameDate,
		HomeTeam:     g.HomeTeam,
		AwayTeam:     g.AwayTeam,
		HomeScore:    *g.HomeScore,
		AwayScore:    *g.AwayScore,
		Winner:       winner,
		Loser:        g.Loser(),
		Signal:       call.signal,
		Magnitude:    call.magnitude,
		Reason:       call.reason,
		Factors:      call.factors,
		SpreadLine:   g.SpreadLine,
		FavoriteOdds: call.favoriteOdds,
		DetectedAt:   time.Now().UTC(),
	}, true
}

// marketCall derives the favorite from betting lines: the moneyline pair
// when both prices are posted, else the point spread.
func marketCall(g model.Game) (favoriteCall, bool) {
	if g.MoneylineHome != nil && g.MoneylineAway != nil {
		if call, ok := moneylineCall(g); ok {
			return call, true
		}
	}
	if g.SpreadLine != nil && *g.SpreadLine != 0 {
		return spreadCall(g), true
	}
	return favoriteCall{}, false
}

func moneylineCall(g model.Game) (favoriteCall, bool) {
	homeProb, err := oddsmath.AmericanImpliedProbability(*g.MoneylineHome)
	if err != nil {
		return favoriteCall{}, false
	}
	awayProb, err := oddsmath.AmericanImpliedProbability(*g.MoneylineAway)
	if err != nil {
		return favoriteCall{}, false
	}
	fairHome, fairAway, err := oddsmath.FairProbabilities(homeProb, awayProb)
	if err != nil || fairHome == fairAway {
		// A pick'em market names no favorite.
		return favoriteCall{}, false
	}

	call := favoriteCall{signal: model.SignalOdds, favorite: g.HomeTeam, underdog: g.AwayTeam}
	fair, line := fairHome, *g.MoneylineHome
	if fairAway > fairHome {
		call.favorite, call.underdog = g.AwayTeam, g.HomeTeam
		fair, line = fairAway, *g.MoneylineAway
	}
	call.magnitude = fair * 100
	if decimal, err := oddsmath.AmericanToDecimal(line); err == nil {
		call.favoriteOdds = &decimal
	}
	call.reason = fmt.Sprintf("%s beat %s, a %.0f%% moneyline favorite", call.underdog, call.favorite, fair*100)
	call.factors = []model.Factor{
		{Signal: model.SignalOdds, Detail: "favorite fair win probability", Value: fair},
		{Signal: model.SignalOdds, Detail: "favorite moneyline", Value: float64(line)},
	}
	return call, true
}

// spreadCall names the favorite from the spread sign (negative = home
// favored) and approximates the market's win probability from the line
// size.
func spreadCall(g model.Game) favoriteCall {
	spread := *g.SpreadLine
	call := favoriteCall{signal: model.SignalOdds, favorite: g.HomeTeam, underdog: g.AwayTeam}
	if spread > 0 {
		call.favorite, call.underdog = g.AwayTeam, g.HomeTeam
	}
	prob := spreadWinProbability(spread)
	call.magnitude = prob * 100
	decimal := 1 / prob
	call.favoriteOdds = &decimal
	call.reason = fmt.Sprintf("%s overcame a %.1f-point spread against %s",
		call.underdog, math.Abs(spread), call.favorite)
	call.factors = []model.Factor{
		{Signal: model.SignalOdds, Detail: "point spread, home perspective", Value: spread},
		{Signal: model.SignalOdds, Detail: "favorite win probability from spread", Value: prob},
	}
	return call
}

func spreadWinProbability(spread float64) float64 {
	return math.Min(0.5+pointWinProbability*math.Abs(spread), maxSpreadProbability)
}

// rankingCall compares league rankings. Both teams need one, lower is
// better, and equal ranks name no favorite.
func rankingCall(g model.Game, home, away *model.TeamRecord) (favoriteCall, bool) {
	if home == nil || away == nil || home.Ranking == nil || away.Ranking == nil {
		return favoriteCall{}, false
	}
	homeRank, awayRank := *home.Ranking, *away.Ranking
	if homeRank == awayRank {
		return favoriteCall{}, false
	}

	call := favoriteCall{signal: model.SignalRanking, favorite: g.HomeTeam, underdog: g.AwayTeam}
	favRank, dogRank := homeRank, awayRank
	if awayRank < homeRank {
		call.favorite, call.underdog = g.AwayTeam, g.HomeTeam
		favRank, dogRank = awayRank, homeRank
	}
	gap := dogRank - favRank
	call.magnitude = math.Min(float64(gap), maxRankGap) / maxRankGap * 100 * rankingWeight
	call.reason = fmt.Sprintf("#%d %s beat #%d %s", dogRank, call.underdog, favRank, call.favorite)
	call.factors = []model.Factor{
		{Signal: model.SignalRanking, Detail: "ranking gap", Value: float64(gap)},
		{Signal: model.SignalRanking, Detail: "favorite ranking", Value: float64(favRank)},
		{Signal: model.SignalRanking, Detail: "underdog ranking", Value: float64(dogRank)},
	}
	return call, true
}

// recordCall compares season win percentages. A team with no decided
// games has no record rather than a losing one, and records closer than
// minRecordGap name no favorite.
func recordCall(g model.Game, home, away *model.TeamRecord) (favoriteCall, bool) {
	if !hasGames(home) || !hasGames(away) {
		return favoriteCall{}, false
	}
	homePct, awayPct := home.WinPct(), away.WinPct()
	gap := math.Abs(homePct - awayPct)
	if gap < minRecordGap {
		return favoriteCall{}, false
	}

	call := favoriteCall{signal: model.SignalRecord, favorite: g.HomeTeam, underdog: g.AwayTeam}
	favPct, dogPct := homePct, awayPct
	if awayPct > homePct {
		call.favorite, call.underdog = g.AwayTeam, g.HomeTeam
		favPct, dogPct = awayPct, homePct
	}
	call.magnitude = gap * 100 * recordWeight
	call.reason = fmt.Sprintf("%s (%.3f) beat %s (%.3f)", call.underdog, dogPct, call.favorite, favPct)
	call.factors = []model.Factor{
		{Signal: model.SignalRecord, Detail: "win percentage gap", Value: gap},
		{Signal: model.SignalRecord, Detail: "favorite win percentage", Value: favPct},
		{Signal: model.SignalRecord, Detail: "underdog win percentage", Value: dogPct},
	}
	return call, true
}

func hasGames(r *model.TeamRecord) bool {
	return r != nil && r.Wins+r.Losses+r.Ties > 0
}
