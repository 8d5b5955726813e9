package scoring

import (
	"sort"
	"strings"

	"github.com/influmate/influmate/internal/profile"
)

// Weights is the linear weight vector applied to the normalized rate
// metrics of a profile.
type Weights struct {
	Engagement float64
	Share      float64
	Comment    float64
	Reach      float64
}

// TierBonus adds a flat bonus when the profile's tier is in Tiers.
type TierBonus struct {
	Tiers  []profile.Tier
	Weight float64
}

// Rule maps campaign goals to a weight vector. A rule matches when the goal
// text contains any of its keywords (case-insensitive); a rule with no
// keywords matches every goal and acts as the default.
type Rule struct {
	Name     string
	Keywords []string
	Weights  Weights
	Bonus    TierBonus
}

func (r Rule) matches(goal string) bool {
	if len(r.Keywords) == 0 {
		return true
	}
	for _, kw := range r.Keywords {
		if kw != "" && strings.Contains(goal, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func (r Rule) score(eng, share, comment, reach float64, tier profile.Tier) float64 {
	s := r.Weights.Engagement*eng + r.Weights.Share*share + r.Weights.Comment*comment + r.Weights.Reach*reach
	for _, t := range r.Bonus.Tiers {
		if t == tier {
			s += r.Bonus.Weight
			break
		}
	}
	return s
}

// DefaultRules is the built-in goal-to-weights table. Order matters: the
// first matching rule wins, and the keywordless default must come last.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "brand-awareness",
			Keywords: []string{"brand awareness"},
			Weights:  Weights{Reach: 0.6, Share: 0.2},
			Bonus:    TierBonus{Tiers: []profile.Tier{profile.TierMacro, profile.TierMega}, Weight: 0.2},
		},
		{
			Name:     "engagement",
			Keywords: []string{"engagement"},
			Weights:  Weights{Engagement: 0.5, Comment: 0.4},
			Bonus:    TierBonus{Tiers: []profile.Tier{profile.TierNano, profile.TierMicro}, Weight: 0.1},
		},
		{
			Name:     "conversion",
			Keywords: []string{"sales", "attract new users"},
			Weights:  Weights{Engagement: 0.6, Comment: 0.2},
			Bonus:    TierBonus{Tiers: []profile.Tier{profile.TierNano, profile.TierMicro}, Weight: 0.2},
		},
		{
			Name:     "product-launch",
			Keywords: []string{"launch a new product"},
			Weights:  Weights{Reach: 0.4, Engagement: 0.4},
			Bonus:    TierBonus{Tiers: []profile.Tier{profile.TierMicro, profile.TierMacro}, Weight: 0.2},
		},
		{
			Name:    "default",
			Weights: Weights{Engagement: 0.5, Reach: 0.5},
		},
	}
}

// Request is the targeting side of a campaign row: what to optimize for
// and which slice of the snapshot to consider.
type Request struct {
	Goal           string
	TierFilter     string
	LocationFilter string
}

// ScoredProfile is one profile with its match score for a campaign.
type ScoredProfile struct {
	profile.Profile
	Score float64
}

// Engine scores influencer profiles against campaign requests. It never
// mutates the snapshot it is given.
type Engine struct {
	rules []Rule
}

// NewEngine creates a scoring engine. With no rules it uses DefaultRules.
func NewEngine(rules []Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Engine{rules: rules}
}

// RuleFor selects the first rule matching the goal text. An empty or
// unmatched goal falls through to the keywordless default; if the table has
// none, the last rule applies.
func (e *Engine) RuleFor(goal string) Rule {
	goal = strings.ToLower(goal)
	for _, r := range e.rules {
		if r.matches(goal) {
			return r
		}
	}
	return e.rules[len(e.rules)-1]
}

// Rank scores the whole snapshot for a campaign goal and returns it in
// descending score order. Ties keep snapshot order. The four rate metrics
// are min-max normalized across the snapshot first, so scores are only
// comparable within one snapshot.
func (e *Engine) Rank(goal string, snapshot []profile.Profile) []ScoredProfile {
	if len(snapshot) == 0 {
		return nil
	}

	ns := normalizeRates(snapshot)
	rule := e.RuleFor(goal)

	scored := make([]ScoredProfile, len(snapshot))
	for i, p := range snapshot {
		scored[i] = ScoredProfile{
			Profile: p,
			Score:   rule.score(ns.engagement[i], ns.share[i], ns.comment[i], ns.reach[i], p.Tier),
		}
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	return scored
}

// Shortlist picks the top n candidates for a campaign. Location and tier
// filters are exact, case-insensitive matches against the snapshot. An
// empty filtered set falls back to the n highest-raw-follower profiles of
// the unfiltered snapshot, ordered by followers, so a report is never
// empty. A non-empty filtered set is narrowed to n candidates by the raw
// blend followers*0.6 + engagement*0.4 and then ordered by the weighted
// score.
func (e *Engine) Shortlist(req Request, snapshot []profile.Profile, n int) []ScoredProfile {
	if len(snapshot) == 0 {
		return nil
	}
	if n <= 0 {
		n = 3
	}

	ns := normalizeRates(snapshot)
	rule := e.RuleFor(req.Goal)
	scoreAt := func(i int) float64 {
		return rule.score(ns.engagement[i], ns.share[i], ns.comment[i], ns.reach[i], snapshot[i].Tier)
	}

	candidates := filterIndices(snapshot, req)

	if len(candidates) == 0 {
		// Never return nothing: top n of the full snapshot by raw followers.
		all := indices(len(snapshot))
		sort.SliceStable(all, func(i, j int) bool {
			return snapshot[all[i]].Followers > snapshot[all[j]].Followers
		})
		if len(all) > n {
			all = all[:n]
		}
		out := make([]ScoredProfile, len(all))
		for k, i := range all {
			out[k] = ScoredProfile{Profile: snapshot[i], Score: scoreAt(i)}
		}
		return out
	}

	// Narrow by unnormalized blended raw rank, present by weighted score.
	sort.SliceStable(candidates, func(i, j int) bool {
		return rawBlend(snapshot[candidates[i]]) > rawBlend(snapshot[candidates[j]])
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}

	out := make([]ScoredProfile, len(candidates))
	for k, i := range candidates {
		out[k] = ScoredProfile{Profile: snapshot[i], Score: scoreAt(i)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func rawBlend(p profile.Profile) float64 {
	return float64(p.Followers)*0.6 + p.AvgEngagementRate*0.4
}

func filterIndices(snapshot []profile.Profile, req Request) []int {
	tier := strings.TrimSpace(req.TierFilter)
	location := strings.TrimSpace(req.LocationFilter)

	var out []int
	for i, p := range snapshot {
		if tier != "" && !strings.EqualFold(string(p.Tier), tier) {
			continue
		}
		if location != "" && !strings.EqualFold(p.Location, location) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

type rateNorms struct {
	engagement []float64
	share      []float64
	comment    []float64
	reach      []float64
}

// normalizeRates min-max scales the four rate metrics across the snapshot
// to [0,1]. A metric that is constant across the snapshot scales to 0.
func normalizeRates(snapshot []profile.Profile) rateNorms {
	pick := func(get func(profile.Profile) float64) []float64 {
		vals := make([]float64, len(snapshot))
		for i, p := range snapshot {
			vals[i] = get(p)
		}
		return minMax(vals)
	}
	return rateNorms{
		engagement: pick(func(p profile.Profile) float64 { return p.AvgEngagementRate }),
		share:      pick(func(p profile.Profile) float64 { return p.AvgShareRate }),
		comment:    pick(func(p profile.Profile) float64 { return p.AvgCommentRate }),
		reach:      pick(func(p profile.Profile) float64 { return p.AvgReachRate }),
	}
}

func minMax(vals []float64) []float64 {
	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	out := make([]float64, len(vals))
	if hi == lo {
		return out
	}
	for i, v := range vals {
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}
