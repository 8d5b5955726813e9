package profile

import (
	"sort"
	"strconv"
	"strings"
)

// Tier classifies an influencer by follower count.
type Tier string

const (
	TierNano    Tier = "Nano"
	TierMicro   Tier = "Micro"
	TierMacro   Tier = "Macro"
	TierMega    Tier = "Mega"
	TierUnknown Tier = "Unknown"
)

// Follower thresholds for tier classification. Shared by aggregation and
// scoring so both paths classify identically.
const (
	nanoLimit  = 10_000
	microLimit = 100_000
	macroLimit = 1_000_000
)

// TierFor classifies a follower count. Counts that could not be determined
// (zero or negative) map to Unknown.
func TierFor(followers int64) Tier {
	switch {
	case followers <= 0:
		return TierUnknown
	case followers < nanoLimit:
		return TierNano
	case followers < microLimit:
		return TierMicro
	case followers < macroLimit:
		return TierMacro
	default:
		return TierMega
	}
}

// ParseTier parses a tier name case-insensitively. Unrecognized names
// return Unknown.
func ParseTier(s string) Tier {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "nano":
		return TierNano
	case "micro":
		return TierMicro
	case "macro":
		return TierMacro
	case "mega":
		return TierMega
	default:
		return TierUnknown
	}
}

// RawPost is a single post by an influencer, as read from the posts sheet.
type RawPost struct {
	InfluencerID string
	Followers    int64
	Likes        float64
	Comments     float64
	Shares       float64
	Reach        float64
	ContentType  string
	Hashtags     string
	PostedAt     string
	Location     string
}

// Profile is the aggregated capability profile of one influencer.
type Profile struct {
	InfluencerID      string
	AvgInteractions   float64
	AvgEngagementRate float64
	AvgShareRate      float64
	AvgCommentRate    float64
	AvgReachRate      float64
	Followers         int64
	Location          string
	Tier              Tier
}

// ParseResult reports what happened during post parsing.
type ParseResult struct {
	Posts   []RawPost
	Dropped int
}

// Required and optional column headers in the posts sheet. Matching is
// case-insensitive.
const (
	colInfluencerID = "influencer id"
	colLikes        = "likes"
	colComments     = "comments"
	colShares       = "shares"
	colFollowers    = "followers"
	colReach        = "post reach"
	colContentType  = "content type"
	colHashtags     = "hashtags"
	colPostDate     = "post date"
	colCountry      = "country"
	colLocation     = "location"
)

// ParsePosts converts sheet rows into RawPosts using the header row to
// locate columns. Rows missing a required column, failing numeric coercion
// on any required field, or with followers <= 0 are dropped silently; they
// only show up in the Dropped count.
func ParsePosts(header []string, rows [][]string) ParseResult {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	required := []string{colInfluencerID, colLikes, colComments, colShares, colFollowers, colReach}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			// Without a usable header nothing can be parsed.
			return ParseResult{Dropped: len(rows)}
		}
	}

	var r ParseResult
	for _, row := range rows {
		post, ok := parsePost(idx, row)
		if !ok {
			r.Dropped++
			continue
		}
		r.Posts = append(r.Posts, post)
	}
	return r
}

func parsePost(idx map[string]int, row []string) (RawPost, bool) {
	id := strings.TrimSpace(cell(row, idx, colInfluencerID))
	if id == "" {
		return RawPost{}, false
	}

	likes, ok := parseNumber(cell(row, idx, colLikes))
	if !ok {
		return RawPost{}, false
	}
	comments, ok := parseNumber(cell(row, idx, colComments))
	if !ok {
		return RawPost{}, false
	}
	shares, ok := parseNumber(cell(row, idx, colShares))
	if !ok {
		return RawPost{}, false
	}
	followers, ok := parseNumber(cell(row, idx, colFollowers))
	if !ok || followers <= 0 {
		return RawPost{}, false
	}
	reach, ok := parseNumber(cell(row, idx, colReach))
	if !ok {
		return RawPost{}, false
	}

	location := strings.TrimSpace(cell(row, idx, colCountry))
	if location == "" {
		location = strings.TrimSpace(cell(row, idx, colLocation))
	}

	return RawPost{
		InfluencerID: id,
		Followers:    int64(followers),
		Likes:        likes,
		Comments:     comments,
		Shares:       shares,
		Reach:        reach,
		ContentType:  strings.TrimSpace(cell(row, idx, colContentType)),
		Hashtags:     strings.TrimSpace(cell(row, idx, colHashtags)),
		PostedAt:     strings.TrimSpace(cell(row, idx, colPostDate)),
		Location:     location,
	}, true
}

func cell(row []string, idx map[string]int, name string) string {
	i, ok := idx[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

// parseNumber coerces a sheet cell to a number, tolerating thousands
// separators and surrounding whitespace.
func parseNumber(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// BuildProfiles aggregates posts into one Profile per influencer: mean
// interaction and rate metrics across that influencer's posts, and the most
// recent row's follower count (followers change over time; the profile
// should reflect now, not an average). Output is ordered by influencer ID.
func BuildProfiles(posts []RawPost) []Profile {
	type acc struct {
		n            int
		interactions float64
		engagement   float64
		share        float64
		comment      float64
		reach        float64
		followers    int64
		location     string
	}

	groups := make(map[string]*acc)
	for _, p := range posts {
		if p.Followers <= 0 {
			continue
		}
		a := groups[p.InfluencerID]
		if a == nil {
			a = &acc{}
			groups[p.InfluencerID] = a
		}

		f := float64(p.Followers)
		interactions := p.Likes + p.Comments + p.Shares
		a.n++
		a.interactions += interactions
		a.engagement += interactions / f
		a.share += p.Shares / f
		a.comment += p.Comments / f
		a.reach += p.Reach / f
		a.followers = p.Followers
		if p.Location != "" {
			a.location = p.Location
		}
	}

	profiles := make([]Profile, 0, len(groups))
	for id, a := range groups {
		n := float64(a.n)
		profiles = append(profiles, Profile{
			InfluencerID:      id,
			AvgInteractions:   a.interactions / n,
			AvgEngagementRate: a.engagement / n,
			AvgShareRate:      a.share / n,
			AvgCommentRate:    a.comment / n,
			AvgReachRate:      a.reach / n,
			Followers:         a.followers,
			Location:          a.location,
			Tier:              TierFor(a.followers),
		})
	}

	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].InfluencerID < profiles[j].InfluencerID
	})
	return profiles
}
