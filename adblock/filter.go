package adblock

// Matcher is what the request pipeline needs from a built rule set.
type Matcher interface {
	Match(url string) MatchResult
	Len() int
}
