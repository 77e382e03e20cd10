package itad

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"game-price-tracker/internal/models"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeTitle lowercases and collapses every non-alphanumeric run to a space.
func NormalizeTitle(s string) string {
	return strings.TrimSpace(nonAlnum.ReplaceAllString(strings.ToLower(s), " "))
}

// ScoreCandidate rates how well a search hit's title matches the query.
// An exact normalized match always outranks any partial match.
func ScoreCandidate(query, candidate string) int {
	q := NormalizeTitle(query)
	c := NormalizeTitle(candidate)
	if q == "" || c == "" {
		return 0
	}
	if q == c {
		return 1000
	}

	score := 0
	if strings.Contains(c, q) {
		score += 500
	}
	if strings.Contains(q, c) {
		score += 400
	}

	qTokens := strings.Split(q, " ")
	cTokens := make(map[string]struct{})
	for _, t := range strings.Split(c, " ") {
		cTokens[t] = struct{}{}
	}
	hit := 0
	for _, t := range qTokens {
		if _, ok := cTokens[t]; ok {
			hit++
		}
	}
	score += int(math.Round(float64(hit) / float64(len(qTokens)) * 300))

	diff := len(c) - len(q)
	if diff < 0 {
		diff = -diff
	}
	return score - diff
}

type searchCandidate struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// ResolveGame maps a local title to an ITAD game, trying the known slug's
// history page first and falling back to scored search.
func (c *Client) ResolveGame(ctx context.Context, title, slug string, session *Session) (*models.GameMatch, error) {
	if slug != "" {
		match, err := c.matchBySlug(ctx, slug, session)
		if err == nil {
			return match, nil
		}
		c.logger.Printf("  slug lookup %q failed, falling back to search: %v", slug, err)
	}

	match, err := c.matchBySearch(ctx, title)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrMatchNotFound, title, err)
	}
	return match, nil
}

func (c *Client) matchBySlug(ctx context.Context, slug string, session *Session) (*models.GameMatch, error) {
	var headers map[string]string
	if session != nil && session.Cookie != "" {
		headers = map[string]string{"Cookie": session.Cookie}
	}
	resp, err := c.get(ctx, historyPagePath(slug), headers, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("history page status %d", resp.StatusCode())
	}

	var state []any
	if err := extractState(resp.Body(), pageStateStart, pageStateEnd, &state); err != nil {
		return nil, err
	}
	if len(state) < 2 {
		return nil, fmt.Errorf("%w: page state too short", ErrMalformedResponse)
	}
	entry, _ := state[1].(map[string]any)
	game, _ := entry["game"].(map[string]any)
	id := stringField(game, "id")
	if id == "" {
		return nil, fmt.Errorf("%w: page state has no game id", ErrMalformedResponse)
	}

	return &models.GameMatch{
		RemoteID:    id,
		RemoteSlug:  stringField(game, "slug"),
		RemoteTitle: stringField(game, "title"),
		MatchMethod: models.MatchViaSlug,
	}, nil
}

func (c *Client) matchBySearch(ctx context.Context, title string) (*models.GameMatch, error) {
	resp, err := c.get(ctx, "/search/api/all/", nil, map[string]string{"q": title})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("search status %d", resp.StatusCode())
	}

	var parsed struct {
		Games []searchCandidate `json:"games"`
	}
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	best, ok := bestCandidate(title, parsed.Games)
	if !ok || best.ID == "" {
		return nil, fmt.Errorf("search returned no candidates")
	}

	return &models.GameMatch{
		RemoteID:    best.ID,
		RemoteSlug:  best.Slug,
		RemoteTitle: best.Title,
		MatchMethod: models.MatchViaSearch,
	}, nil
}

// bestCandidate returns the highest scoring candidate; ties keep input order.
func bestCandidate(query string, candidates []searchCandidate) (searchCandidate, bool) {
	if len(candidates) == 0 {
		return searchCandidate{}, false
	}
	type scored struct {
		candidate searchCandidate
		score     int
	}
	ranked := make([]scored, len(candidates))
	for i, cand := range candidates {
		ranked[i] = scored{candidate: cand, score: ScoreCandidate(query, cand.Title)}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	return ranked[0].candidate, true
}

func stringField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}
