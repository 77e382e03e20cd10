package itad

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// Session is the short-lived credential pair the history API expects.
type Session struct {
	Token  string
	Cookie string
}

type globalState struct {
	User struct {
		Token string `json:"token"`
	} `json:"user"`
}

// Bootstrap loads the seed history page and lifts the session token from its
// inline state and the cookies from its Set-Cookie headers.
func (c *Client) Bootstrap(ctx context.Context) (Session, error) {
	resp, err := c.get(ctx, historyPagePath(c.seedSlug), nil, nil)
	if err != nil {
		return Session{}, &BootstrapError{Reason: "seed page request failed", Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return Session{}, &BootstrapError{Reason: fmt.Sprintf("seed page status %d", resp.StatusCode())}
	}

	var g globalState
	if err := extractState(resp.Body(), globalStateStart, globalStateEnd, &g); err != nil {
		return Session{}, &BootstrapError{Reason: "page state not parsable", Err: err}
	}
	if g.User.Token == "" {
		return Session{}, &BootstrapError{Reason: "session token missing from page state"}
	}

	cookie := flattenCookies(resp.Header().Values("Set-Cookie"))
	if cookie == "" {
		return Session{}, &BootstrapError{Reason: "no session cookies set"}
	}

	return Session{Token: g.User.Token, Cookie: cookie}, nil
}

// flattenCookies keeps the name=value part of each Set-Cookie header.
func flattenCookies(headers []string) string {
	pairs := make([]string, 0, len(headers))
	for _, h := range headers {
		pair := strings.TrimSpace(strings.SplitN(h, ";", 2)[0])
		if pair != "" {
			pairs = append(pairs, pair)
		}
	}
	return strings.Join(pairs, "; ")
}

func (s Session) apiHeaders(referer string) map[string]string {
	return map[string]string{
		"Accept":            "application/json",
		"Content-Type":      "application/json",
		"ITAD-SessionToken": s.Token,
		"Cookie":            s.Cookie,
		"Referer":           referer,
	}
}
