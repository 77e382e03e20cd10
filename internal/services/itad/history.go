package itad

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"game-price-tracker/internal/models"
	"game-price-tracker/internal/pricing"

	"github.com/go-resty/resty/v2"
)

// Locale every history request is pinned to, so prices compare across titles.
const (
	PinnedRegion   = "US"
	PinnedCurrency = "USD"
)

// History is the assembled price history of one game.
type History struct {
	Points  []models.MergedPoint
	Monthly []models.MonthlyBucket
	Stores  models.Stores
	Config  map[string]any
	Debug   HistoryDebug
}

type HistoryDebug struct {
	SteamPoints  int
	EpicPoints   int
	MergedPoints int
	Region       string
	Currency     string
}

type chartPayload struct {
	Prices struct {
		Series struct {
			Shops map[string]json.RawMessage `json:"shops"`
		} `json:"series"`
	} `json:"prices"`
}

// FetchHistory pulls the locale-pinned change log and chart series for a
// matched game and reduces them to store snapshots, change points and
// monthly buckets over the year ending at now.
func (c *Client) FetchHistory(ctx context.Context, match models.GameMatch, session Session, now time.Time) (*History, error) {
	headers := session.apiHeaders(c.baseURL + historyPagePath(match.RemoteSlug))
	gid := url.PathEscape(match.RemoteID)

	cfgResp, err := c.get(ctx, "/api/history/config/"+gid+"/", headers, nil)
	if err := checkResponse("config", cfgResp, err); err != nil {
		return nil, err
	}
	var cfgJSON struct {
		Config string `json:"config"`
	}
	if err := json.Unmarshal(cfgResp.Body(), &cfgJSON); err != nil || cfgJSON.Config == "" {
		return nil, &FetchError{Stage: "config", StatusCode: cfgResp.StatusCode(), Err: fmt.Errorf("%w: config payload missing", ErrMalformedResponse)}
	}

	cfg, err := decodeConfig(cfgJSON.Config)
	if err != nil {
		return nil, &FetchError{Stage: "config", StatusCode: cfgResp.StatusCode(), Err: err}
	}
	cfg["region"] = PinnedRegion
	cfg["currency"] = PinnedCurrency
	pinned, err := encodeConfig(cfg)
	if err != nil {
		return nil, &FetchError{Stage: "config", Err: err}
	}

	logResp, err := c.get(ctx, "/api/history/log/"+gid+"/"+pinned+"/", headers, nil)
	if err := checkResponse("log", logResp, err); err != nil {
		return nil, err
	}
	chartResp, err := c.get(ctx, "/api/history/charts/"+gid+"/"+pinned+"/", headers, nil)
	if err := checkResponse("charts", chartResp, err); err != nil {
		return nil, err
	}

	changeLog, err := decodeChangeLog(logResp.Body())
	if err != nil {
		return nil, &FetchError{Stage: "log", StatusCode: logResp.StatusCode(), Err: err}
	}
	var chart chartPayload
	if err := json.Unmarshal(chartResp.Body(), &chart); err != nil {
		return nil, &FetchError{Stage: "charts", StatusCode: chartResp.StatusCode(), Err: fmt.Errorf("%w: %v", ErrMalformedResponse, err)}
	}

	start := pricing.WindowStart(now)
	steam := pricing.CompressSeries(chart.shopSeries(pricing.Steam), start, now)
	epic := pricing.CompressSeries(chart.shopSeries(pricing.Epic), start, now)
	merged := pricing.MergeSeries(steam, epic)

	return &History{
		Points:  merged,
		Monthly: pricing.MonthlyBuckets(merged, now),
		Stores: models.Stores{
			Steam: pricing.ExtractStoreSnapshot(changeLog, pricing.Steam),
			Epic:  pricing.ExtractStoreSnapshot(changeLog, pricing.Epic),
		},
		Config: cfg,
		Debug: HistoryDebug{
			SteamPoints:  len(steam),
			EpicPoints:   len(epic),
			MergedPoints: len(merged),
			Region:       PinnedRegion,
			Currency:     PinnedCurrency,
		},
	}, nil
}

// shopSeries returns the raw entries for a store; a missing or non-array
// series is empty.
func (p chartPayload) shopSeries(store pricing.Storefront) []json.RawMessage {
	raw, ok := p.Prices.Series.Shops[strconv.Itoa(store.ShopID)]
	if !ok {
		return nil
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	return entries
}

func checkResponse(stage string, resp *resty.Response, err error) error {
	if err != nil {
		return &FetchError{Stage: stage, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return &FetchError{Stage: stage, StatusCode: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}

func decodeChangeLog(body []byte) (pricing.ChangeLog, error) {
	var envelope struct {
		Log json.RawMessage `json:"log"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return pricing.ChangeLog{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	var changeLog pricing.ChangeLog
	if err := json.Unmarshal(envelope.Log, &changeLog.Log); err != nil {
		// a missing or non-array log reads as empty
		changeLog.Log = nil
	}
	return changeLog, nil
}

// decodeConfig reads a base64url JSON config, padded or not.
func decodeConfig(s string) (map[string]any, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, fmt.Errorf("%w: config not base64url: %v", ErrMalformedResponse, err)
	}
	var cfg map[string]any
	if err := json.Unmarshal(raw, &cfg); err != nil || cfg == nil {
		return nil, fmt.Errorf("%w: config not a JSON object", ErrMalformedResponse)
	}
	return cfg, nil
}

func encodeConfig(cfg map[string]any) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
