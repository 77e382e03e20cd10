package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"game-price-tracker/internal/config"
	"game-price-tracker/internal/models"
	"game-price-tracker/internal/pricing"
	"game-price-tracker/internal/services/itad"
)

const DataSourceITAD = "isthereanydeal-site-history"

// PriceSource is the remote service the rebuild pulls from.
type PriceSource interface {
	Bootstrap(ctx context.Context) (itad.Session, error)
	ResolveGame(ctx context.Context, title, slug string, session *itad.Session) (*models.GameMatch, error)
	FetchHistory(ctx context.Context, match models.GameMatch, session itad.Session, now time.Time) (*itad.History, error)
}

// ArtifactStore loads and persists the aggregate. Entries stay raw so a
// title that fails keeps every field it had.
type ArtifactStore interface {
	LoadRaw() (models.RawPriceData, error)
	SaveRaw(models.RawPriceData) error
}

// SnapshotRecorder archives the successful results of a run.
type SnapshotRecorder interface {
	Record(ctx context.Context, runAt time.Time, results models.PriceData) error
}

// Rebuilder refreshes every tracked title, one at a time.
type Rebuilder struct {
	source  PriceSource
	store   ArtifactStore
	catalog *config.Catalog
	archive SnapshotRecorder
	delay   time.Duration
	logger  *log.Logger
	now     func() time.Time
	sleep   func(time.Duration)
}

// RunSummary reports the outcome of one rebuild. Updated holds only the
// titles refreshed by this run.
type RunSummary struct {
	Total     int
	Succeeded int
	Failed    int
	Updated   models.PriceData
}

func NewRebuilder(source PriceSource, store ArtifactStore, catalog *config.Catalog, delay time.Duration) *Rebuilder {
	return &Rebuilder{
		source:  source,
		store:   store,
		catalog: catalog,
		delay:   delay,
		logger:  log.New(os.Stdout, "[PriceRebuild] ", log.LstdFlags),
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// SetArchive enables snapshot archiving; nil disables it.
func (r *Rebuilder) SetArchive(archive SnapshotRecorder) { r.archive = archive }

func (r *Rebuilder) SetLogger(l *log.Logger) { r.logger = l }

// Run refreshes every title and writes the aggregate. It fails only when the
// baseline cannot be read, the first session cannot be established, or the
// artifact cannot be written; per-title failures keep the previous entry.
func (r *Rebuilder) Run(ctx context.Context) (*RunSummary, error) {
	now := r.now().UTC()

	existing, err := r.store.LoadRaw()
	if err != nil {
		return nil, fmt.Errorf("load previous price data: %w", err)
	}

	session, err := r.source.Bootstrap(ctx)
	if err != nil {
		return nil, err
	}

	keys := r.orderedKeys(existing)
	summary := &RunSummary{Total: len(keys), Updated: make(models.PriceData)}
	out := make(models.RawPriceData, len(keys))

	for i, key := range keys {
		prior := decodePrior(existing[key])
		title, slug := r.describe(key, prior)
		r.logger.Printf("[%d/%d] %s -> %s", i+1, len(keys), key, title)

		var raw json.RawMessage
		entry, err := r.rebuildTitle(ctx, title, slug, prior, &session, now)
		if err != nil {
			summary.Failed++
			r.logger.Printf("  ✗ FAIL %v", err)
			raw, err = failedEntry(prior, title, now, err)
		} else {
			summary.Updated[key] = entry
			summary.Succeeded++
			raw, err = json.Marshal(entry)
		}
		if err != nil {
			return summary, fmt.Errorf("encode %s: %w", key, err)
		}
		out[key] = raw

		r.sleep(r.delay)
	}

	if err := r.store.SaveRaw(out); err != nil {
		return summary, fmt.Errorf("save price data: %w", err)
	}
	r.logger.Printf("updated price data: %d ok, %d failed", summary.Succeeded, summary.Failed)

	if r.archive != nil && len(summary.Updated) > 0 {
		if err := r.archive.Record(ctx, now, summary.Updated); err != nil {
			r.logger.Printf("snapshot archive failed: %v", err)
		}
	}
	return summary, nil
}

// rebuildTitle resolves and fetches one title. A session-expired fetch gets
// exactly one retry with a freshly bootstrapped session, which then replaces
// the shared one.
func (r *Rebuilder) rebuildTitle(ctx context.Context, title, slug string, prior map[string]any, session *itad.Session, now time.Time) (models.GameResult, error) {
	match, err := r.source.ResolveGame(ctx, title, slug, session)
	if err != nil {
		return models.GameResult{}, err
	}

	history, err := r.source.FetchHistory(ctx, *match, *session, now)
	if err != nil && itad.IsSessionExpired(err) {
		r.logger.Printf("  session expired, bootstrapping a new one")
		renewed, berr := r.source.Bootstrap(ctx)
		if berr != nil {
			return models.GameResult{}, fmt.Errorf("refresh session after %v: %w", err, berr)
		}
		*session = renewed
		history, err = r.source.FetchHistory(ctx, *match, *session, now)
	}
	if err != nil {
		return models.GameResult{}, err
	}

	r.logger.Printf("  ✓ OK gid=%s slug=%s via=%s points=%d steam=%d epic=%d",
		match.RemoteID, match.RemoteSlug, match.MatchMethod,
		history.Debug.MergedPoints, history.Debug.SteamPoints, history.Debug.EpicPoints)

	freeExternal, _ := prior["freeExternal"].(bool)
	stores := history.Stores
	return models.GameResult{
		Title:         title,
		UpdatedAt:     pricing.FormatUpdatedAt(now),
		FreeExternal:  freeExternal,
		Stores:        &stores,
		HistoryPoints: history.Points,
		History:       history.Monthly,
		DataSource:    DataSourceITAD,
		Match:         match,
	}, nil
}

// decodePrior reads a stored entry as a generic object. Anything that is not
// a JSON object reads as empty. Numbers stay json.Number so they are written
// back unchanged.
func decodePrior(raw json.RawMessage) map[string]any {
	prior := map[string]any{}
	if len(raw) == 0 {
		return prior
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil || obj == nil {
		return prior
	}
	return obj
}

// failedEntry is the previous entry with updatedAt and error overwritten,
// and a title filled in when it had none.
func failedEntry(prior map[string]any, title string, now time.Time, cause error) (json.RawMessage, error) {
	if t, _ := prior["title"].(string); t == "" {
		prior["title"] = title
	}
	prior["updatedAt"] = pricing.FormatUpdatedAt(now)
	prior["error"] = cause.Error()
	return json.Marshal(prior)
}

// orderedKeys lists catalog titles first, then baseline-only keys sorted.
func (r *Rebuilder) orderedKeys(existing models.RawPriceData) []string {
	keys := r.catalog.Keys()
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		seen[k] = true
	}
	var extra []string
	for k := range existing {
		if !seen[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(keys, extra...)
}

func (r *Rebuilder) describe(key string, prior map[string]any) (title, slug string) {
	entry, ok := r.catalog.Lookup(key)
	priorTitle, _ := prior["title"].(string)
	switch {
	case ok && entry.Title != "":
		title = entry.Title
	case priorTitle != "":
		title = priorTitle
	default:
		title = key
	}
	return title, entry.Slug
}
