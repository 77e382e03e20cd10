package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"testing"
	"time"

	"game-price-tracker/internal/config"
	"game-price-tracker/internal/models"
	"game-price-tracker/internal/services/itad"
)

var runAt = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	bootstrapErrs []error // consumed per Bootstrap call; nil entries succeed
	bootstraps    int
	resolveErr    map[string]error
	fetchErrs     map[string][]error // per gid, consumed per call
	fetchTokens   []string
	resolved      []string
}

func (f *fakeSource) Bootstrap(ctx context.Context) (itad.Session, error) {
	f.bootstraps++
	if len(f.bootstrapErrs) > 0 {
		err := f.bootstrapErrs[0]
		f.bootstrapErrs = f.bootstrapErrs[1:]
		if err != nil {
			return itad.Session{}, err
		}
	}
	return itad.Session{Token: fmt.Sprintf("tok-%d", f.bootstraps), Cookie: "sid=x"}, nil
}

func (f *fakeSource) ResolveGame(ctx context.Context, title, slug string, session *itad.Session) (*models.GameMatch, error) {
	f.resolved = append(f.resolved, title)
	if err := f.resolveErr[title]; err != nil {
		return nil, err
	}
	return &models.GameMatch{RemoteID: "gid-" + title, RemoteSlug: slug, RemoteTitle: title, MatchMethod: models.MatchViaSlug}, nil
}

func (f *fakeSource) FetchHistory(ctx context.Context, match models.GameMatch, session itad.Session, now time.Time) (*itad.History, error) {
	f.fetchTokens = append(f.fetchTokens, session.Token)
	if errs := f.fetchErrs[match.RemoteID]; len(errs) > 0 {
		f.fetchErrs[match.RemoteID] = errs[1:]
		if errs[0] != nil {
			return nil, errs[0]
		}
	}
	price := 9.99
	return &itad.History{
		Points:  []models.MergedPoint{{At: "2025-06-15T12:00:00.000Z", Steam: &price}},
		Monthly: make([]models.MonthlyBucket, 12),
		Stores: models.Stores{
			Steam: models.StoreSnapshot{Available: true, Current: &price, Currency: "USD", Source: "Steam"},
			Epic:  models.StoreSnapshot{Currency: "USD", Source: "Epic Games Store"},
		},
		Debug: itad.HistoryDebug{SteamPoints: 1, MergedPoints: 1},
	}, nil
}

type memStore struct {
	data    models.RawPriceData
	loadErr error
	saved   models.RawPriceData
	saves   int
}

func (m *memStore) LoadRaw() (models.RawPriceData, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.data == nil {
		return models.RawPriceData{}, nil
	}
	return m.data, nil
}

func (m *memStore) SaveRaw(d models.RawPriceData) error {
	m.saves++
	m.saved = d
	return nil
}

// result decodes one saved entry.
func (m *memStore) result(t *testing.T, key string) models.GameResult {
	t.Helper()
	var res models.GameResult
	if err := json.Unmarshal(m.saved[key], &res); err != nil {
		t.Fatalf("decode %s: %v", key, err)
	}
	return res
}

// object decodes one saved entry without a schema.
func (m *memStore) object(t *testing.T, key string) map[string]any {
	t.Helper()
	var obj map[string]any
	if err := json.Unmarshal(m.saved[key], &obj); err != nil {
		t.Fatalf("decode %s: %v", key, err)
	}
	return obj
}

func rawEntries(t *testing.T, entries map[string]string) models.RawPriceData {
	t.Helper()
	data := make(models.RawPriceData, len(entries))
	for k, v := range entries {
		if !json.Valid([]byte(v)) {
			t.Fatalf("fixture %s is not valid JSON", k)
		}
		data[k] = json.RawMessage(v)
	}
	return data
}

type recorder struct {
	got models.PriceData
	err error
}

func (r *recorder) Record(ctx context.Context, at time.Time, results models.PriceData) error {
	r.got = results
	return r.err
}

func testCatalog(t *testing.T, keys ...string) *config.Catalog {
	t.Helper()
	body := "games:\n"
	for _, k := range keys {
		body += fmt.Sprintf("  - key: %s\n    title: %s\n    slug: %s-slug\n", k, k, k)
	}
	c, err := config.ParseCatalog([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func newTestRebuilder(t *testing.T, src PriceSource, store ArtifactStore, keys ...string) (*Rebuilder, *[]time.Duration) {
	r := NewRebuilder(src, store, testCatalog(t, keys...), 180*time.Millisecond)
	r.SetLogger(log.New(io.Discard, "", 0))
	r.now = func() time.Time { return runAt }
	var slept []time.Duration
	r.sleep = func(d time.Duration) { slept = append(slept, d) }
	return r, &slept
}

func TestRun_FailureIsolation(t *testing.T) {
	store := &memStore{data: rawEntries(t, map[string]string{
		"beta": `{"title":"beta","updatedAt":"2025-01-01 00:00:00 UTC","freeExternal":true,"stores":{"steam":{"available":true,"current":59.99}}}`,
	})}
	src := &fakeSource{resolveErr: map[string]error{"beta": fmt.Errorf("%w: %q", itad.ErrMatchNotFound, "beta")}}
	r, slept := newTestRebuilder(t, src, store, "alpha", "beta", "gamma")

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Total != 3 || sum.Succeeded != 2 || sum.Failed != 1 {
		t.Fatalf("summary: %+v", sum)
	}
	if store.saves != 1 || len(store.saved) != 3 {
		t.Fatalf("saved %d times, %d keys", store.saves, len(store.saved))
	}

	beta := store.result(t, "beta")
	if !strings.Contains(beta.Error, itad.ErrMatchNotFound.Error()) {
		t.Fatalf("beta should carry an error: %+v", beta)
	}
	if beta.UpdatedAt != "2025-06-15 12:00:00 UTC" || !beta.FreeExternal || *beta.Stores.Steam.Current != 59.99 {
		t.Fatalf("beta prior data not carried forward: %+v", beta)
	}

	for _, key := range []string{"alpha", "gamma"} {
		got := store.result(t, key)
		if got.Error != "" || got.DataSource != DataSourceITAD || got.Match == nil || got.Match.RemoteID != "gid-"+key {
			t.Errorf("%s: %+v", key, got)
		}
		if len(got.History) != 12 || got.Stores == nil || !got.Stores.Steam.Available {
			t.Errorf("%s: incomplete result %+v", key, got)
		}
	}
	if len(sum.Updated) != 2 {
		t.Errorf("updated: %v", sum.Updated)
	}
	if len(*slept) != 3 || (*slept)[0] != 180*time.Millisecond {
		t.Errorf("delays: %v", *slept)
	}
}

func TestRun_FailedTitleKeepsPriorFields(t *testing.T) {
	store := &memStore{data: rawEntries(t, map[string]string{
		"alpha": `{"title":"Alpha Deluxe","notes":"bundled with season pass","stores":{"steam":{"available":true,"current":19.99,"url":"https://store.example/alpha"}},"rank":12345678901234567}`,
		"beta":  `{"title":"Beta","history":{"legacy":true}}`,
		"gamma": `"not an object"`,
	})}
	src := &fakeSource{resolveErr: map[string]error{
		"alpha": itad.ErrMatchNotFound,
		"beta":  itad.ErrMatchNotFound,
		"gamma": itad.ErrMatchNotFound,
	}}
	r, _ := newTestRebuilder(t, src, store, "alpha", "beta", "gamma")

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("an oddly shaped baseline entry must not abort the run: %v", err)
	}

	alpha := store.object(t, "alpha")
	if alpha["notes"] != "bundled with season pass" || alpha["title"] != "Alpha Deluxe" {
		t.Errorf("alpha: %v", alpha)
	}
	stores := alpha["stores"].(map[string]any)
	steam := stores["steam"].(map[string]any)
	if steam["url"] != "https://store.example/alpha" || steam["current"] != 19.99 {
		t.Errorf("alpha steam: %v", steam)
	}
	if _, ok := stores["epic"]; ok {
		t.Errorf("epic snapshot should not be invented: %v", stores)
	}
	if alpha["updatedAt"] != "2025-06-15 12:00:00 UTC" || alpha["error"] == "" {
		t.Errorf("alpha failure fields: %v", alpha)
	}
	if !strings.Contains(string(store.saved["alpha"]), "12345678901234567") {
		t.Errorf("large numbers must be written back unchanged: %s", store.saved["alpha"])
	}

	beta := store.object(t, "beta")
	if legacy, _ := beta["history"].(map[string]any); legacy["legacy"] != true || beta["error"] == "" {
		t.Errorf("beta: %v", beta)
	}

	gamma := store.object(t, "gamma")
	if gamma["title"] != "gamma" || gamma["error"] == "" || len(gamma) != 3 {
		t.Errorf("gamma: %v", gamma)
	}
}

func TestRun_RetriesOnceOnSessionExpiry(t *testing.T) {
	expired := &itad.FetchError{Stage: "config", StatusCode: http.StatusBadRequest, Body: "Invalid session token"}
	src := &fakeSource{fetchErrs: map[string][]error{"gid-alpha": {expired}}}
	store := &memStore{}
	r, _ := newTestRebuilder(t, src, store, "alpha", "beta")

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Succeeded != 2 {
		t.Fatalf("summary: %+v", sum)
	}
	if src.bootstraps != 2 {
		t.Fatalf("bootstraps: %d", src.bootstraps)
	}
	want := []string{"tok-1", "tok-2", "tok-2"}
	if fmt.Sprint(src.fetchTokens) != fmt.Sprint(want) {
		t.Fatalf("tokens used: %v, want %v", src.fetchTokens, want)
	}
}

func TestRun_GivesUpAfterOneRetry(t *testing.T) {
	expired := &itad.FetchError{Stage: "log", StatusCode: http.StatusUnauthorized}
	src := &fakeSource{fetchErrs: map[string][]error{"gid-alpha": {expired, expired, expired}}}
	store := &memStore{}
	r, _ := newTestRebuilder(t, src, store, "alpha")

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Failed != 1 || len(src.fetchTokens) != 2 || src.bootstraps != 2 {
		t.Fatalf("summary=%+v fetches=%v bootstraps=%d", sum, src.fetchTokens, src.bootstraps)
	}
	if alpha := store.result(t, "alpha"); alpha.Error == "" || alpha.Title != "alpha" {
		t.Fatalf("alpha: %+v", alpha)
	}
}

func TestRun_NoRetryForOtherFetchErrors(t *testing.T) {
	src := &fakeSource{fetchErrs: map[string][]error{"gid-alpha": {&itad.FetchError{Stage: "charts", StatusCode: http.StatusBadGateway}}}}
	r, _ := newTestRebuilder(t, src, &memStore{}, "alpha")

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Failed != 1 || src.bootstraps != 1 || len(src.fetchTokens) != 1 {
		t.Fatalf("summary=%+v bootstraps=%d fetches=%d", sum, src.bootstraps, len(src.fetchTokens))
	}
}

func TestRun_RefreshFailureIsPerTitle(t *testing.T) {
	expired := &itad.FetchError{Stage: "config", StatusCode: http.StatusBadRequest}
	src := &fakeSource{
		bootstrapErrs: []error{nil, &itad.BootstrapError{Reason: "seed page status 503"}},
		fetchErrs:     map[string][]error{"gid-alpha": {expired}},
	}
	store := &memStore{}
	r, _ := newTestRebuilder(t, src, store, "alpha", "beta")

	sum, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if sum.Failed != 1 || sum.Succeeded != 1 || store.result(t, "beta").Error != "" {
		t.Fatalf("summary=%+v", sum)
	}
}

func TestRun_BootstrapFailureAbortsRun(t *testing.T) {
	src := &fakeSource{bootstrapErrs: []error{&itad.BootstrapError{Reason: "no session cookies set"}}}
	store := &memStore{}
	r, _ := newTestRebuilder(t, src, store, "alpha")

	_, err := r.Run(context.Background())
	var be *itad.BootstrapError
	if !errors.As(err, &be) {
		t.Fatalf("expected BootstrapError, got %v", err)
	}
	if store.saves != 0 || len(src.resolved) != 0 {
		t.Fatalf("nothing should run after a failed bootstrap")
	}
}

func TestRun_LoadFailure(t *testing.T) {
	src := &fakeSource{}
	r, _ := newTestRebuilder(t, src, &memStore{loadErr: errors.New("disk gone")}, "alpha")
	if _, err := r.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if src.bootstraps != 0 {
		t.Fatal("bootstrap should not run without a baseline")
	}
}

func TestRun_KeyOrderAndTitles(t *testing.T) {
	store := &memStore{data: rawEntries(t, map[string]string{
		"zeta":  `{"title":"Zeta Prior"}`,
		"alpha": `{"title":"ignored"}`,
		"eta":   `{}`,
	})}
	src := &fakeSource{}
	r, _ := newTestRebuilder(t, src, store, "gamma", "alpha")

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := []string{"gamma", "alpha", "eta", "Zeta Prior"}
	if fmt.Sprint(src.resolved) != fmt.Sprint(want) {
		t.Fatalf("order: %v, want %v", src.resolved, want)
	}
}

func TestRun_ArchivesSuccessesOnly(t *testing.T) {
	src := &fakeSource{resolveErr: map[string]error{"beta": itad.ErrMatchNotFound}}
	rec := &recorder{err: errors.New("db down")}
	r, _ := newTestRebuilder(t, src, &memStore{}, "alpha", "beta")
	r.SetArchive(rec)

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("archive failure must not fail the run: %v", err)
	}
	if len(rec.got) != 1 || rec.got["alpha"].Match == nil {
		t.Fatalf("archived: %+v", rec.got)
	}
}
