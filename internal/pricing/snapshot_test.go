package pricing

import (
	"encoding/json"
	"testing"
)

func changeLog(t *testing.T, body string) ChangeLog {
	t.Helper()
	var log ChangeLog
	if err := json.Unmarshal([]byte(body), &log); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	return log
}

func TestExtractStoreSnapshot_Steam(t *testing.T) {
	log := changeLog(t, `{"log":[
		{"shop":16,"current":{"new":[0,"USD"],"old":[3999,"USD"]}},
		{"shop":61,"current":{"new":[1999,"USD"],"old":[2499,"USD"]}}
	]}`)

	got := ExtractStoreSnapshot(log, Steam)
	if !got.Available || got.Free {
		t.Errorf("flags: %+v", got)
	}
	if got.Current == nil || *got.Current != 19.99 {
		t.Errorf("current: %v", deref(got.Current))
	}
	if got.Normal == nil || *got.Normal != 24.99 {
		t.Errorf("normal: %v", deref(got.Normal))
	}
	if got.Currency != "USD" || got.Source != "Steam" {
		t.Errorf("meta: %+v", got)
	}

	epic := ExtractStoreSnapshot(log, Epic)
	if !epic.Available || !epic.Free || *epic.Current != 0 || *epic.Normal != 39.99 {
		t.Errorf("epic: %+v", epic)
	}
	if epic.Source != "Epic Games Store" {
		t.Errorf("epic source: %q", epic.Source)
	}
}

func TestExtractStoreSnapshot_FirstStructurallyValidRowWins(t *testing.T) {
	log := changeLog(t, `{"log":[
		"junk",
		{"shop":61},
		{"shop":61,"current":{"new":[999,"EUR"]}},
		{"shop":"61","current":{"new":[1,"USD"],"old":[1,"USD"]}},
		{"shop":61,"current":{"new":[1499,"EUR"],"old":[2999,"EUR"]}},
		{"shop":61,"current":{"new":[999,"USD"],"old":[2999,"USD"]}}
	]}`)

	got := ExtractStoreSnapshot(log, Steam)
	if got.Current == nil || *got.Current != 14.99 || got.Currency != "EUR" {
		t.Fatalf("got %+v", got)
	}
}

func TestExtractStoreSnapshot_NotFound(t *testing.T) {
	for name, body := range map[string]string{
		"empty":      `{"log":[]}`,
		"no log":     `{}`,
		"other shop": `{"log":[{"shop":16,"current":{"new":[100,"USD"],"old":[100,"USD"]}}]}`,
	} {
		got := ExtractStoreSnapshot(changeLog(t, body), Steam)
		if got.Available || got.Free || got.Current != nil || got.Normal != nil {
			t.Errorf("%s: expected unavailable, got %+v", name, got)
		}
		if got.Currency != "USD" || got.Source != "Steam" {
			t.Errorf("%s: meta %+v", name, got)
		}
	}
}

func TestExtractStoreSnapshot_NonNumericPrice(t *testing.T) {
	log := changeLog(t, `{"log":[{"shop":61,"current":{"new":[null,"USD"],"old":[2499,"USD"]}}]}`)
	got := ExtractStoreSnapshot(log, Steam)
	if got.Available || got.Free || got.Current != nil {
		t.Fatalf("got %+v", got)
	}
	if got.Normal == nil || *got.Normal != 24.99 {
		t.Fatalf("normal: %v", deref(got.Normal))
	}
}
