package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"reflect"
	"slices"
	"sort"
	"strings"
	"sync"
	"testing"
)

func TestAddEntryThenRepeat(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *TestEnvironment) {
		service := uniqueService("tv")

		first := addEntry(t, env, map[string]any{"service": service, "entry_id": "ep1", "title": "Pilot"})
		if !first.Added {
			t.Error("first add: added = false, want true")
		}
		want := map[string]any{"service": service, "entry_id": "ep1", "title": "Pilot"}
		if !reflect.DeepEqual(first.Entry, want) {
			t.Errorf("first add: entry = %v, want %v", first.Entry, want)
		}

		second := addEntry(t, env, map[string]any{"service": service, "entry_id": "ep1", "title": "Changed"})
		if second.Added {
			t.Error("second add: added = true, want false")
		}
		if !reflect.DeepEqual(second.Entry, want) {
			t.Errorf("second add: entry = %v, want the original %v", second.Entry, want)
		}
	})
}

func TestAddEntryForm(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *TestEnvironment) {
		service := uniqueService("radio")

		var res addResult
		decodeJSON(t, postForm(t, env.BaseURL()+"/add_entry", url.Values{
			"service":  {service},
			"entry_id": {"show-7"},
			"host":     {"Ann"},
		}), &res)

		if !res.Added {
			t.Error("added = false, want true")
		}
		if res.Entry["host"] != "Ann" {
			t.Errorf("host = %v, want Ann", res.Entry["host"])
		}
	})
}

func TestGetEntriesFiltersMembership(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *TestEnvironment) {
		service := uniqueService("tv")
		other := uniqueService("movies")
		addEntry(t, env, map[string]any{"service": service, "entry_id": "ep1"})
		addEntry(t, env, map[string]any{"service": service, "entry_id": "ep2"})
		addEntry(t, env, map[string]any{"service": other, "entry_id": "ep3"})

		t.Run("query", func(t *testing.T) {
			var entries []map[string]any
			decodeJSON(t, getURL(t, env.BaseURL()+"/get_entries?service="+service+"&entry_ids=ep1,ep3"), &entries)
			assertEntryIDs(t, entries, service, []string{"ep1"})
		})

		t.Run("json body", func(t *testing.T) {
			var entries []map[string]any
			decodeJSON(t, postJSON(t, env.BaseURL()+"/get_entries", map[string]any{
				"service":   service,
				"entry_ids": []string{"ep1", "ep2", "ep2", "nope"},
			}), &entries)
			assertEntryIDs(t, entries, service, []string{"ep1", "ep2"})
		})

		t.Run("form body", func(t *testing.T) {
			var entries []map[string]any
			decodeJSON(t, postForm(t, env.BaseURL()+"/get_entries", url.Values{
				"service":   {service},
				"entry_ids": {"ep2", "ep3"},
			}), &entries)
			assertEntryIDs(t, entries, service, []string{"ep2"})
		})

		t.Run("unknown service", func(t *testing.T) {
			var entries []map[string]any
			decodeJSON(t, getURL(t, env.BaseURL()+"/get_entries?service=nobody-"+service+"&entry_ids=ep1"), &entries)
			if len(entries) != 0 {
				t.Errorf("entries = %v, want empty list", entries)
			}
		})
	})
}

func TestListServicesOncePerNamespace(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *TestEnvironment) {
		tv := uniqueService("tv")
		movies := uniqueService("movies")
		for _, id := range []string{"a", "b", "c"} {
			addEntry(t, env, map[string]any{"service": tv, "entry_id": id})
		}
		addEntry(t, env, map[string]any{"service": movies, "entry_id": "m1"})

		var list struct {
			Items []string `json:"items"`
		}
		decodeJSON(t, getURL(t, env.BaseURL()+"/services"), &list)

		for _, name := range []string{tv, movies} {
			n := 0
			for _, s := range list.Items {
				if s == name {
					n++
				}
			}
			if n != 1 {
				t.Errorf("service %q listed %d times, want once", name, n)
			}
		}
	})
}

func TestConcurrentAddSameKey(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *TestEnvironment) {
		service := uniqueService("race")
		const clients = 12

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			results []addResult
			errs    []error
		)
		for i := 0; i < clients; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				body, _ := json.Marshal(map[string]any{
					"service":  service,
					"entry_id": "same",
					"worker":   i,
				})
				var res addResult
				resp, err := http.Post(env.BaseURL()+"/add_entry", "application/json", bytes.NewReader(body))
				if err == nil {
					defer resp.Body.Close()
					if resp.StatusCode != http.StatusOK {
						err = fmt.Errorf("status %d", resp.StatusCode)
					} else {
						err = json.NewDecoder(resp.Body).Decode(&res)
					}
				}
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					errs = append(errs, err)
					return
				}
				results = append(results, res)
			}(i)
		}
		wg.Wait()

		if len(errs) > 0 {
			t.Fatalf("add_entry failures: %v", errs)
		}
		added := 0
		winner := -1.0
		for _, r := range results {
			if r.Added {
				added++
				winner, _ = r.Entry["worker"].(float64)
			}
		}
		if added != 1 {
			t.Fatalf("added:true responses = %d, want exactly 1", added)
		}
		for _, r := range results {
			if w, _ := r.Entry["worker"].(float64); w != winner {
				t.Errorf("response carries worker %v, want winner %v", w, winner)
			}
		}

		var entries []map[string]any
		decodeJSON(t, getURL(t, env.BaseURL()+"/get_entries?service="+service+"&entry_ids=same"), &entries)
		if len(entries) != 1 {
			t.Errorf("persisted records = %d, want 1", len(entries))
		}
	})
}

func TestValidationErrors(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *TestEnvironment) {
		tests := []struct {
			name string
			do   func(t *testing.T) *http.Response
		}{
			{
				name: "add without service",
				do: func(t *testing.T) *http.Response {
					return postJSON(t, env.BaseURL()+"/add_entry", map[string]any{"entry_id": "x"})
				},
			},
			{
				name: "add without entry_id",
				do: func(t *testing.T) *http.Response {
					return postJSON(t, env.BaseURL()+"/add_entry", map[string]any{"service": "tv"})
				},
			},
			{
				name: "add with numeric service",
				do: func(t *testing.T) *http.Response {
					return postJSON(t, env.BaseURL()+"/add_entry", map[string]any{"service": 7, "entry_id": "x"})
				},
			},
			{
				name: "get without service",
				do: func(t *testing.T) *http.Response {
					return getURL(t, env.BaseURL()+"/get_entries?entry_ids=a")
				},
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp := tt.do(t)
				body := readBody(t, resp)
				if resp.StatusCode != http.StatusBadRequest {
					t.Errorf("expected 400, got %d: %s", resp.StatusCode, body)
				}
			})
		}
	})
}

func TestLargeIntegersRoundTrip(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *TestEnvironment) {
		service := uniqueService("social")
		body := `{"service":"` + service + `","entry_id":"t1","tweet_id":1234567890123456789}`

		resp, err := http.Post(env.BaseURL()+"/add_entry", "application/json", strings.NewReader(body))
		if err != nil {
			t.Fatalf("POST /add_entry: %v", err)
		}
		added := readBody(t, resp)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("add_entry: expected 200, got %d: %s", resp.StatusCode, added)
		}
		const want = `"tweet_id":1234567890123456789`
		if !strings.Contains(added, want) {
			t.Errorf("add_entry body = %s, want it to contain %s", added, want)
		}

		got := readBody(t, getURL(t, env.BaseURL()+"/get_entries?service="+service+"&entry_ids=t1"))
		if !strings.Contains(got, want) {
			t.Errorf("get_entries body = %s, want it to contain %s", got, want)
		}
	})
}

func TestNULRejected(t *testing.T) {
	forEachBackend(t, func(t *testing.T, env *TestEnvironment) {
		resp, err := http.Post(env.BaseURL()+"/add_entry", "application/json",
			strings.NewReader(`{"service":"tv","entry_id":"ep\u00001"}`))
		if err != nil {
			t.Fatalf("POST /add_entry: %v", err)
		}
		body := readBody(t, resp)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("expected 400, got %d: %s", resp.StatusCode, body)
		}
	})
}

func assertEntryIDs(t *testing.T, entries []map[string]any, service string, want []string) {
	t.Helper()
	var got []string
	for _, e := range entries {
		if e["service"] != service {
			t.Errorf("entry %v has service %v, want %s", e["entry_id"], e["service"], service)
		}
		id, _ := e["entry_id"].(string)
		got = append(got, id)
	}
	sort.Strings(got)
	if !slices.Equal(got, want) {
		t.Errorf("entry_ids = %v, want %v", got, want)
	}
}
