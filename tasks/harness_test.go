package tasks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/joshmcarthur/linkding-companion/dbopen"
	"github.com/joshmcarthur/linkding-companion/dispatch"
	"github.com/joshmcarthur/linkding-companion/eventlog"
	"github.com/joshmcarthur/linkding-companion/linkding"
	"github.com/joshmcarthur/linkding-companion/readability"
	"github.com/joshmcarthur/linkding-companion/websearch"
)

// fakeLinkding is an in-memory linkding server covering the endpoints the
// pipeline touches: bookmark listing and CRUD, tags, and content assets.
type fakeLinkding struct {
	mu        sync.Mutex
	bookmarks map[int64]linkding.Bookmark
	tags      []linkding.Tag
	assets    map[int64][]linkding.Asset
	assetData map[int64]map[int64][]byte
	nextAsset int64
	updates   []linkding.Bookmark

	srv *httptest.Server
}

func newFakeLinkding(t *testing.T) *fakeLinkding {
	f := &fakeLinkding{
		bookmarks: make(map[int64]linkding.Bookmark),
		assets:    make(map[int64][]linkding.Asset),
		assetData: make(map[int64]map[int64][]byte),
		nextAsset: 100,
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeLinkding) add(b linkding.Bookmark) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bookmarks[b.ID] = b
}

func (f *fakeLinkding) addAsset(bookmarkID int64, name string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextAsset++
	asset := linkding.Asset{ID: f.nextAsset, AssetType: "upload", DisplayName: name, Status: "complete"}
	f.assets[bookmarkID] = append(f.assets[bookmarkID], asset)
	if f.assetData[bookmarkID] == nil {
		f.assetData[bookmarkID] = make(map[int64][]byte)
	}
	f.assetData[bookmarkID][asset.ID] = content
}

func (f *fakeLinkding) lastUpdate(t *testing.T) linkding.Bookmark {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.updates) == 0 {
		t.Fatal("no bookmark updates recorded")
	}
	return f.updates[len(f.updates)-1]
}

func (f *fakeLinkding) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

func (f *fakeLinkding) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api"), "/"), "/")
	switch {
	case parts[0] == "tags":
		writePage(w, f.tags)

	case parts[0] == "bookmarks" && len(parts) == 1:
		ids := make([]int64, 0, len(f.bookmarks))
		for id := range f.bookmarks {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		out := make([]linkding.Bookmark, 0, len(ids))
		for _, id := range ids {
			out = append(out, f.bookmarks[id])
		}
		writePage(w, out)

	case parts[0] == "bookmarks" && len(parts) == 2:
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		b, ok := f.bookmarks[id]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		if r.Method == http.MethodPut {
			var updated linkding.Bookmark
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, &updated); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			updated.ID = id
			f.bookmarks[id] = updated
			f.updates = append(f.updates, updated)
			b = updated
		}
		writeJSONBody(w, b)

	case len(parts) == 3 && parts[2] == "assets":
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		writePage(w, f.assets[id])

	case len(parts) == 4 && parts[2] == "assets" && parts[3] == "upload":
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer file.Close()
		content, _ := io.ReadAll(file)
		f.nextAsset++
		asset := linkding.Asset{ID: f.nextAsset, AssetType: "upload", DisplayName: hdr.Filename, Status: "complete"}
		f.assets[id] = append(f.assets[id], asset)
		if f.assetData[id] == nil {
			f.assetData[id] = make(map[int64][]byte)
		}
		f.assetData[id][asset.ID] = content
		w.WriteHeader(http.StatusCreated)
		writeJSONBody(w, asset)

	case len(parts) == 5 && parts[2] == "assets" && parts[4] == "download":
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		assetID, _ := strconv.ParseInt(parts[3], 10, 64)
		data, ok := f.assetData[id][assetID]
		if !ok {
			http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
			return
		}
		w.Write(data)

	default:
		http.Error(w, `{"detail":"Not found."}`, http.StatusNotFound)
	}
}

func writePage[T any](w http.ResponseWriter, items []T) {
	if items == nil {
		items = []T{}
	}
	writeJSONBody(w, map[string]any{"count": len(items), "next": nil, "previous": nil, "results": items})
}

func writeJSONBody(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// fakeChat returns a canned response and records every prompt.
type fakeChat struct {
	mu       sync.Mutex
	response string
	err      error
	prompts  []string
}

func (c *fakeChat) Ask(_ context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	return c.response, c.err
}

func (c *fakeChat) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

type fakeExtractor struct {
	result *readability.Result
	err    error
	calls  int
}

func (e *fakeExtractor) Extract(_ context.Context, _ string) (*readability.Result, error) {
	e.calls++
	return e.result, e.err
}

type fakeSearcher struct {
	enabled bool
	results []websearch.Result
	err     error
	queries []string
}

func (s *fakeSearcher) Enabled() bool { return s.enabled }

func (s *fakeSearcher) Search(_ context.Context, query string) ([]websearch.Result, error) {
	s.queries = append(s.queries, query)
	return s.results, s.err
}

// recordingQueue captures submissions instead of running them.
type recordingQueue struct {
	mu   sync.Mutex
	jobs []submission
}

type submission struct {
	kind       dispatch.Kind
	bookmarkID int64
}

func (q *recordingQueue) Submit(_ context.Context, kind dispatch.Kind, bookmarkID int64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, submission{kind, bookmarkID})
	return nil
}

func (q *recordingQueue) kinds(bookmarkID int64) []dispatch.Kind {
	q.mu.Lock()
	defer q.mu.Unlock()
	var kinds []dispatch.Kind
	for _, j := range q.jobs {
		if j.bookmarkID == bookmarkID {
			kinds = append(kinds, j.kind)
		}
	}
	return kinds
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// fixture wires a Tasks against fake collaborators and a real event log.
type fixture struct {
	tasks     *Tasks
	ld        *fakeLinkding
	events    *eventlog.Store
	queue     *recordingQueue
	chat      *fakeChat
	extractor *fakeExtractor
	searcher  *fakeSearcher
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	ld := newFakeLinkding(t)
	client, err := linkding.New(linkding.Options{Host: ld.srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatalf("linkding.New: %v", err)
	}

	db := dbopen.OpenMemory(t)
	events := eventlog.New(db)
	if err := events.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	f := &fixture{
		ld:        ld,
		events:    events,
		queue:     &recordingQueue{},
		chat:      &fakeChat{},
		extractor: &fakeExtractor{},
		searcher:  &fakeSearcher{enabled: true},
	}
	f.tasks = New(Deps{
		Linkding:  client,
		Events:    events,
		Queue:     f.queue,
		Chat:      f.chat,
		Extractor: f.extractor,
		Searcher:  f.searcher,
	}, cfg)
	return f
}

func (f *fixture) mustNotExist(t *testing.T, bookmarkID int64, action eventlog.Action) {
	t.Helper()
	ok, err := f.events.Exists(context.Background(), bookmarkID, action)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if ok {
		t.Fatalf("unexpected %s event for bookmark %d", action, bookmarkID)
	}
}

func (f *fixture) mustExist(t *testing.T, bookmarkID int64, action eventlog.Action) {
	t.Helper()
	ok, err := f.events.Exists(context.Background(), bookmarkID, action)
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if !ok {
		t.Fatalf("missing %s event for bookmark %d", action, bookmarkID)
	}
}
