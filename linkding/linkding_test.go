package linkding_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/joshmcarthur/linkding-companion/linkding"
)

func newClient(t *testing.T, srv *httptest.Server) *linkding.Client {
	t.Helper()
	c, err := linkding.New(linkding.Options{Host: srv.URL, APIKey: "test-key"})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestNewUnconfigured(t *testing.T) {
	cases := []struct {
		name string
		opts linkding.Options
	}{
		{"both missing", linkding.Options{}},
		{"host missing", linkding.Options{APIKey: "k"}},
		{"key missing", linkding.Options{Host: "https://links.example.com"}},
		{"blank host", linkding.Options{Host: "   ", APIKey: "k"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := linkding.New(c.opts)
			if !errors.Is(err, linkding.ErrUnconfigured) {
				t.Fatalf("err = %v, want ErrUnconfigured", err)
			}
		})
	}
}

func TestNewRejectsSchemelessHost(t *testing.T) {
	_, err := linkding.New(linkding.Options{Host: "links.example.com", APIKey: "k"})
	if !errors.Is(err, linkding.ErrUnconfigured) {
		t.Fatalf("err = %v, want ErrUnconfigured", err)
	}
}

func TestAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(linkding.Bookmark{ID: 1})
	}))
	defer srv.Close()

	c := newClient(t, srv)
	if _, err := c.GetBookmark(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	if gotAuth != "Token test-key" {
		t.Fatalf("Authorization = %q, want %q", gotAuth, "Token test-key")
	}
}

func TestErrorClassification(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{"401", http.StatusUnauthorized, `{}`, func(t *testing.T, err error) {
			if !errors.Is(err, linkding.ErrAuthentication) {
				t.Fatalf("err = %v, want ErrAuthentication", err)
			}
		}},
		{"404", http.StatusNotFound, `{}`, func(t *testing.T, err error) {
			if !errors.Is(err, linkding.ErrNotFound) {
				t.Fatalf("err = %v, want ErrNotFound", err)
			}
		}},
		{"422 detail", http.StatusUnprocessableEntity, `{"detail":"bad url"}`, func(t *testing.T, err error) {
			var verr *linkding.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Message != "bad url" {
				t.Fatalf("message = %q, want %q", verr.Message, "bad url")
			}
		}},
		{"400 errors array", http.StatusBadRequest, `{"errors":["a","b"]}`, func(t *testing.T, err error) {
			var verr *linkding.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Message != "a, b" {
				t.Fatalf("message = %q, want %q", verr.Message, "a, b")
			}
		}},
		{"400 raw body", http.StatusBadRequest, `not json`, func(t *testing.T, err error) {
			var verr *linkding.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
			if verr.Message != "not json" {
				t.Fatalf("message = %q, want %q", verr.Message, "not json")
			}
		}},
		{"500", http.StatusInternalServerError, `oops`, func(t *testing.T, err error) {
			var gerr *linkding.Error
			if !errors.As(err, &gerr) {
				t.Fatalf("err = %v, want *linkding.Error", err)
			}
			if gerr.StatusCode != 500 || gerr.Body != "oops" {
				t.Fatalf("got %d/%q", gerr.StatusCode, gerr.Body)
			}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			c := newClient(t, srv)
			_, err := c.GetBookmark(context.Background(), 42)
			if err == nil {
				t.Fatal("expected error")
			}
			tc.check(t, err)
		})
	}
}

func TestUpdateBookmarkSendsFullRecord(t *testing.T) {
	var got linkding.Bookmark
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(got)
	}))
	defer srv.Close()

	c := newClient(t, srv)
	b := &linkding.Bookmark{
		ID:       7,
		URL:      "https://example.com",
		Title:    "Example",
		Notes:    "keep me",
		TagNames: []string{"a", "b"},
	}
	if _, err := c.UpdateBookmark(context.Background(), 7, b); err != nil {
		t.Fatal(err)
	}
	if got.Notes != "keep me" {
		t.Fatalf("notes dropped in update: %+v", got)
	}
	if len(got.TagNames) != 2 {
		t.Fatalf("tags dropped in update: %+v", got)
	}
}

func TestUploadAsset(t *testing.T) {
	var gotName, gotContentType, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		gotName = hdr.Filename
		gotContentType = hdr.Header.Get("Content-Type")
		gotBody = string(data)
		json.NewEncoder(w).Encode(linkding.Asset{ID: 9, DisplayName: hdr.Filename})
	}))
	defer srv.Close()

	c := newClient(t, srv)
	asset, err := c.UploadAsset(context.Background(), 3, "content.txt", strings.NewReader("readable text"))
	if err != nil {
		t.Fatal(err)
	}
	if asset.ID != 9 {
		t.Fatalf("asset id = %d, want 9", asset.ID)
	}
	if gotName != "content.txt" {
		t.Fatalf("filename = %q", gotName)
	}
	if !strings.HasPrefix(gotContentType, "text/plain") {
		t.Fatalf("content type = %q, want text/plain", gotContentType)
	}
	if gotBody != "readable text" {
		t.Fatalf("body = %q", gotBody)
	}
}

func TestDownloadAssetRaw(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "not json at all")
	}))
	defer srv.Close()

	c := newClient(t, srv)
	data, err := c.DownloadAsset(context.Background(), 1, 2)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "not json at all" {
		t.Fatalf("data = %q", data)
	}
}

func TestListBookmarksParams(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		json.NewEncoder(w).Encode(linkding.Page[linkding.Bookmark]{Count: 0})
	}))
	defer srv.Close()

	c := newClient(t, srv)
	params := url.Values{"limit": {"50"}, "q": {"golang"}}
	if _, err := c.ListBookmarks(context.Background(), params); err != nil {
		t.Fatal(err)
	}
	if gotQuery.Get("limit") != "50" || gotQuery.Get("q") != "golang" {
		t.Fatalf("query = %v", gotQuery)
	}
}

func TestMergeTags(t *testing.T) {
	b := &linkding.Bookmark{TagNames: []string{"go", "web"}}
	got := b.MergeTags([]string{"web", "rust", "", "rust"})
	want := []string{"go", "web", "rust"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
