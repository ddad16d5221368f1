package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const csvBody = "classNumber,className\nA101,Calculus\n"

func TestLoadLocalFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timetable.csv")
	require.NoError(t, os.WriteFile(path, []byte(csvBody), 0o600))

	res, err := NewLoader(filepath.Join(dir, "cache")).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "timetable.csv", res.Name)
	assert.Equal(t, csvBody, string(res.Body))
	assert.False(t, res.FromCache)

	_, err = NewLoader(dir).Load(context.Background(), filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	_, err = NewLoader(dir).Load(context.Background(), "")
	assert.Error(t, err)
}

func TestLoadRemoteUsesETagCache(t *testing.T) {
	var hits, notModified int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			atomic.AddInt32(&notModified, 1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte(csvBody))
	}))
	defer srv.Close()

	loader := NewLoader(t.TempDir())
	url := srv.URL + "/sheets/timetable.csv"

	first, err := loader.Load(context.Background(), url)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, "timetable.csv", first.Name)
	assert.Equal(t, csvBody, string(first.Body))

	second, err := loader.Load(context.Background(), url)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, csvBody, string(second.Body))

	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
	assert.EqualValues(t, 1, atomic.LoadInt32(&notModified))
}

func TestLoadRemoteFallsBackOnServerError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(csvBody))
	}))
	defer srv.Close()

	loader := NewLoader(t.TempDir())
	_, err := loader.Load(context.Background(), srv.URL+"/t.csv")
	require.NoError(t, err)

	fail.Store(true)
	res, err := loader.Load(context.Background(), srv.URL+"/t.csv")
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	assert.Equal(t, csvBody, string(res.Body))

	_, err = loader.Load(context.Background(), srv.URL+"/other.csv")
	assert.Error(t, err)
}

func TestLoadRemoteNotModifiedWithoutCache(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	_, err := NewLoader(t.TempDir()).Load(context.Background(), srv.URL+"/t.csv")
	assert.Error(t, err)
}

func TestNameFromURL(t *testing.T) {
	assert.Equal(t, "sheet.xlsx", nameFromURL("https://example.com/files/sheet.xlsx?token=1"))
	assert.Equal(t, "timetable.csv", nameFromURL("https://docs.example.com/d/abc/export?format=CSV"))
	assert.Equal(t, "timetable.xlsx", nameFromURL("https://docs.example.com/d/abc/export?format=xlsx"))
	assert.Equal(t, "timetable.csv", nameFromURL("https://example.com/"))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private.csv?token=abcd"))
	assert.Equal(t, "source://...(redacted)", redactURL("not a url"))
	assert.True(t, IsRemote("http://x"))
	assert.False(t, IsRemote("./timetable.csv"))
}
