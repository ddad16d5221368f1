package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	appLog "timetable2ics/internal/log"
)

// Result is the outcome of loading a timetable input.
type Result struct {
	// Name is the file name the format is detected from.
	Name      string
	Body      []byte
	FromCache bool // true if the body was reused from the disk cache
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Loader reads timetable inputs from disk or over HTTP with ETag /
// Last-Modified caching.
type Loader struct {
	client   *http.Client
	cacheDir string
}

// NewLoader creates a Loader.
//
// cacheDir is the base directory where per-URL cache subdirectories and
// metadata are stored. Example: "./var/source-cache".
func NewLoader(cacheDir string) *Loader {
	if cacheDir == "" {
		cacheDir = "./var/source-cache"
	}
	return &Loader{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

// IsRemote reports whether input is an http(s) URL.
func IsRemote(input string) bool {
	return strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://")
}

// Load returns the bytes behind input, a local path or an http(s) URL.
func (l *Loader) Load(ctx context.Context, input string) (Result, error) {
	if input == "" {
		return Result{}, errors.New("input is empty")
	}
	if IsRemote(input) {
		return l.fetch(ctx, input)
	}

	body, err := os.ReadFile(input)
	if err != nil {
		return Result{}, err
	}
	appLog.Debug("source read", "path", input, "bytes", len(body))
	return Result{Name: filepath.Base(input), Body: body}, nil
}

func (l *Loader) fetch(ctx context.Context, rawURL string) (Result, error) {
	name := nameFromURL(rawURL)

	cachePath, err := l.cachePathForURL(rawURL)
	if err != nil {
		return Result{}, err
	}
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return Result{}, err
	}

	meta, _ := l.loadCacheMeta(cachePath)
	cachedBody, _ := l.loadCacheBody(cachePath)
	cached := Result{Name: name, Body: cachedBody, FromCache: true}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, err
	}

	// Conditional headers from cache metadata.
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Info("source fetch start", "url", redactURL(rawURL))

	resp, err := l.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 && ctx.Err() == nil {
			appLog.Error("source fetch network error, using cached body", err, "url", redactURL(rawURL))
			return cached, nil
		}
		return Result{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return Result{}, readErr
		}

		newMeta := cacheEntry{
			URL:          rawURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := l.saveCache(cachePath, newMeta, body); err != nil {
			// Log but still return the freshly fetched body.
			appLog.Error("source cache save failed", err, "url", redactURL(rawURL))
		}

		appLog.Info("source fetch success", "url", redactURL(rawURL), "status", resp.StatusCode, "bytes", len(body))
		return Result{Name: name, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return Result{}, errors.New("received 304 Not Modified but no cached body available")
		}
		appLog.Info("source not modified; using cache", "url", redactURL(rawURL))
		return cached, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("source fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(rawURL), "status", resp.StatusCode)
			return cached, nil
		}
		return Result{}, fmt.Errorf("fetch %s: %s", redactURL(rawURL), resp.Status)
	}
}

func (l *Loader) cachePathForURL(rawURL string) (string, error) {
	if rawURL == "" {
		return "", errors.New("empty url")
	}
	sum := sha256.Sum256([]byte(rawURL))
	// Use first 16 hex chars as directory name.
	dir := hex.EncodeToString(sum[:8])
	return filepath.Join(l.cacheDir, dir), nil
}

func (l *Loader) loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (l *Loader) loadCacheBody(cachePath string) ([]byte, error) {
	return os.ReadFile(filepath.Join(cachePath, "body"))
}

func (l *Loader) saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Write body first so meta never points at missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}

	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// nameFromURL picks the last path element so ".../timetable.xlsx?x=1"
// is read as xlsx. Export links without an extension read as CSV.
func nameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return "timetable.csv"
	}
	if format := u.Query().Get("format"); format != "" {
		return "timetable." + strings.ToLower(format)
	}
	return path.Base(u.Path)
}

// redactURL hides paths and query strings of a URL for logging.
//
//	https://example.com/path/to/private.csv?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "source://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
