package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/timmy/memehub/internal/domain"
)

// LocalConfig holds configuration for disk storage served by the API.
type LocalConfig struct {
	Root          string
	RoutePrefix   string // e.g. /images
	PublicBaseURL string // optional scheme://host prefix for absolute URLs
}

// LocalStorage stores objects on an afero filesystem rooted at the storage
// directory. URLs point at the API's blob route.
type LocalStorage struct {
	fs            afero.Fs
	routePrefix   string
	publicBaseURL string
}

// NewLocalStorage creates the root directory and returns a store on the OS
// filesystem.
func NewLocalStorage(cfg *LocalConfig) (*LocalStorage, error) {
	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return NewLocalStorageFs(afero.NewBasePathFs(afero.NewOsFs(), cfg.Root), cfg.RoutePrefix, cfg.PublicBaseURL), nil
}

// NewLocalStorageFs returns a store on fs, whose root is the storage root.
func NewLocalStorageFs(fs afero.Fs, routePrefix, publicBaseURL string) *LocalStorage {
	prefix := "/" + strings.Trim(routePrefix, "/")
	if prefix == "/" {
		prefix = "/images"
	}
	return &LocalStorage{
		fs:            fs,
		routePrefix:   prefix,
		publicBaseURL: strings.TrimSuffix(publicBaseURL, "/"),
	}
}

// RoutePrefix is the URL path the API must serve objects under.
func (s *LocalStorage) RoutePrefix() string {
	return s.routePrefix
}

// Save writes r under key and records its size and SHA-256.
func (s *LocalStorage) Save(ctx context.Context, key string, r io.Reader, contentType string) (*SaveResult, error) {
	safe, err := SanitizeKey(key)
	if err != nil {
		return nil, err
	}
	if err := s.fs.MkdirAll(path.Dir(safe), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := s.fs.OpenFile(safe, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create object: %w", err)
	}

	hash := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, hash), r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(safe)
		return nil, fmt.Errorf("failed to write object: %w", err)
	}

	return &SaveResult{
		Key:    safe,
		URL:    s.URL(safe),
		Size:   n,
		SHA256: hex.EncodeToString(hash.Sum(nil)),
	}, nil
}

// Open returns the stored file.
func (s *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	safe, err := SanitizeKey(key)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.Open(safe)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, safe)
		}
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// URL returns {publicBaseURL}{routePrefix}/{escaped key}. Each path segment
// is escaped separately so the slashes survive.
func (s *LocalStorage) URL(key string) string {
	segs := strings.Split(key, "/")
	for i, seg := range segs {
		segs[i] = url.PathEscape(seg)
	}
	return s.publicBaseURL + s.routePrefix + "/" + strings.Join(segs, "/")
}

// KeyFromURL accepts an absolute URL, a path under the route prefix or a
// bare key.
func (s *LocalStorage) KeyFromURL(urlOrKey string) (string, error) {
	raw := urlOrKey
	switch {
	case isAbsoluteURL(raw):
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%w: invalid image url", domain.ErrInvalidKey)
		}
		p, ok := strings.CutPrefix(u.EscapedPath(), s.routePrefix+"/")
		if !ok {
			return "", fmt.Errorf("%w: url outside %s", domain.ErrInvalidKey, s.routePrefix)
		}
		raw = p
	case strings.HasPrefix(raw, s.routePrefix+"/"):
		raw = strings.TrimPrefix(raw, s.routePrefix+"/")
	default:
		return SanitizeKey(raw)
	}

	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("%w: bad escape in url", domain.ErrInvalidKey)
	}
	return SanitizeKey(decoded)
}

// Delete removes key. A missing file is not an error.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	safe, err := SanitizeKey(key)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(safe); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}
