package photos

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"acmreport/server/internal/models"

	"github.com/sirupsen/logrus"
)

const DefaultMaxBytes int64 = 8 << 20

// EmbeddedPhoto is image data ready to be placed in a rendered report.
type EmbeddedPhoto struct {
	MIMEType string
	Data     []byte
}

// ImageType returns the short image format name used by the PDF renderer.
func (p *EmbeddedPhoto) ImageType() string {
	switch p.MIMEType {
	case "image/jpeg":
		return "JPG"
	case "image/png":
		return "PNG"
	case "image/gif":
		return "GIF"
	}
	return ""
}

// Set holds resolved photos keyed by reference. Missing entries are photos
// that could not be resolved and are left out of the report.
type Set map[string]*EmbeddedPhoto

func (s Set) Lookup(ref models.PhotoReference) (*EmbeddedPhoto, bool) {
	if s == nil || ref.IsNone() {
		return nil, false
	}
	p, ok := s[ref.Key()]
	return p, ok
}

// Store persists resolved photos between runs. GetCachedPhoto returns nil
// without error when the key is unknown.
type Store interface {
	GetCachedPhoto(key string) (*models.CachedPhoto, error)
	SaveCachedPhoto(photo *models.CachedPhoto) error
}

type cacheEntry struct {
	photo *EmbeddedPhoto
	err   error
}

// Resolver turns photo references into embeddable image data. Successes and
// permanent failures are cached so each reference is resolved once.
type Resolver struct {
	logger    *logrus.Logger
	client    *http.Client
	store     Store
	maxBytes  int64
	cache     map[string]cacheEntry
	cacheLock sync.RWMutex
}

func NewResolver(logger *logrus.Logger, store Store, fetchTimeout time.Duration, maxBytes int64) *Resolver {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	return &Resolver{
		logger:   logger,
		client:   &http.Client{Timeout: fetchTimeout},
		store:    store,
		maxBytes: maxBytes,
		cache:    make(map[string]cacheEntry),
	}
}

// Resolve returns the image behind ref. Failures are *AssetDecodeError values.
func (r *Resolver) Resolve(ctx context.Context, ref models.PhotoReference) (*EmbeddedPhoto, error) {
	if ref.IsNone() {
		return nil, &AssetDecodeError{Ref: ref, Reason: "no photo set"}
	}
	key := ref.Key()

	r.cacheLock.RLock()
	entry, ok := r.cache[key]
	r.cacheLock.RUnlock()
	if ok {
		r.logger.WithFields(logrus.Fields{
			"kind":   ref.Kind,
			"source": "memory",
		}).Debug("Found photo in cache")
		return entry.photo, entry.err
	}

	if photo := r.fromStore(key); photo != nil {
		r.remember(key, cacheEntry{photo: photo})
		return photo, nil
	}

	photo, err := r.load(ctx, ref)
	if err != nil {
		var decodeErr *AssetDecodeError
		if errors.As(err, &decodeErr) && !decodeErr.Temporary {
			r.remember(key, cacheEntry{err: err})
		}
		r.logger.WithError(err).WithField("kind", ref.Kind).Warn("Failed to resolve photo")
		return nil, err
	}

	r.remember(key, cacheEntry{photo: photo})
	r.toStore(key, ref, photo)

	r.logger.WithFields(logrus.Fields{
		"kind":      ref.Kind,
		"mime_type": photo.MIMEType,
		"bytes":     len(photo.Data),
	}).Info("Resolved photo")
	return photo, nil
}

// ResolveRecord resolves the main photo and every comparable photo of the
// record. Unresolvable photos are logged and omitted from the result.
func (r *Resolver) ResolveRecord(ctx context.Context, record *models.AnalysisRecord) Set {
	refs := []models.PhotoReference{record.MainPhoto}
	for _, c := range record.Comparables {
		refs = append(refs, c.Photo)
	}

	set := make(Set)
	for _, ref := range refs {
		if ref.IsNone() {
			continue
		}
		if _, done := set[ref.Key()]; done {
			continue
		}
		photo, err := r.Resolve(ctx, ref)
		if err != nil {
			continue
		}
		set[ref.Key()] = photo
	}
	return set
}

// Forget drops any cached result for ref so the next Resolve loads it again.
func (r *Resolver) Forget(ref models.PhotoReference) {
	r.cacheLock.Lock()
	delete(r.cache, ref.Key())
	r.cacheLock.Unlock()
}

func (r *Resolver) remember(key string, entry cacheEntry) {
	r.cacheLock.Lock()
	r.cache[key] = entry
	r.cacheLock.Unlock()
}

func (r *Resolver) fromStore(key string) *EmbeddedPhoto {
	if r.store == nil {
		return nil
	}
	cached, err := r.store.GetCachedPhoto(key)
	if err != nil {
		r.logger.WithError(err).Warn("Could not read photo cache")
		return nil
	}
	if cached == nil {
		return nil
	}
	r.logger.WithFields(logrus.Fields{
		"kind":   cached.SourceKind,
		"source": "store",
	}).Debug("Found photo in cache")
	return &EmbeddedPhoto{MIMEType: cached.MIMEType, Data: cached.Data}
}

func (r *Resolver) toStore(key string, ref models.PhotoReference, photo *EmbeddedPhoto) {
	if r.store == nil {
		return
	}
	err := r.store.SaveCachedPhoto(&models.CachedPhoto{
		Key:        key,
		SourceKind: ref.Kind,
		MIMEType:   photo.MIMEType,
		Data:       photo.Data,
		ResolvedAt: time.Now(),
	})
	if err != nil {
		r.logger.WithError(err).Warn("Failed to save photo cache")
	}
}

func (r *Resolver) load(ctx context.Context, ref models.PhotoReference) (*EmbeddedPhoto, error) {
	var (
		data []byte
		err  error
	)
	switch ref.Kind {
	case models.PhotoKindEmbedded:
		data, err = decodeToken(ref)
	case models.PhotoKindURL:
		data, err = r.fetch(ctx, ref)
	default:
		return nil, &AssetDecodeError{Ref: ref, Reason: fmt.Sprintf("unsupported reference kind %q", ref.Kind)}
	}
	if err != nil {
		return nil, err
	}
	return sniff(ref, data)
}

func (r *Resolver) fetch(ctx context.Context, ref models.PhotoReference) ([]byte, error) {
	u, err := url.Parse(ref.Value)
	if err != nil {
		return nil, &AssetDecodeError{Ref: ref, Reason: "invalid URL", Err: err}
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return r.fetchHTTP(ctx, ref)
	case "file":
		return r.readFile(ref, u.Path)
	default:
		return nil, &AssetDecodeError{Ref: ref, Reason: fmt.Sprintf("unsupported URL scheme %q", u.Scheme)}
	}
}

func (r *Resolver) fetchHTTP(ctx context.Context, ref models.PhotoReference) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.Value, nil)
	if err != nil {
		return nil, &AssetDecodeError{Ref: ref, Reason: "failed to create request", Err: err}
	}
	req.Header.Set("User-Agent", "ACM Report Builder/1.0")
	req.Header.Set("Accept", "image/*")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, &AssetDecodeError{Ref: ref, Reason: "request failed", Temporary: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		temporary := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, &AssetDecodeError{Ref: ref, Reason: fmt.Sprintf("unexpected status %d", resp.StatusCode), Temporary: temporary}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, &AssetDecodeError{Ref: ref, Reason: "failed to read response", Temporary: true, Err: err}
	}
	if int64(len(data)) > r.maxBytes {
		return nil, &AssetDecodeError{Ref: ref, Reason: fmt.Sprintf("image exceeds %d bytes", r.maxBytes)}
	}
	return data, nil
}

func (r *Resolver) readFile(ref models.PhotoReference, path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, &AssetDecodeError{Ref: ref, Reason: "cannot open file", Err: err}
	}
	if info.Size() > r.maxBytes {
		return nil, &AssetDecodeError{Ref: ref, Reason: fmt.Sprintf("image exceeds %d bytes", r.maxBytes)}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &AssetDecodeError{Ref: ref, Reason: "cannot read file", Err: err}
	}
	return data, nil
}

// decodeToken accepts a base64 data URI or a bare base64 payload.
func decodeToken(ref models.PhotoReference) ([]byte, error) {
	payload := strings.TrimSpace(ref.Value)
	if strings.HasPrefix(strings.ToLower(payload), "data:") {
		header, body, found := strings.Cut(payload, ",")
		if !found {
			return nil, &AssetDecodeError{Ref: ref, Reason: "malformed data URI"}
		}
		if !strings.HasSuffix(strings.ToLower(header), ";base64") {
			return nil, &AssetDecodeError{Ref: ref, Reason: "data URI is not base64 encoded"}
		}
		payload = body
	}

	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(payload); err == nil {
			return data, nil
		}
	}
	return nil, &AssetDecodeError{Ref: ref, Reason: "invalid base64 payload"}
}

func sniff(ref models.PhotoReference, data []byte) (*EmbeddedPhoto, error) {
	if len(data) == 0 {
		return nil, &AssetDecodeError{Ref: ref, Reason: "empty image"}
	}
	mime := http.DetectContentType(data)
	switch mime {
	case "image/jpeg", "image/png", "image/gif":
		return &EmbeddedPhoto{MIMEType: mime, Data: data}, nil
	}
	return nil, &AssetDecodeError{Ref: ref, Reason: fmt.Sprintf("unsupported image type %s", mime)}
}
