package photos

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"acmreport/server/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore is a mock implementation of the Store interface
type MockStore struct {
	mock.Mock
}

func (m *MockStore) GetCachedPhoto(key string) (*models.CachedPhoto, error) {
	args := m.Called(key)
	photo, _ := args.Get(0).(*models.CachedPhoto)
	return photo, args.Error(1)
}

func (m *MockStore) SaveCachedPhoto(photo *models.CachedPhoto) error {
	args := m.Called(photo)
	return args.Error(0)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestResolver(store Store) *Resolver {
	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil))
	return NewResolver(logger, store, time.Second, 1<<20)
}

func countingServer(t *testing.T, status int, body []byte) (*httptest.Server, *int32) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestResolve_EmbeddedTokens(t *testing.T) {
	pngData := testPNG(t)
	encoded := base64.StdEncoding.EncodeToString(pngData)

	tests := []struct {
		name      string
		token     string
		expectErr bool
	}{
		{name: "Data URI", token: "data:image/png;base64," + encoded},
		{name: "Bare base64", token: encoded},
		{name: "Unpadded base64", token: base64.RawStdEncoding.EncodeToString(pngData)},
		{name: "Invalid base64", token: "***not base64***", expectErr: true},
		{name: "Data URI without base64", token: "data:image/png,rawbytes", expectErr: true},
		{name: "Not an image", token: base64.StdEncoding.EncodeToString([]byte("hello world")), expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestResolver(nil)
			photo, err := r.Resolve(context.Background(), models.PhotoFromEmbedded(tt.token))
			if tt.expectErr {
				var decodeErr *AssetDecodeError
				require.True(t, errors.As(err, &decodeErr))
				assert.False(t, decodeErr.Temporary)
				assert.Nil(t, photo)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "image/png", photo.MIMEType)
			assert.Equal(t, "PNG", photo.ImageType())
			assert.Equal(t, pngData, photo.Data)
		})
	}
}

func TestResolve_NoPhoto(t *testing.T) {
	r := newTestResolver(nil)
	_, err := r.Resolve(context.Background(), models.NoPhoto())
	var decodeErr *AssetDecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestResolve_URLIsFetchedOnce(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK, testPNG(t))
	r := newTestResolver(nil)
	ref := models.PhotoFromURL(srv.URL + "/front.png")

	for i := 0; i < 3; i++ {
		photo, err := r.Resolve(context.Background(), ref)
		require.NoError(t, err)
		assert.Equal(t, "image/png", photo.MIMEType)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	r.Forget(ref)
	_, err := r.Resolve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestResolve_URLFailures(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         []byte
		temporary    bool
		expectedHits int32
	}{
		{name: "Server error is retried on next call", status: http.StatusBadGateway, temporary: true, expectedHits: 2},
		{name: "Rate limited is retried on next call", status: http.StatusTooManyRequests, temporary: true, expectedHits: 2},
		{name: "Not found is cached", status: http.StatusNotFound, expectedHits: 1},
		{name: "Non-image body is cached", status: http.StatusOK, body: []byte("<html></html>"), expectedHits: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hits := countingServer(t, tt.status, tt.body)
			r := newTestResolver(nil)
			ref := models.PhotoFromURL(srv.URL)

			for i := 0; i < 2; i++ {
				_, err := r.Resolve(context.Background(), ref)
				var decodeErr *AssetDecodeError
				require.True(t, errors.As(err, &decodeErr))
				assert.Equal(t, tt.temporary, decodeErr.Temporary)
			}
			assert.Equal(t, tt.expectedHits, atomic.LoadInt32(hits))
		})
	}
}

func TestResolve_TooLarge(t *testing.T) {
	big := append(testPNG(t), make([]byte, 2<<20)...)
	srv, _ := countingServer(t, http.StatusOK, big)
	r := newTestResolver(nil)

	_, err := r.Resolve(context.Background(), models.PhotoFromURL(srv.URL))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")
}

func TestResolve_FileURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, testPNG(t), 0644))
	r := newTestResolver(nil)

	photo, err := r.Resolve(context.Background(), models.PhotoFromURL("file://"+path))
	require.NoError(t, err)
	assert.Equal(t, "image/png", photo.MIMEType)

	_, err = r.Resolve(context.Background(), models.PhotoFromURL("ftp://example.com/a.png"))
	assert.Error(t, err)
}

func TestResolve_UsesStore(t *testing.T) {
	pngData := testPNG(t)

	t.Run("Store hit skips loading", func(t *testing.T) {
		ref := models.PhotoFromURL("http://127.0.0.1:1/unreachable.png")
		store := &MockStore{}
		store.On("GetCachedPhoto", ref.Key()).Return(&models.CachedPhoto{
			Key:      ref.Key(),
			MIMEType: "image/png",
			Data:     pngData,
		}, nil).Once()

		r := newTestResolver(store)
		for i := 0; i < 2; i++ {
			photo, err := r.Resolve(context.Background(), ref)
			require.NoError(t, err)
			assert.Equal(t, pngData, photo.Data)
		}
		store.AssertExpectations(t)
	})

	t.Run("Store miss saves the resolved photo", func(t *testing.T) {
		ref := models.PhotoFromEmbedded(base64.StdEncoding.EncodeToString(pngData))
		store := &MockStore{}
		store.On("GetCachedPhoto", ref.Key()).Return(nil, nil).Once()
		store.On("SaveCachedPhoto", mock.MatchedBy(func(p *models.CachedPhoto) bool {
			return p.Key == ref.Key() && p.MIMEType == "image/png" && p.SourceKind == models.PhotoKindEmbedded
		})).Return(nil).Once()

		r := newTestResolver(store)
		_, err := r.Resolve(context.Background(), ref)
		require.NoError(t, err)
		_, err = r.Resolve(context.Background(), ref)
		require.NoError(t, err)
		store.AssertExpectations(t)
	})
}

func TestResolveRecord_OmitsFailures(t *testing.T) {
	pngData := testPNG(t)
	record := models.NewAnalysisRecord(time.Now())
	require.NoError(t, record.SetField("mainPhoto", "data:image/png;base64,"+base64.StdEncoding.EncodeToString(pngData)))
	record.AddComparable()
	record.AddComparable()
	require.NoError(t, record.UpdateComparableField(0, "photo", "data:image/png;base64,!!!!"))

	r := newTestResolver(nil)
	set := r.ResolveRecord(context.Background(), record)

	assert.Len(t, set, 1)
	main, ok := set.Lookup(record.MainPhoto)
	require.True(t, ok)
	assert.Equal(t, pngData, main.Data)

	_, ok = set.Lookup(record.Comparables[0].Photo)
	assert.False(t, ok)
	_, ok = set.Lookup(record.Comparables[1].Photo)
	assert.False(t, ok)

	var empty Set
	_, ok = empty.Lookup(record.MainPhoto)
	assert.False(t, ok)
}
