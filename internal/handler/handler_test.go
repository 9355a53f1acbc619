package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Nasko29/progimage-backend/internal/config"
	"github.com/Nasko29/progimage-backend/internal/domain"
	"github.com/Nasko29/progimage-backend/internal/handler"
	"github.com/Nasko29/progimage-backend/internal/repository"
	"github.com/Nasko29/progimage-backend/internal/server"
	"github.com/Nasko29/progimage-backend/internal/service"
	"github.com/Nasko29/progimage-backend/pkg/utils"
)

const presignHost = "https://blobs.test/"

// memObjectStore is an in-memory stand-in for the S3 adapter.
type memObjectStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{blobs: make(map[string][]byte)}
}

func (m *memObjectStore) Upload(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = data
	return nil
}

func (m *memObjectStore) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", key, domain.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

func (m *memObjectStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := 0
	for key := range m.blobs {
		if strings.HasPrefix(key, prefix) {
			delete(m.blobs, key)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memObjectStore) PresignURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return presignHost + key + "?expires=" + ttl.String(), nil
}

func (m *memObjectStore) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.blobs[key]
	return data, ok
}

func (m *memObjectStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

func newTestServer(t *testing.T) (*gin.Engine, *memObjectStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		App: config.AppConfig{
			MaxUploadSize:  10 * 1024 * 1024,
			AllowedFormats: []string{"png", "jpg", "jpeg"},
			PresignTTL:     100 * time.Second,
		},
	}

	db, err := repository.OpenDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	log := zap.NewNop()
	store := newMemObjectStore()
	clientRepo := repository.NewClientRepository(db, log)
	imageRepo := repository.NewImageRepository(db, log)
	converter := utils.NewConverter(log)

	clients := service.NewClientService(clientRepo, imageRepo, store, log)
	images := service.NewImageService(imageRepo, store, converter, cfg, log)

	h := handler.NewHandler(clients, images, cfg, log)
	return server.NewRouter(h, cfg, log), store
}

func jsonDecode(body io.Reader, v interface{}) error {
	return json.NewDecoder(body).Decode(v)
}

func doRequest(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func registerClient(t *testing.T, router *gin.Engine) string {
	t.Helper()

	w := doRequest(router, httptest.NewRequest(http.MethodGet, "/apikey", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.RegisterResponse
	require.NoError(t, jsonDecode(w.Body, &resp))
	require.NotEmpty(t, resp.APIKey)
	return resp.APIKey
}

func uploadFile(t *testing.T, router *gin.Engine, apikey, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if apikey != "" {
		req.Header.Set("Apikeyid", apikey)
	}
	return doRequest(router, req)
}

func uploadOK(t *testing.T, router *gin.Engine, apikey, filename string, data []byte) string {
	t.Helper()

	w := uploadFile(t, router, apikey, filename, data)
	require.Equal(t, http.StatusOK, w.Code)

	var resp domain.UploadResponse
	require.NoError(t, jsonDecode(w.Body, &resp))
	require.NotEmpty(t, resp.UID)
	return resp.UID
}

// blobKeyFrom extracts the storage key from a presigned redirect target.
func blobKeyFrom(t *testing.T, location string) string {
	t.Helper()

	require.True(t, strings.HasPrefix(location, presignHost), "unexpected redirect %q", location)
	u, err := url.Parse(location)
	require.NoError(t, err)
	return strings.TrimPrefix(u.Path, "/")
}

func testPNG(t *testing.T) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 200, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestRegisterReturnsAPIKey(t *testing.T) {
	router, _ := newTestServer(t)

	a := registerClient(t, router)
	b := registerClient(t, router)
	assert.NotEqual(t, a, b)
}

func TestProtectedRoutesRequireHeader(t *testing.T) {
	router, _ := newTestServer(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/upload"},
		{http.MethodGet, "/api"},
		{http.MethodGet, "/api/convert/png"},
		{http.MethodDelete, "/apikey"},
		{http.MethodDelete, "/api/client"},
	}

	for _, route := range routes {
		w := doRequest(router, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", route.method, route.path)
	}
}

func TestUnknownAPIKeyRejected(t *testing.T) {
	router, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api?uid=whatever", nil)
	req.Header.Set("Apikeyid", "not-a-client")
	w := doRequest(router, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUploadRejectsDisallowedExtension(t *testing.T) {
	router, store := newTestServer(t)
	apikey := registerClient(t, router)

	for _, filename := range []string{"anim.gif", "notes.txt", "noextension"} {
		w := uploadFile(t, router, apikey, filename, []byte("payload"))
		assert.Equal(t, http.StatusForbidden, w.Code, "filename %q", filename)
	}

	// nothing must have reached the store
	assert.Zero(t, store.count())
}

func TestUploadReturnsUniqueUIDs(t *testing.T) {
	router, _ := newTestServer(t)
	apikey := registerClient(t, router)

	data := testPNG(t)
	a := uploadOK(t, router, apikey, "cat.png", data)
	b := uploadOK(t, router, apikey, "cat.png", data)
	assert.NotEqual(t, a, b)
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	router, store := newTestServer(t)
	apikey := registerClient(t, router)

	data := testPNG(t)
	uid := uploadOK(t, router, apikey, "cat.png", data)

	req := httptest.NewRequest(http.MethodGet, "/api?uid="+uid, nil)
	req.Header.Set("Apikeyid", apikey)
	w := doRequest(router, req)
	require.Equal(t, http.StatusFound, w.Code)

	key := blobKeyFrom(t, w.Header().Get("Location"))
	assert.Equal(t, apikey+"/"+uid+"/cat.png", key)

	stored, ok := store.get(key)
	require.True(t, ok)
	assert.Equal(t, data, stored)
}

func TestDownloadMissingUID(t *testing.T) {
	router, _ := newTestServer(t)
	apikey := registerClient(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	req.Header.Set("Apikeyid", apikey)
	w := doRequest(router, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestDownloadUnknownUID(t *testing.T) {
	router, _ := newTestServer(t)
	apikey := registerClient(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api?uid=no-such-uid", nil)
	req.Header.Set("Apikeyid", apikey)
	w := doRequest(router, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDownloadDoesNotLeakAcrossClients(t *testing.T) {
	router, _ := newTestServer(t)
	owner := registerClient(t, router)
	other := registerClient(t, router)

	uid := uploadOK(t, router, owner, "cat.png", testPNG(t))

	req := httptest.NewRequest(http.MethodGet, "/api?uid="+uid, nil)
	req.Header.Set("Apikeyid", other)
	w := doRequest(router, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConvertSameExtensionShortCircuits(t *testing.T) {
	router, store := newTestServer(t)
	apikey := registerClient(t, router)

	uid := uploadOK(t, router, apikey, "cat.png", testPNG(t))
	require.Equal(t, 1, store.count())

	req := httptest.NewRequest(http.MethodGet, "/api/convert/png?uid="+uid, nil)
	req.Header.Set("Apikeyid", apikey)
	w := doRequest(router, req)
	require.Equal(t, http.StatusMovedPermanently, w.Code)

	// redirects to the original, no derivative blob created
	key := blobKeyFrom(t, w.Header().Get("Location"))
	assert.Equal(t, apikey+"/"+uid+"/cat.png", key)
	assert.Equal(t, 1, store.count())
}

func TestConvertCreatesDerivative(t *testing.T) {
	router, store := newTestServer(t)
	apikey := registerClient(t, router)

	original := testPNG(t)
	uid := uploadOK(t, router, apikey, "cat.png", original)

	req := httptest.NewRequest(http.MethodGet, "/api/convert/jpg?uid="+uid, nil)
	req.Header.Set("Apikeyid", apikey)
	w := doRequest(router, req)
	require.Equal(t, http.StatusMovedPermanently, w.Code)

	key := blobKeyFrom(t, w.Header().Get("Location"))
	assert.Equal(t, apikey+"/"+uid+"/cat.jpg", key)

	// derivative is a decodable JPEG
	derived, ok := store.get(key)
	require.True(t, ok)
	_, err := jpeg.Decode(bytes.NewReader(derived))
	require.NoError(t, err)

	// original blob is untouched and still downloadable
	stored, ok := store.get(apikey + "/" + uid + "/cat.png")
	require.True(t, ok)
	assert.Equal(t, original, stored)

	dlReq := httptest.NewRequest(http.MethodGet, "/api?uid="+uid, nil)
	dlReq.Header.Set("Apikeyid", apikey)
	dw := doRequest(router, dlReq)
	require.Equal(t, http.StatusFound, dw.Code)
	assert.Equal(t, apikey+"/"+uid+"/cat.png", blobKeyFrom(t, dw.Header().Get("Location")))
}

func TestConvertUnsupportedTarget(t *testing.T) {
	router, store := newTestServer(t)
	apikey := registerClient(t, router)

	uid := uploadOK(t, router, apikey, "cat.png", testPNG(t))

	for _, ext := range []string{"eps", "exe", "webp"} {
		req := httptest.NewRequest(http.MethodGet, "/api/convert/"+ext+"?uid="+uid, nil)
		req.Header.Set("Apikeyid", apikey)
		w := doRequest(router, req)
		assert.Equal(t, http.StatusForbidden, w.Code, "extension %q", ext)
	}

	assert.Equal(t, 1, store.count())
}

func TestConvertUnknownUID(t *testing.T) {
	router, _ := newTestServer(t)
	apikey := registerClient(t, router)

	req := httptest.NewRequest(http.MethodGet, "/api/convert/jpg?uid=no-such-uid", nil)
	req.Header.Set("Apikeyid", apikey)
	w := doRequest(router, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConvertUndecodableBlob(t *testing.T) {
	router, _ := newTestServer(t)
	apikey := registerClient(t, router)

	// a .png upload whose bytes are not an image
	uid := uploadOK(t, router, apikey, "fake.png", []byte("not an image at all"))

	req := httptest.NewRequest(http.MethodGet, "/api/convert/jpg?uid="+uid, nil)
	req.Header.Set("Apikeyid", apikey)
	w := doRequest(router, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDeregisterPurgesEverything(t *testing.T) {
	router, store := newTestServer(t)
	apikey := registerClient(t, router)

	uid1 := uploadOK(t, router, apikey, "cat.png", testPNG(t))
	uid2 := uploadOK(t, router, apikey, "dog.jpg", testPNG(t))
	require.Equal(t, 2, store.count())

	req := httptest.NewRequest(http.MethodDelete, "/apikey", nil)
	req.Header.Set("Apikeyid", apikey)
	w := doRequest(router, req)
	require.Equal(t, http.StatusOK, w.Code)

	// no blobs remain under the client's prefix
	assert.Zero(t, store.count())

	// the old credential no longer authenticates
	for _, uid := range []string{uid1, uid2} {
		dlReq := httptest.NewRequest(http.MethodGet, "/api?uid="+uid, nil)
		dlReq.Header.Set("Apikeyid", apikey)
		dw := doRequest(router, dlReq)
		assert.Equal(t, http.StatusForbidden, dw.Code)
	}
}

func TestDeregisterWithoutImages(t *testing.T) {
	router, _ := newTestServer(t)
	apikey := registerClient(t, router)

	req := httptest.NewRequest(http.MethodDelete, "/api/client", nil)
	req.Header.Set("Apikeyid", apikey)
	w := doRequest(router, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNoRouteReturnsJSON404(t *testing.T) {
	router, _ := newTestServer(t)

	w := doRequest(router, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	var resp domain.ErrorResponse
	require.NoError(t, jsonDecode(w.Body, &resp))
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestServer(t)

	w := doRequest(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIndexRedirectsToDocs(t *testing.T) {
	router, _ := newTestServer(t)

	w := doRequest(router, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusMovedPermanently, w.Code)
}
