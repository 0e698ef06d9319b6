package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"picproof/internal/config"
	"picproof/internal/domain"
	"picproof/internal/infra/crypto"
	"picproof/internal/infra/identity"
	"picproof/internal/infra/imaging"
	"picproof/internal/infra/qr"
	"picproof/internal/infra/ratelimit"
	"picproof/internal/infra/storage"
	"picproof/internal/usecase"
	"picproof/pkg/capture"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	testSecret  = "test-hmac-secret"
	testAPIKey  = "test-api-key"
	testAdmin   = "test-admin-key"
	testBaseURL = "http://localhost:8080"
	testNowUnix = 1748779200
)

type memStore struct {
	mu      sync.Mutex
	records map[string]domain.CaptureRecord
	audit   map[string][]domain.AuditEntry
}

func newMemStore() *memStore {
	return &memStore{
		records: map[string]domain.CaptureRecord{},
		audit:   map[string][]domain.AuditEntry{},
	}
}

func (m *memStore) Create(ctx context.Context, rec domain.CaptureRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[rec.ID]; exists {
		return fmt.Errorf("duplicate id %s", rec.ID)
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id string) (*domain.CaptureRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (m *memStore) List(ctx context.Context, query string, page, pageSize int) ([]domain.CaptureRecord, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CaptureRecord
	for id, rec := range m.records {
		if query == "" || strings.Contains(id, query) {
			out = append(out, rec)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) UpdateFields(ctx context.Context, id string, changes map[string]string, changedBy string) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	var entries []domain.AuditEntry
	for field, newValue := range changes {
		var oldValue *string
		switch field {
		case "provider":
			oldValue = &rec.Provider
		case "device_model":
			oldValue = &rec.DeviceModel
		case "app_version":
			oldValue = &rec.AppVersion
		default:
			return nil, fmt.Errorf("field %q: %w", field, domain.ErrFieldNotEditable)
		}
		if *oldValue == newValue {
			continue
		}
		entries = append(entries, domain.AuditEntry{
			ID:        uuid.NewString(),
			CaptureID: id,
			Field:     field,
			OldValue:  *oldValue,
			NewValue:  newValue,
			ChangedBy: changedBy,
			ChangedAt: time.Now().UTC(),
		})
		*oldValue = newValue
	}
	m.records[id] = rec
	m.audit[id] = append(m.audit[id], entries...)
	return entries, nil
}

func (m *memStore) ListByCapture(ctx context.Context, captureID string) ([]domain.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audit[captureID], nil
}

type testServer struct {
	srv       *Server
	store     *memStore
	artifacts *storage.Store
}

func newTestServer(t *testing.T, mutate func(*ServerDeps)) *testServer {
	t.Helper()

	artifacts, err := storage.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("storage: %v", err)
	}
	mem := newMemStore()
	now := func() time.Time { return time.Unix(testNowUnix, 0).UTC() }
	verifier := crypto.NewVerifier([]byte(testSecret), 300*time.Second, now)
	qrGen := qr.NewGenerator(artifacts)

	deps := ServerDeps{
		Upload: &usecase.AcceptUpload{
			Crypto:    verifier,
			IDs:       identity.NewGenerator(),
			Captures:  mem,
			Artifacts: artifacts,
			Web:       imaging.NewWebCopier(1600, 85),
			QR:        qrGen,
			BaseURL:   testBaseURL,
			Now:       now,
		},
		Resolve: &usecase.ResolveVerification{
			Captures: mem,
			QR:       qrGen,
			BaseURL:  testBaseURL,
		},
		Edit:        &usecase.AdminEdit{Captures: mem},
		Captures:    mem,
		Audits:      mem,
		APIKey:      testAPIKey,
		AdminAPIKey: testAdmin,
	}
	if mutate != nil {
		mutate(&deps)
	}

	cfg := config.Config{
		HTTPAddr:      ":0",
		PublicBaseURL: testBaseURL,
		StorageDir:    artifacts.Root(),
	}
	return &testServer{srv: NewServerWithDeps(cfg, deps), store: mem, artifacts: artifacts}
}

func testImage(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 30), G: uint8(y * 30), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return buf.Bytes()
}

type uploadOpts struct {
	apiKey    string
	lat, lon  string
	signature string
	timestamp string
	noHeaders bool
}

func (ts *testServer) upload(t *testing.T, img []byte, opts uploadOpts) *httptest.ResponseRecorder {
	t.Helper()

	lat, lon := opts.lat, opts.lon
	if lat == "" {
		lat = "51.507400"
	}
	if lon == "" {
		lon = "-0.127800"
	}
	deviceTime := "2025-06-01T12:00:00Z"

	var latF, lonF float64
	fmt.Sscanf(lat, "%f", &latF)
	fmt.Sscanf(lon, "%f", &lonF)
	timestamp := opts.timestamp
	if timestamp == "" {
		timestamp = fmt.Sprintf("%d", testNowUnix)
	}
	signed := capture.SignUploadWith([]byte(testSecret), img, deviceTime, latF, lonF,
		timestamp, uuid.NewString())
	if opts.signature != "" {
		signed.Signature = opts.signature
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("image", "photo.png")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fw.Write(img)
	fields := map[string]string{
		"device_time_utc": deviceTime,
		"tz_offset_min":   "60",
		"lat":             lat,
		"lon":             lon,
		"provider":        "gps",
		"device_model":    "Pixel 8",
		"android_api":     "34",
		"app_version":     "1.4.2",
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	apiKey := opts.apiKey
	if apiKey == "" {
		apiKey = testAPIKey
	}
	req.Header.Set("Authorization", "ApiKey "+apiKey)
	if !opts.noHeaders {
		req.Header.Set("X-Timestamp", signed.Timestamp)
		req.Header.Set("X-Nonce", signed.Nonce)
		req.Header.Set("X-Sign", signed.Signature)
	}

	w := httptest.NewRecorder()
	ts.srv.r.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

func TestUploadAndVerifyFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	img := testImage(t)

	w := ts.upload(t, img, uploadOpts{})
	if w.Code != http.StatusOK {
		t.Fatalf("upload status %d: %s", w.Code, w.Body.String())
	}
	var resp uploadResponse
	decodeJSON(t, w, &resp)
	if len(resp.ID) != 10 {
		t.Fatalf("id %q not 10 chars", resp.ID)
	}
	for _, r := range resp.ID {
		if !strings.ContainsRune("0123456789abcdefghijklmnopqrstuvwxyz", r) {
			t.Fatalf("id %q outside alphabet", resp.ID)
		}
	}
	if resp.VerifyURL != testBaseURL+"/verify/"+resp.ID {
		t.Fatalf("verify url %q", resp.VerifyURL)
	}

	vw := httptest.NewRecorder()
	ts.srv.r.ServeHTTP(vw, httptest.NewRequest(http.MethodGet, "/api/v1/verify/"+resp.ID, nil))
	if vw.Code != http.StatusOK {
		t.Fatalf("verify status %d: %s", vw.Code, vw.Body.String())
	}
	var view verifyResponse
	decodeJSON(t, vw, &view)
	if view.Lat != 51.507400 || view.Lon != -0.127800 {
		t.Fatalf("coordinates %f %f", view.Lat, view.Lon)
	}
	if view.DeviceTimeUTC != "2025-06-01T12:00:00Z" {
		t.Fatalf("device time %q", view.DeviceTimeUTC)
	}
	if view.VerifyURL != resp.VerifyURL {
		t.Fatalf("page url %q differs from upload url %q", view.VerifyURL, resp.VerifyURL)
	}
	if view.WebImageURL == "" || view.QRURL == "" {
		t.Fatalf("artifact urls missing: %+v", view)
	}

	rec, err := ts.store.GetByID(context.Background(), resp.ID)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if rec.HashSHA256 != crypto.HashBytes(img) {
		t.Fatal("stored digest differs from upload digest")
	}
	if !ts.artifacts.Exists(rec.ImageKeyOriginal) || !ts.artifacts.Exists(rec.ImageKeyWeb) {
		t.Fatal("artifact pair missing on disk")
	}
	if !ts.artifacts.Exists("qr/" + resp.ID + ".png") {
		t.Fatal("qr artifact missing")
	}

	sw := httptest.NewRecorder()
	ts.srv.r.ServeHTTP(sw, httptest.NewRequest(http.MethodGet, "/storage/web/"+resp.ID+".jpg", nil))
	if sw.Code != http.StatusOK {
		t.Fatalf("web artifact fetch status %d", sw.Code)
	}

	hw := httptest.NewRecorder()
	ts.srv.r.ServeHTTP(hw, httptest.NewRequest(http.MethodGet, "/verify/"+resp.ID, nil))
	if hw.Code != http.StatusOK {
		t.Fatalf("verify page status %d", hw.Code)
	}
}

func TestUploadRejectsWrongAPIKey(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.upload(t, testImage(t), uploadOpts{apiKey: "wrong"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", w.Code)
	}
}

func TestUploadAcceptsXApiKeyHeader(t *testing.T) {
	ts := newTestServer(t, nil)
	img := testImage(t)
	signed := capture.SignUploadWith([]byte(testSecret), img, "2025-06-01T12:00:00Z",
		51.507400, -0.127800, fmt.Sprintf("%d", testNowUnix), uuid.NewString())

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("image", "photo.png")
	fw.Write(img)
	for k, v := range map[string]string{
		"device_time_utc": "2025-06-01T12:00:00Z",
		"lat":             "51.507400",
		"lon":             "-0.127800",
	} {
		mw.WriteField(k, v)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Api-Key", testAPIKey)
	req.Header.Set("X-Timestamp", signed.Timestamp)
	req.Header.Set("X-Nonce", signed.Nonce)
	req.Header.Set("X-Sign", signed.Signature)

	w := httptest.NewRecorder()
	ts.srv.r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
}

func TestUploadFlippedSignatureCharRejected(t *testing.T) {
	ts := newTestServer(t, nil)
	img := testImage(t)

	signed := capture.SignUploadWith([]byte(testSecret), img, "2025-06-01T12:00:00Z",
		51.507400, -0.127800, fmt.Sprintf("%d", testNowUnix), "nonce-flip")
	flipped := []byte(signed.Signature)
	if flipped[0] == 'a' {
		flipped[0] = 'b'
	} else {
		flipped[0] = 'a'
	}

	w := ts.upload(t, img, uploadOpts{signature: string(flipped)})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp errorResponse
	decodeJSON(t, w, &resp)
	if resp.Code != "BAD_SIGNATURE" {
		t.Fatalf("code %q", resp.Code)
	}
	if len(ts.store.records) != 0 {
		t.Fatal("rejected upload must not persist a record")
	}
	entries, err := os.ReadDir(filepath.Join(ts.artifacts.Root(), "original"))
	if err != nil {
		t.Fatalf("read original dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatal("rejected upload must not write artifacts")
	}
}

func TestUploadMissingSignatureHeaders(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.upload(t, testImage(t), uploadOpts{noHeaders: true})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d", w.Code)
	}
	var resp errorResponse
	decodeJSON(t, w, &resp)
	if resp.Code != "MISSING_CREDENTIALS" {
		t.Fatalf("code %q", resp.Code)
	}
}

func TestUploadMalformedTimestampUnauthorized(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.upload(t, testImage(t), uploadOpts{timestamp: "not-a-number"})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp errorResponse
	decodeJSON(t, w, &resp)
	if resp.Code != "BAD_TIMESTAMP" {
		t.Fatalf("code %q", resp.Code)
	}
}

func TestUploadRejectsOutOfRangeCoordinates(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.upload(t, testImage(t), uploadOpts{lat: "91.000000"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var resp errorResponse
	decodeJSON(t, w, &resp)
	if resp.Code != "INVALID_COORDINATES" {
		t.Fatalf("code %q", resp.Code)
	}
}

func TestUploadRejectsMalformedLat(t *testing.T) {
	ts := newTestServer(t, nil)
	w := ts.upload(t, testImage(t), uploadOpts{lat: "not-a-number"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
}

func TestVerifyUnknownID(t *testing.T) {
	ts := newTestServer(t, nil)
	for _, path := range []string{"/api/v1/verify/zzzzzzzzzz", "/verify/zzzzzzzzzz"} {
		w := httptest.NewRecorder()
		ts.srv.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusNotFound {
			t.Fatalf("%s status %d", path, w.Code)
		}
	}
}

func TestUploadRateLimited(t *testing.T) {
	ts := newTestServer(t, func(deps *ServerDeps) {
		deps.RateLimiter = ratelimit.NewMemoryLimiter(nil)
		deps.RateLimitRequests = 1
		deps.RateLimitWindow = time.Minute
	})
	img := testImage(t)

	if w := ts.upload(t, img, uploadOpts{}); w.Code != http.StatusOK {
		t.Fatalf("first upload status %d: %s", w.Code, w.Body.String())
	}
	w := ts.upload(t, img, uploadOpts{})
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second upload status %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Fatal("missing Retry-After header")
	}
}

func TestAdminAPI(t *testing.T) {
	ts := newTestServer(t, nil)
	img := testImage(t)
	uw := ts.upload(t, img, uploadOpts{})
	var up uploadResponse
	decodeJSON(t, uw, &up)

	adminReq := func(method, path string, body []byte, key string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, bytes.NewReader(body))
		if key != "" {
			req.Header.Set("X-Admin-Key", key)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		w := httptest.NewRecorder()
		ts.srv.r.ServeHTTP(w, req)
		return w
	}

	if w := adminReq(http.MethodGet, "/api/v1/admin/captures", nil, ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("no key status %d", w.Code)
	}
	if w := adminReq(http.MethodGet, "/api/v1/admin/captures", nil, "wrong"); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key status %d", w.Code)
	}

	lw := adminReq(http.MethodGet, "/api/v1/admin/captures?q="+up.ID[:4], nil, testAdmin)
	if lw.Code != http.StatusOK {
		t.Fatalf("list status %d: %s", lw.Code, lw.Body.String())
	}
	var list captureListResponse
	decodeJSON(t, lw, &list)
	if list.Total != 1 || len(list.Items) != 1 || list.Items[0].ID != up.ID {
		t.Fatalf("list mismatch: %+v", list)
	}

	gw := adminReq(http.MethodGet, "/api/v1/admin/captures/"+up.ID, nil, testAdmin)
	if gw.Code != http.StatusOK {
		t.Fatalf("get status %d", gw.Code)
	}
	var got captureResponse
	decodeJSON(t, gw, &got)
	if got.ImageKeyOriginal == "" || got.HashSHA256 == "" {
		t.Fatalf("admin view incomplete: %+v", got)
	}

	patch, _ := json.Marshal(adminEditRequest{
		Changes:   map[string]string{"provider": "network"},
		ChangedBy: "ops@example.com",
	})
	pw := adminReq(http.MethodPatch, "/api/v1/admin/captures/"+up.ID, patch, testAdmin)
	if pw.Code != http.StatusOK {
		t.Fatalf("patch status %d: %s", pw.Code, pw.Body.String())
	}

	bad, _ := json.Marshal(adminEditRequest{Changes: map[string]string{"lat": "0"}})
	bw := adminReq(http.MethodPatch, "/api/v1/admin/captures/"+up.ID, bad, testAdmin)
	if bw.Code != http.StatusBadRequest {
		t.Fatalf("protected field patch status %d", bw.Code)
	}

	aw := adminReq(http.MethodGet, "/api/v1/admin/captures/"+up.ID+"/audit", nil, testAdmin)
	if aw.Code != http.StatusOK {
		t.Fatalf("audit status %d", aw.Code)
	}
	var audit struct {
		Items []auditEntryResponse `json:"items"`
	}
	decodeJSON(t, aw, &audit)
	if len(audit.Items) != 1 || audit.Items[0].Field != "provider" ||
		audit.Items[0].OldValue != "gps" || audit.Items[0].NewValue != "network" ||
		audit.Items[0].ChangedBy != "ops@example.com" {
		t.Fatalf("audit trail mismatch: %+v", audit.Items)
	}
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t, nil)
	w := httptest.NewRecorder()
	ts.srv.r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
}
