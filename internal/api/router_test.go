package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spf13/afero"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/timmy/memehub/internal/api/handler"
	"github.com/timmy/memehub/internal/config"
	"github.com/timmy/memehub/internal/domain"
	"github.com/timmy/memehub/internal/repository"
	"github.com/timmy/memehub/internal/service"
	"github.com/timmy/memehub/internal/storage"
)

const dims = 8

type hashEmbedder struct{}

func (hashEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = float32(sum[i]) - 127.5
	}
	return vec, nil
}

func (e hashEmbedder) EmbedQuery(ctx context.Context, q string) ([]float32, error) {
	return e.Embed(ctx, q)
}

func (hashEmbedder) GetModel() string { return "hash" }
func (hashEmbedder) Dimensions() int  { return dims }

type echoDescriber struct{}

func (echoDescriber) Describe(ctx context.Context, req service.DescribeRequest) (string, error) {
	if bytes.HasPrefix(req.ImageData, []byte("bad")) {
		return "", domain.ErrNoDescription
	}
	return "meme about " + string(req.ImageData), nil
}

type pageExtractor struct{ meta domain.PageMetadata }

func (p pageExtractor) Extract(ctx context.Context, pageURL string) (*domain.PageMetadata, error) {
	m := p.meta
	return &m, nil
}

func newTestRouter(t *testing.T, page domain.PageMetadata) *gin.Engine {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := repository.Migrate(db); err != nil {
		t.Fatal(err)
	}
	ledger := repository.NewOwnershipRepository(db)

	store := storage.NewLocalStorageFs(afero.NewMemMapFs(), "/images", "http://localhost:3001")
	meme := &service.DomainSpace{
		Name: domain.DomainMeme, Embedder: hashEmbedder{}, Index: repository.NewMemoryIndex(dims),
		ScoreThreshold: 0.75, DefaultTopK: 5,
	}
	tiktok := &service.DomainSpace{
		Name: domain.DomainTikTok, Embedder: hashEmbedder{}, Index: repository.NewMemoryIndex(dims),
		ScoreThreshold: 0.3, DefaultTopK: 10, MinTopK: 2, MaxTopK: 20,
	}
	vip := func(owner string) bool { return owner == "vip@example.com" }

	search := service.NewSearchService(ledger, meme, tiktok)
	search.RestrictDomain(domain.DomainTikTok, vip)

	cfg := &config.Config{
		Server: config.ServerConfig{Mode: "test", CORS: config.CORSConfig{AllowedOrigins: []string{"http://app.test"}}},
		Upload: config.UploadConfig{MaxFiles: 3, MaxFileSizeMB: 1},
	}
	return SetupRouter(cfg, Dependencies{
		Search: search,
		Ingest: service.NewIngestService(store, echoDescriber{}, meme, ledger, &service.IngestConfig{
			MaxFiles: 3, MaxFileSize: 1 << 20, MaxContextLength: 30,
		}),
		Delete:     service.NewDeleteService(store, meme, ledger),
		TikTok:     service.NewTikTokService(pageExtractor{meta: page}, tiktok, &service.TikTokConfig{Allowed: vip}),
		Blobs:      store,
		BlobPrefix: store.RoutePrefix(),
	})
}

func multipartUpload(t *testing.T, owner, contextJSON string, files ...string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for i, content := range files {
		fw, err := w.CreateFormFile("memes", string(rune('a'+i))+".png")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write([]byte(content))
	}
	if owner != "" {
		w.WriteField("userEmail", owner)
	}
	if contextJSON != "" {
		w.WriteField("context", contextJSON)
	}
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestUploadSearchAndServe(t *testing.T) {
	r := newTestRouter(t, domain.PageMetadata{})

	rec := serve(r, multipartUpload(t, "a@example.com", `[{"characters":"Doge"}]`, "doge", "cat"))
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body = %s", rec.Code, rec.Body)
	}
	var up struct {
		Results []service.ItemResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &up); err != nil || len(up.Results) != 2 {
		t.Fatalf("upload body = %s", rec.Body)
	}

	q := url.Values{"query": {"meme about doge"}, "userEmail": {"a@example.com"}}
	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/search?"+q.Encode(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d, body = %s", rec.Code, rec.Body)
	}
	var found service.SearchResponse
	json.Unmarshal(rec.Body.Bytes(), &found)
	if len(found.Results) == 0 || found.Results[0].ID != up.Results[0].ImageURL {
		t.Errorf("search results = %+v", found.Results)
	}

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/api/recent-memes?userEmail=a@example.com", nil))
	var recent []domain.OwnershipRecord
	json.Unmarshal(rec.Body.Bytes(), &recent)
	if rec.Code != http.StatusOK || len(recent) != 2 {
		t.Errorf("recent = %d %s", rec.Code, rec.Body)
	}

	blobPath := strings.TrimPrefix(up.Results[1].ImageURL, "http://localhost:3001")
	rec = serve(r, httptest.NewRequest(http.MethodGet, blobPath, nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "cat" {
		t.Fatalf("blob = %d %q", rec.Code, rec.Body)
	}
	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=31536000, immutable" {
		t.Errorf("Cache-Control = %q", got)
	}
}

func TestUploadStatuses(t *testing.T) {
	tests := []struct {
		name    string
		req     func(t *testing.T) *http.Request
		want    int
		wantCat domain.ErrorCategory
	}{
		{"all failed", func(t *testing.T) *http.Request { return multipartUpload(t, "a@example.com", "", "bad1", "bad2") }, http.StatusBadGateway, ""},
		{"partial", func(t *testing.T) *http.Request { return multipartUpload(t, "a@example.com", "", "bad1", "ok") }, http.StatusOK, ""},
		{"missing owner", func(t *testing.T) *http.Request { return multipartUpload(t, "", "", "x") }, http.StatusBadRequest, domain.CategoryValidation},
		{"malformed context", func(t *testing.T) *http.Request { return multipartUpload(t, "a@example.com", "{nope", "x") }, http.StatusBadRequest, domain.CategoryValidation},
		{"context longer than files", func(t *testing.T) *http.Request {
			return multipartUpload(t, "a@example.com", `[{},{}]`, "x")
		}, http.StatusBadRequest, domain.CategoryValidation},
		{"too many files", func(t *testing.T) *http.Request { return multipartUpload(t, "a@example.com", "", "1", "2", "3", "4") }, http.StatusRequestEntityTooLarge, domain.CategoryLimit},
		{"file too large", func(t *testing.T) *http.Request {
			return multipartUpload(t, "a@example.com", "", strings.Repeat("x", 1<<20+1))
		}, http.StatusRequestEntityTooLarge, domain.CategoryLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, domain.PageMetadata{})
			rec := serve(r, tt.req(t))
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, tt.want, rec.Body)
			}
			if tt.wantCat != "" {
				var body map[string]interface{}
				json.Unmarshal(rec.Body.Bytes(), &body)
				if body["category"] != string(tt.wantCat) {
					t.Errorf("category = %v, want %s", body["category"], tt.wantCat)
				}
			}
		})
	}
}

func TestSearchTikTokStatuses(t *testing.T) {
	r := newTestRouter(t, domain.PageMetadata{})
	tests := []struct {
		query string
		want  int
	}{
		{"query=dance&userEmail=vip@example.com", http.StatusOK},
		{"query=dance&userEmail=vip@example.com&topK=2", http.StatusOK},
		{"query=dance&userEmail=vip@example.com&topK=20", http.StatusOK},
		{"query=dance&userEmail=vip@example.com&topK=1", http.StatusBadRequest},
		{"query=dance&userEmail=vip@example.com&topK=21", http.StatusBadRequest},
		{"query=dance&userEmail=vip@example.com&topK=abc", http.StatusBadRequest},
		{"query=dance&userEmail=other@example.com", http.StatusForbidden},
		{"userEmail=vip@example.com", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/search/tiktok?"+tt.query, nil))
		if rec.Code != tt.want {
			t.Errorf("GET ?%s = %d, want %d", tt.query, rec.Code, tt.want)
		}
	}
}

func TestDomainsFollowAccessPolicy(t *testing.T) {
	r := newTestRouter(t, domain.PageMetadata{})
	tests := []struct {
		owner string
		want  string
	}{
		{"vip@example.com", "meme,tiktok"},
		{"other@example.com", "meme"},
	}
	for _, tt := range tests {
		rec := serve(r, httptest.NewRequest(http.MethodGet, "/api/domains?userEmail="+tt.owner, nil))
		var body struct {
			Domains []string `json:"domains"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got := strings.Join(body.Domains, ","); got != tt.want {
			t.Errorf("domains for %s = %s, want %s", tt.owner, got, tt.want)
		}
	}
}

func TestDeleteImageRejectsTraversal(t *testing.T) {
	r := newTestRouter(t, domain.PageMetadata{})
	rec := serve(r, jsonRequest(http.MethodDelete, "/api/delete-image", handler.DeleteImageRequest{
		UserEmail: "a@example.com",
		ImageURL:  "http://localhost:3001/images/../../etc/passwd",
	}))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400, body = %s", rec.Code, rec.Body)
	}
}

func TestTikTokRoutes(t *testing.T) {
	page := domain.PageMetadata{Title: "Funny dance", Author: "dancer"}
	r := newTestRouter(t, page)
	video := "https://www.tiktok.com/@dancer/video/1"

	rec := serve(r, jsonRequest(http.MethodPost, "/api/ingest", map[string]interface{}{
		"url": video, "userEmail": "vip@example.com", "context": map[string]string{"notes": "classic"},
	}))
	if rec.Code != http.StatusCreated {
		t.Fatalf("ingest status = %d, body = %s", rec.Code, rec.Body)
	}

	rec = serve(r, jsonRequest(http.MethodPost, "/api/ingest", map[string]interface{}{"url": video, "userEmail": "nobody@example.com"}))
	if rec.Code != http.StatusForbidden {
		t.Errorf("forbidden ingest status = %d", rec.Code)
	}

	rec = serve(r, jsonRequest(http.MethodPost, "/api/auth/tiktok-access", map[string]string{"userEmail": "VIP@example.com"}))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"tiktokAccess":true`) {
		t.Errorf("access = %d %s", rec.Code, rec.Body)
	}

	rec = serve(r, jsonRequest(http.MethodDelete, "/api/tiktok", map[string]string{"userEmail": "vip@example.com", "url": video}))
	if rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
}

func TestIngestNoContent(t *testing.T) {
	r := newTestRouter(t, domain.PageMetadata{})
	rec := serve(r, jsonRequest(http.MethodPost, "/api/ingest", map[string]string{
		"url": "https://www.tiktok.com/@x/video/2", "userEmail": "vip@example.com",
	}))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := newTestRouter(t, domain.PageMetadata{})

	req := httptest.NewRequest(http.MethodOptions, "/api/upload", nil)
	req.Header.Set("Origin", "http://app.test")
	rec := serve(r, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("Access-Control-Allow-Origin") != "http://app.test" {
		t.Errorf("preflight = %d, origin header %q", rec.Code, rec.Header().Get("Access-Control-Allow-Origin"))
	}

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = serve(r, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("unlisted origin got CORS headers")
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing request id")
	}
}

func TestReadyReportsFailingCheck(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{Server: config.ServerConfig{Mode: "test"}}
	r := SetupRouter(cfg, Dependencies{
		Search: service.NewSearchService(nil),
		Checks: map[string]handler.Check{
			"ledger": func(context.Context) error { return nil },
			"qdrant": func(context.Context) error { return errors.New("connection refused") },
		},
	})
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("ready = %d %s", rec.Code, rec.Body)
	}
}
