package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/documind/documind/pkg/auth"
	"github.com/documind/documind/pkg/authstore"
	"github.com/documind/documind/pkg/categories"
	"github.com/documind/documind/pkg/chats"
	"github.com/documind/documind/pkg/classifier"
	"github.com/documind/documind/pkg/config"
	"github.com/documind/documind/pkg/duplicates"
	"github.com/documind/documind/pkg/query"
	"github.com/documind/documind/pkg/uploads"
)

type fakeAnswerer struct {
	response *query.Response
	queries  []string
	roles    []string
}

func (f *fakeAnswerer) Answer(ctx context.Context, q, role string) (*query.Response, error) {
	f.queries = append(f.queries, q)
	f.roles = append(f.roles, role)
	return f.response, nil
}

type fakeKV struct {
	cached    []byte
	languages map[string]int64
	blobs     map[string]map[string][]string
	hashes    map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{
		blobs:  map[string]map[string][]string{},
		hashes: map[string]string{},
	}
}

func (f *fakeKV) CachedAnalytics(ctx context.Context) ([]byte, bool, error) {
	return f.cached, f.cached != nil, nil
}

func (f *fakeKV) CacheAnalytics(ctx context.Context, data []byte, ttl time.Duration) error {
	f.cached = data
	return nil
}

func (f *fakeKV) ClearAnalyticsCache(ctx context.Context) error {
	f.cached = nil
	return nil
}

func (f *fakeKV) LanguageCounts(ctx context.Context) (map[string]int64, error) {
	return f.languages, nil
}

func (f *fakeKV) CustomCategories(ctx context.Context, domain string) (map[string][]string, error) {
	if blob, ok := f.blobs[domain]; ok {
		return blob, nil
	}
	return map[string][]string{}, nil
}

func (f *fakeKV) SetCustomCategories(ctx context.Context, domain string, cats map[string][]string) error {
	f.blobs[domain] = cats
	return nil
}

func (f *fakeKV) CustomCategoryDomains(ctx context.Context) ([]string, error) {
	var domains []string
	for domain := range f.blobs {
		domains = append(domains, domain)
	}
	return domains, nil
}

func (f *fakeKV) AllFileHashes(ctx context.Context) (map[string]string, error) {
	return f.hashes, nil
}

func (f *fakeKV) DeleteFileHash(ctx context.Context, fileHash string) error {
	delete(f.hashes, fileHash)
	return nil
}

func (f *fakeKV) DeleteFileMetadata(ctx context.Context, fileHash string) error {
	return nil
}

type testEnv struct {
	server   *Server
	ts       *httptest.Server
	users    *authstore.Store
	answerer *fakeAnswerer
	cfg      *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	tmp := t.TempDir()

	cfg := config.Default()
	cfg.Auth.Database = filepath.Join(tmp, "auth.db")
	cfg.Storage.IncomingDir = filepath.Join(tmp, "incoming")
	cfg.Storage.SortedDir = filepath.Join(tmp, "sorted")
	cfg.Storage.ChatsDir = filepath.Join(tmp, "chats")
	cfg.Classifier.LLMFallback = config.BoolPtr(false)
	os.MkdirAll(cfg.Storage.SortedDir, 0o755)

	users, err := authstore.Open(&cfg.Auth)
	if err != nil {
		t.Fatalf("authstore.Open: %v", err)
	}
	t.Cleanup(func() { users.Close() })

	tracker, err := uploads.New(users.DB(), 2, 1)
	if err != nil {
		t.Fatalf("uploads.New: %v", err)
	}

	chatStore, err := chats.Open(cfg.Storage.ChatsDir)
	if err != nil {
		t.Fatalf("chats.Open: %v", err)
	}

	kv := newFakeKV()
	answerer := &fakeAnswerer{response: &query.Response{
		Answer:           "The warranty lasts two years.",
		CitedFiles:       []string{"warranty.pdf"},
		ConfidenceScore:  80,
		DetectedLanguage: "en",
	}}

	srv, err := New(Options{
		Config:     cfg,
		Auth:       auth.NewService(&cfg.Auth),
		Users:      users,
		Uploads:    tracker,
		Engine:     answerer,
		Classifier: classifier.New(&cfg.Classifier),
		Chats:      chatStore,
		Analytics:  nil,
		Duplicates: duplicates.New(cfg.Storage.SortedDir, kv, nil),
		Categories: categories.New(kv),
	})
	if err != nil {
		t.Fatalf("server.New: %v", err)
	}

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	return &testEnv{server: srv, ts: ts, users: users, answerer: answerer, cfg: cfg}
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"username": username, "password": password})
	resp, err := http.Post(e.ts.URL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login for %s returned %d", username, resp.StatusCode)
	}
	var parsed struct {
		AccessToken string `json:"access_token"`
	}
	json.NewDecoder(resp.Body).Decode(&parsed)
	return parsed.AccessToken
}

// createUser provisions a non-admin account with its own role.
func (e *testEnv) createUser(t *testing.T, username, password string, permissions []string) {
	t.Helper()
	roleID, err := e.users.CreateRole("role-"+username, permissions, nil)
	if err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if _, err := e.users.CreateUser(username, password, roleID, nil); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
}

func (e *testEnv) request(t *testing.T, method, path, token string, body io.Reader) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.ts.URL+path, body)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()
	var parsed map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return parsed
}

func multipartUpload(t *testing.T, url, token, filename string, content []byte) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write(content)
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, url+"/api/upload", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)

	token := env.login(t, "admin", "admin123")
	if token == "" {
		t.Fatal("Expected a token")
	}

	body, _ := json.Marshal(map[string]string{"username": "admin", "password": "wrong"})
	resp, _ := http.Post(env.ts.URL+"/login", "application/json", bytes.NewReader(body))
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Bad password should return 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Post(env.ts.URL+"/login", "application/json", strings.NewReader(`{"username":"admin"}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Missing password should return 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminRoutePermissions(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "bob", "secret123", []string{"chat.send"})

	adminToken := env.login(t, "admin", "admin123")
	userToken := env.login(t, "bob", "secret123")

	resp := env.request(t, http.MethodGet, "/api/admin/users", adminToken, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Admin should list users, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/api/admin/users", userToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Non-admin should get 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/api/admin/users", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Anonymous should get 401, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestUpload_QuotaAndConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "bob", "secret123", []string{"files.upload"})
	token := env.login(t, "bob", "secret123")

	resp := multipartUpload(t, env.ts.URL, token, "first.txt", []byte("hello"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("First upload failed: %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["quota"] != "1/2" {
		t.Errorf("Expected quota 1/2, got %v", body["quota"])
	}

	resp = multipartUpload(t, env.ts.URL, token, "first.txt", []byte("hello again"))
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Duplicate incoming name should 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = multipartUpload(t, env.ts.URL, token, "second.txt", []byte("more"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Second upload failed: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = multipartUpload(t, env.ts.URL, token, "third.txt", []byte("over cap"))
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Over-quota upload should 429, got %d", resp.StatusCode)
	}
	body = decodeBody(t, resp)
	if body["quota"] != "2/2" {
		t.Errorf("Expected quota 2/2 in rejection, got %v", body["quota"])
	}

	// Admin is exempt from the cap and the size check stays per-file.
	adminToken := env.login(t, "admin", "admin123")
	big := bytes.Repeat([]byte("x"), 1024*1024+1)
	resp = multipartUpload(t, env.ts.URL, adminToken, "big.bin", big)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("Oversized upload should 413, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestListFiles_PendingUpload(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "bob", "secret123", []string{"files.upload"})
	token := env.login(t, "bob", "secret123")

	resp := multipartUpload(t, env.ts.URL, token, "report.txt", []byte("pending"))
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/api/files", token, nil)
	body := decodeBody(t, resp)
	files := body["files"].([]interface{})
	if len(files) != 1 {
		t.Fatalf("Expected 1 file, got %d", len(files))
	}
	entry := files[0].(map[string]interface{})
	if entry["domain"] != "Processing" || entry["category"] != "Pending" {
		t.Errorf("Unsorted upload should show as processing: %v", entry)
	}
	if entry["path"] != "incoming/report.txt" {
		t.Errorf("Unexpected path: %v", entry["path"])
	}
	if entry["is_owner"] != true {
		t.Error("Uploader should own the pending file")
	}
}

func TestDeleteFile_Incoming(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "bob", "secret123", []string{"files.upload", "files.delete.own"})
	token := env.login(t, "bob", "secret123")

	resp := multipartUpload(t, env.ts.URL, token, "doomed.txt", []byte("bye"))
	resp.Body.Close()

	resp = env.request(t, http.MethodDelete, "/api/files/incoming/doomed.txt", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Delete failed: %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["quota"] != "0/2" {
		t.Errorf("Expected quota 0/2 after delete, got %v", body["quota"])
	}

	if _, err := os.Stat(filepath.Join(env.cfg.Storage.IncomingDir, "doomed.txt")); !os.IsNotExist(err) {
		t.Error("File should be removed from incoming")
	}
}

func TestDeleteFile_OwnershipEnforced(t *testing.T) {
	env := newTestEnv(t)
	env.createUser(t, "bob", "secret123", []string{"files.upload", "files.delete.own"})
	env.createUser(t, "eve", "secret123", []string{"files.upload", "files.delete.own"})

	bobToken := env.login(t, "bob", "secret123")
	resp := multipartUpload(t, env.ts.URL, bobToken, "bobs.txt", []byte("mine"))
	resp.Body.Close()

	eveToken := env.login(t, "eve", "secret123")
	resp = env.request(t, http.MethodDelete, "/api/files/incoming/bobs.txt", eveToken, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("Deleting another user's file should 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDeleteFile_PathTraversalRejected(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "admin123")

	resp := env.request(t, http.MethodDelete, "/api/files/..%2f..%2fetc%2fpasswd", token, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Traversal should 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestChat_RecordsHistory(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "admin123")

	chat := decodeBody(t, env.request(t, http.MethodPost, "/api/chats",
		token, strings.NewReader(`{}`)))
	chatID := chat["id"].(string)

	payload := fmt.Sprintf(`{"query":"how long does the warranty last","chat_id":%q}`, chatID)
	resp := env.request(t, http.MethodPost, "/chat", token, strings.NewReader(payload))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Chat failed: %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["answer"] != "The warranty lasts two years." {
		t.Errorf("Unexpected answer: %v", body["answer"])
	}
	if env.answerer.roles[0] != "Admin" {
		t.Errorf("Role should come from the token, got %q", env.answerer.roles[0])
	}

	messages := env.request(t, http.MethodGet, "/api/chats/"+chatID+"/messages", token, nil)
	defer messages.Body.Close()
	var history []map[string]interface{}
	json.NewDecoder(messages.Body).Decode(&history)
	if len(history) != 2 {
		t.Fatalf("Expected 2 history entries, got %d", len(history))
	}
	if history[0]["sender"] != "user" || history[1]["sender"] != "assistant" {
		t.Errorf("Unexpected history order: %v", history)
	}

	chatsList := env.request(t, http.MethodGet, "/api/chats", token, nil)
	defer chatsList.Body.Close()
	var metas []map[string]interface{}
	json.NewDecoder(chatsList.Body).Decode(&metas)
	if metas[0]["title"] != "how long does the warranty las..." {
		t.Errorf("Auto-title mismatch: %v", metas[0]["title"])
	}

	resp = env.request(t, http.MethodPost, "/chat", token, strings.NewReader(`{"query":"  "}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Blank query should 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestClassifyEndpoint(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := http.Post(env.ts.URL+"/classify", "application/json",
		strings.NewReader(`{"text":"gst return filing for the quarter","filename":"gst.pdf"}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Classify failed: %d", resp.StatusCode)
	}
	body := decodeBody(t, resp)
	if body["domain"] != "Finance" {
		t.Errorf("Expected Finance, got %v", body["domain"])
	}

	resp, _ = http.Post(env.ts.URL+"/classify", "application/json", strings.NewReader(`{}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Empty classify should 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCategoriesEndpoints(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "admin123")

	resp := env.request(t, http.MethodPost, "/api/categories", token,
		strings.NewReader(`{"domain":"Finance","category_name":"Crypto","keywords":["bitcoin"]}`))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Create category failed: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.request(t, http.MethodGet, "/api/categories?domain=Finance", token, nil)
	body := decodeBody(t, resp)
	cats := body["categories"].(map[string]interface{})
	if _, ok := cats["Crypto"]; !ok {
		t.Errorf("Custom category missing from merged view: %v", cats)
	}
	if _, ok := cats["Tax"]; !ok {
		t.Errorf("Builtin category missing from merged view: %v", cats)
	}

	resp = env.request(t, http.MethodDelete, "/api/categories/Finance/Crypto", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Delete category failed: %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.request(t, http.MethodDelete, "/api/categories/Finance/Crypto", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("Deleting twice should 404, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = env.request(t, http.MethodPost, "/api/categories", token,
		strings.NewReader(`{"domain":"Finance","category_name":"","keywords":["x"]}`))
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Invalid category should 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestOpenEndpoints(t *testing.T) {
	env := newTestEnv(t)

	resp, _ := http.Get(env.ts.URL + "/test")
	body := decodeBody(t, resp)
	if body["status"] != "OK" {
		t.Errorf("Unexpected test response: %v", body)
	}

	resp, _ = http.Get(env.ts.URL + "/status")
	body = decodeBody(t, resp)
	if body["ollama_available"] != false {
		t.Errorf("LLM should be reported unavailable: %v", body)
	}

	resp, _ = http.Get(env.ts.URL + "/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Metrics endpoint failed: %d", resp.StatusCode)
	}
	resp.Body.Close()
}
