package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"pairing_analyzer/internal/pipeline"
	"pairing_analyzer/internal/progress"
	"pairing_analyzer/internal/storage"
)

const doc = `BASE: ONT
FLEET: 757
BID PERIOD: 2601

TRIP ID: O8001  FREQ: 3
DAY 1  RPT 01:00
UA1234 ONT SFO 02:00 03:30
UA1235 SFO ONT 04:15 05:45
RLS 06:00
TAFB: 05:00

O8002 FREQ 2
DAY 1 RPT 09:00
UA2001 ONT LAX 09:30 09:45
RLS 10:00
DAY 2 RPT 09:00
UA2002 LAX ONT 09:30 09:45
TAFB 24:30
`

// mockStore keeps analyses in memory.
type mockStore struct {
	mu       sync.Mutex
	analyses map[string]*pipeline.Result
	order    []string
}

func newMockStore() *mockStore {
	return &mockStore{analyses: make(map[string]*pipeline.Result)}
}

func (m *mockStore) SaveAnalysis(_ context.Context, res *pipeline.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.analyses[res.ID.String()] = res
	m.order = append(m.order, res.ID.String())
	return nil
}

func (m *mockStore) GetAnalysis(_ context.Context, id string) (*pipeline.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.analyses[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return res, nil
}

func (m *mockStore) ListAnalyses(_ context.Context, p storage.ListParams) ([]storage.AnalysisSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.AnalysisSummary
	for _, id := range m.order {
		res := m.analyses[id]
		if p.Fleet != "" && res.Header.Fleet != p.Fleet {
			continue
		}
		out = append(out, storage.Summarise(res))
	}
	return out, nil
}

func (m *mockStore) Close() error { return nil }

type mockShares struct{}

func (mockShares) EDWShareByFleet(context.Context, string) ([]storage.FleetShare, error) {
	return []storage.FleetShare{{Fleet: "757", Base: "ONT", DutyDays: 7, EDWDays: 3, EDWShare: 3.0 / 7}}, nil
}

type capturePublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (c *capturePublisher) Publish(subject string, _ []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subjects = append(c.subjects, subject)
	return nil
}

func newTestServer(cfg Config) (*Server, *mockStore) {
	store := newMockStore()
	return NewServer(&storage.Recorder{Store: store}, pipeline.DefaultOptions(), cfg, nil), store
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createAnalysis(t *testing.T, h http.Handler) AnalysisResponse {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/analyses?source=ont.txt", doc)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d: %s", rec.Code, rec.Body.String())
	}
	var resp AnalysisResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(Config{Port: 8081, AuthEnabled: true})
	rec := do(t, server.Router(), http.MethodGet, "/health", "")

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status 'ok', got %q", resp["status"])
	}
}

func TestCreateAnalysis(t *testing.T) {
	server, store := newTestServer(Config{})
	resp := createAnalysis(t, server.Router())

	if resp.Source != "ont.txt" || resp.Fleet != "757" || resp.Pairings != 2 {
		t.Errorf("summary = %+v", resp.AnalysisSummary)
	}
	if resp.Metrics.TotalTrips != 5 || resp.Metrics.EDWTrips != 3 {
		t.Errorf("trips total=%d edw=%d", resp.Metrics.TotalTrips, resp.Metrics.EDWTrips)
	}
	if resp.ProgressSubject != "" {
		t.Errorf("progress subject %q without a reporter", resp.ProgressSubject)
	}
	if _, ok := store.analyses[resp.ID]; !ok {
		t.Error("analysis not stored")
	}
}

func TestCreateAnalysisErrors(t *testing.T) {
	server, _ := newTestServer(Config{MaxUploadBytes: 64})
	router := server.Router()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"empty", "  \n", http.StatusBadRequest},
		{"malformed header", "TRIP 1 FREQ 1\n", http.StatusUnprocessableEntity},
		{"too large", strings.Repeat("X", 100), http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/analyses", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestCreateAnalysisPublishesProgress(t *testing.T) {
	server, _ := newTestServer(Config{})
	pub := &capturePublisher{}
	server.WithProgress(progress.NewNATSReporter(pub, "test.progress"))

	resp := createAnalysis(t, server.Router())

	want := "test.progress." + resp.ID
	if resp.ProgressSubject != want {
		t.Errorf("ProgressSubject = %q, want %q", resp.ProgressSubject, want)
	}
	if len(pub.subjects) == 0 {
		t.Fatal("no progress published")
	}
	for _, s := range pub.subjects {
		if s != want {
			t.Errorf("published to %q, want %q", s, want)
		}
	}
}

func TestGetAnalysis(t *testing.T) {
	server, _ := newTestServer(Config{})
	router := server.Router()
	created := createAnalysis(t, router)

	rec := do(t, router, http.MethodGet, "/analyses/"+created.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var res pipeline.Result
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(res.Pairings) != 2 || res.Pairings[0].ID != "O8001" {
		t.Errorf("pairings = %+v", res.Pairings)
	}

	if rec := do(t, router, http.MethodGet, "/analyses/unknown", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: expected status 404, got %d", rec.Code)
	}
}

func TestListAnalyses(t *testing.T) {
	server, _ := newTestServer(Config{})
	router := server.Router()
	createAnalysis(t, router)
	createAnalysis(t, router)

	tests := []struct {
		target     string
		wantStatus int
		wantRows   int
	}{
		{"/analyses", http.StatusOK, 2},
		{"/analyses?fleet=757", http.StatusOK, 2},
		{"/analyses?fleet=320", http.StatusOK, 0},
		{"/analyses?limit=abc", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, tt.target, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var rows []storage.AnalysisSummary
			if err := json.NewDecoder(rec.Body).Decode(&rows); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if len(rows) != tt.wantRows {
				t.Errorf("got %d rows, want %d", len(rows), tt.wantRows)
			}
		})
	}
}

func TestGetPairingsFiltered(t *testing.T) {
	server, _ := newTestServer(Config{})
	router := server.Router()
	id := createAnalysis(t, router).ID

	tests := []struct {
		query       string
		wantStatus  int
		wantMatched int
		wantTrips   int
	}{
		{"", http.StatusOK, 2, 5},
		{"edw=only", http.StatusOK, 1, 3},
		{"edw=exclude", http.StatusOK, 1, 2},
		{"min_legs=2", http.StatusOK, 1, 3},
		{"mode=all&min_hours=1.5", http.StatusOK, 1, 3},
		{"edw=sometimes", http.StatusBadRequest, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, "/analyses/"+id+"/pairings?"+tt.query, "")
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp struct {
				Total   int `json:"total"`
				Matched int `json:"matched"`
				Trips   int `json:"trips"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Total != 2 || resp.Matched != tt.wantMatched || resp.Trips != tt.wantTrips {
				t.Errorf("got %+v, want matched=%d trips=%d", resp, tt.wantMatched, tt.wantTrips)
			}
		})
	}
}

func TestGetDistribution(t *testing.T) {
	server, _ := newTestServer(Config{})
	router := server.Router()
	id := createAnalysis(t, router).ID

	rec := do(t, router, http.MethodGet, "/analyses/"+id+"/distribution?width=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var buckets []BucketResponse
	if err := json.NewDecoder(rec.Body).Decode(&buckets); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	total := 0
	for _, b := range buckets {
		total += b.Count
		if b.Label == "" {
			t.Error("bucket without label")
		}
	}
	// O8001 has one 5h duty day flown 3 times, O8002 two 1h days flown twice.
	if total != 7 {
		t.Errorf("bucket counts sum to %d, want 7", total)
	}

	if rec := do(t, router, http.MethodGet, "/analyses/"+id+"/distribution?width=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("negative width: expected status 400, got %d", rec.Code)
	}
}

func TestEDWShare(t *testing.T) {
	server, _ := newTestServer(Config{})
	if rec := do(t, server.Router(), http.MethodGet, "/analytics/edw-share", ""); rec.Code != http.StatusNotImplemented {
		t.Errorf("without source: expected status 501, got %d", rec.Code)
	}

	server.WithShares(mockShares{})
	rec := do(t, server.Router(), http.MethodGet, "/analytics/edw-share?bid_period=2601", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var shares []storage.FleetShare
	if err := json.NewDecoder(rec.Body).Decode(&shares); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(shares) != 1 || shares[0].EDWDays != 3 {
		t.Errorf("shares = %+v", shares)
	}
}

func TestAuthMiddleware(t *testing.T) {
	server, _ := newTestServer(Config{
		Port:        8081,
		AuthEnabled: true,
		APIKeys:     []string{"test-key-123", "another-key"},
	})
	router := server.Router()

	tests := []struct {
		name       string
		apiKey     string
		keyHeader  string
		wantStatus int
	}{
		{
			name:       "no key",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid key",
			apiKey:     "wrong-key",
			keyHeader:  "X-API-Key",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "valid key X-API-Key",
			apiKey:     "test-key-123",
			keyHeader:  "X-API-Key",
			wantStatus: http.StatusOK,
		},
		{
			name:       "valid key Bearer",
			apiKey:     "another-key",
			keyHeader:  "Authorization",
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/analyses", nil)
			if tt.apiKey != "" {
				if tt.keyHeader == "Authorization" {
					req.Header.Set("Authorization", "Bearer "+tt.apiKey)
				} else {
					req.Header.Set(tt.keyHeader, tt.apiKey)
				}
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}

	if rec := do(t, router, http.MethodGet, "/analyses?api_key=test-key-123", ""); rec.Code != http.StatusOK {
		t.Errorf("query param key: expected status 200, got %d", rec.Code)
	}
}

func TestCORSHeaders(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"any origin", nil, "http://example.com", "*"},
		{"allowed origin", []string{"http://crew.example"}, "http://crew.example", "http://crew.example"},
		{"other origin", []string{"http://crew.example"}, "http://evil.example", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, _ := newTestServer(Config{AllowedOrigins: tt.allowed})
			req := httptest.NewRequest(http.MethodOptions, "/analyses", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			server.Router().ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("expected status 200, got %d", rec.Code)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}
