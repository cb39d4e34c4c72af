package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cardbridge/cardbridge/internal/adapters/reporting"
	"github.com/cardbridge/cardbridge/internal/core/domain"
	"github.com/cardbridge/cardbridge/internal/core/services/auth"
	"github.com/cardbridge/cardbridge/internal/core/services/events"
)

const testPasscode = "secret123"

type fixture struct {
	ts       *httptest.Server
	monitor  *MockCardMonitor
	passcode *MockPasscodeService
	audit    *MockAuditService
}

func newFixture(t *testing.T) *fixture {
	monitor := new(MockCardMonitor)
	passcode := new(MockPasscodeService)
	auditSvc := new(MockAuditService)

	srv := NewServer("127.0.0.1:0", "2.3.0", monitor, passcode, auditSvc, events.NewBus(), reporting.NewPDFExporter())
	ts := httptest.NewServer(SetupRoutes(srv))
	t.Cleanup(ts.Close)

	passcode.On("Verify", mock.Anything, testPasscode).Return(true).Maybe()
	passcode.On("Verify", mock.Anything, mock.AnythingOfType("string")).Return(false).Maybe()

	return &fixture{ts: ts, monitor: monitor, passcode: passcode, audit: auditSvc}
}

func (f *fixture) request(t *testing.T, method, path string, body io.Reader, authenticated bool) (*http.Response, map[string]interface{}) {
	req, err := http.NewRequest(method, f.ts.URL+path, body)
	require.NoError(t, err)
	if authenticated {
		req.Header.Set("X-Passcode", testPasscode)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]interface{}
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func TestHealthIsPublic(t *testing.T) {
	f := newFixture(t)

	resp, body := f.request(t, http.MethodGet, "/api/health", nil, false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
}

func TestProtectedEndpointsRequirePasscode(t *testing.T) {
	f := newFixture(t)

	paths := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/status"},
		{http.MethodGet, "/api/readers"},
		{http.MethodGet, "/api/card/current"},
		{http.MethodPost, "/api/card/read"},
		{http.MethodPost, "/api/card/cache/clear"},
		{http.MethodGet, "/api/card/export"},
		{http.MethodGet, "/api/audit-logs"},
		{http.MethodGet, "/metrics"},
	}
	for _, p := range paths {
		resp, body := f.request(t, p.method, p.path, nil, false)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "%s %s", p.method, p.path)
		if body != nil {
			assert.Equal(t, "Invalid or missing passcode", body["error"])
		}
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)

	f.monitor.On("ListReaders", mock.Anything).Return([]domain.ReaderDescriptor{{Index: 0, Name: "ACS ACR39U"}}, nil)
	f.monitor.On("Status").Return(domain.MonitorStatus{
		Monitoring:  true,
		State:       domain.StateCardPresentCached,
		ReaderName:  "ACS ACR39U",
		CardPresent: true,
		CacheValid:  true,
	})

	resp, body := f.request(t, http.MethodGet, "/api/status", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "running", body["status"])
	assert.Equal(t, "2.3.0", body["version"])
	assert.Equal(t, float64(1), body["readers_available"])
	assert.Equal(t, true, body["card_detected"])
	assert.Equal(t, "ACS ACR39U", body["reader_name"])
	assert.Equal(t, true, body["monitoring"])
	assert.Equal(t, true, body["cache_valid"])
}

func TestBearerAndQueryAuthForms(t *testing.T) {
	f := newFixture(t)
	f.monitor.On("ListReaders", mock.Anything).Return([]domain.ReaderDescriptor{}, nil)

	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/api/readers", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testPasscode)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.ts.URL + "/api/readers?passcode=" + testPasscode)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestReadWithoutCard(t *testing.T) {
	f := newFixture(t)
	f.monitor.On("Status").Return(domain.MonitorStatus{CardPresent: false})

	resp, body := f.request(t, http.MethodPost, "/api/card/read", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No card detected in reader", body["error"])
	f.monitor.AssertNotCalled(t, "RequestRead", mock.Anything, mock.Anything)
}

func TestReadSuccessStripsPhoto(t *testing.T) {
	f := newFixture(t)

	record := &domain.CardRecord{
		CID:   "1234567890123",
		Photo: []byte{0xFF, 0xD8},
	}
	f.monitor.On("Status").Return(domain.MonitorStatus{CardPresent: true, State: domain.StateCardPresent})
	f.monitor.On("RequestRead", mock.Anything, true).Return(domain.ReadResult{
		Record: record,
		Cached: false,
		ReadAt: time.Now(),
	}, nil)
	f.audit.On("Record", mock.Anything, domain.ActionCardRead, "card", mock.Anything).Return(nil)

	resp, body := f.request(t, http.MethodPost, "/api/card/read", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "1234567890123", data["cid"])

	// Photo never leaves over REST, in any shape.
	raw, _ := json.Marshal(body)
	assert.NotContains(t, string(raw), "photo")

	f.audit.AssertExpectations(t)
}

func TestReadIncludePhotoParam(t *testing.T) {
	f := newFixture(t)

	f.monitor.On("Status").Return(domain.MonitorStatus{CardPresent: true})
	f.monitor.On("RequestRead", mock.Anything, false).Return(domain.ReadResult{
		Record: &domain.CardRecord{CID: "1234567890123"},
	}, nil)
	f.audit.On("Record", mock.Anything, domain.ActionCardRead, "card", "include_photo=false").Return(nil)

	resp, _ := f.request(t, http.MethodPost, "/api/card/read?include_photo=false", nil, true)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	f.monitor.AssertExpectations(t)

	resp, _ = f.request(t, http.MethodPost, "/api/card/read?include_photo=banana", nil, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClearCache(t *testing.T) {
	f := newFixture(t)

	f.monitor.On("ClearCache").Return(true).Once()
	f.monitor.On("ClearCache").Return(false).Once()
	f.audit.On("Record", mock.Anything, domain.ActionCacheClear, "card", mock.Anything).Return(nil)

	resp, body := f.request(t, http.MethodPost, "/api/card/cache/clear", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["cleared"])
	assert.Equal(t, "Cache cleared successfully", body["message"])

	_, body = f.request(t, http.MethodPost, "/api/card/cache/clear", nil, true)
	assert.Equal(t, false, body["cleared"])
	assert.Equal(t, "No cache to clear", body["message"])
}

func TestCurrentCardWithoutData(t *testing.T) {
	f := newFixture(t)
	f.monitor.On("Status").Return(domain.MonitorStatus{})

	resp, body := f.request(t, http.MethodGet, "/api/card/current", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No card data available", body["error"])
}

func TestCurrentCardAfterRemovalStaysVisible(t *testing.T) {
	f := newFixture(t)

	f.monitor.On("Status").Return(domain.MonitorStatus{
		CardPresent: false,
		CacheValid:  false,
		LastRead:    &domain.CardRecord{CID: "1234567890123"},
		LastReadAt:  time.Now(),
	})

	resp, body := f.request(t, http.MethodGet, "/api/card/current", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "1234567890123", data["cid"])
}

func TestExport(t *testing.T) {
	f := newFixture(t)

	f.monitor.On("Status").Return(domain.MonitorStatus{}).Once()
	resp, _ := f.request(t, http.MethodGet, "/api/card/export", nil, true)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.monitor.On("Status").Return(domain.MonitorStatus{
		LastRead:   &domain.CardRecord{CID: "1234567890123", EnglishName: "Somchai Jaidee"},
		LastReadAt: time.Now(),
	})
	req, err := http.NewRequest(http.MethodGet, f.ts.URL+"/api/card/export", nil)
	require.NoError(t, err)
	req.Header.Set("X-Passcode", testPasscode)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()

	require.Equal(t, http.StatusOK, raw.StatusCode)
	assert.Equal(t, "application/pdf", raw.Header.Get("Content-Type"))
	assert.Contains(t, raw.Header.Get("Content-Disposition"), "card-summary.pdf")

	pdf, err := io.ReadAll(raw.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdf[:4]))
}

func TestPasscodeGenerate(t *testing.T) {
	f := newFixture(t)

	created := time.Now().UTC()
	f.passcode.On("Generate", mock.Anything, 0).Return("Abcdef1234", created, nil)
	f.audit.On("Record", mock.Anything, domain.ActionPasscodeGenerate, "passcode", mock.Anything).Return(nil)

	resp, body := f.request(t, http.MethodPost, "/api/passcode/generate", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Abcdef1234", body["passcode"])
}

func TestPasscodeGenerateInvalidLength(t *testing.T) {
	f := newFixture(t)
	f.passcode.On("Generate", mock.Anything, 7).Return("", time.Time{}, auth.ErrInvalidLength)

	resp, body := f.request(t, http.MethodPost, "/api/passcode/generate?length=7", nil, false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "between 8 and 16")
}

func TestPasscodeVerifyEndpoint(t *testing.T) {
	f := newFixture(t)
	f.audit.On("Record", mock.Anything, domain.ActionPasscodeVerify, "passcode", mock.Anything).Return(nil)

	resp, body := f.request(t, http.MethodPost, "/api/passcode/verify",
		strings.NewReader(`{"passcode":"secret123"}`), false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["valid"])

	resp, body = f.request(t, http.MethodPost, "/api/passcode/verify",
		strings.NewReader(`{"passcode":"wrong"}`), false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["valid"])

	resp, _ = f.request(t, http.MethodPost, "/api/passcode/verify",
		strings.NewReader(`{}`), false)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPasscodeInfoAndDelete(t *testing.T) {
	f := newFixture(t)

	f.passcode.On("Info", mock.Anything).Return(false, time.Time{}).Once()
	resp, body := f.request(t, http.MethodGet, "/api/passcode/current", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["configured"])

	f.passcode.On("Delete", mock.Anything).Return(true, nil)
	f.audit.On("Record", mock.Anything, domain.ActionPasscodeDelete, "passcode", mock.Anything).Return(nil)
	resp, body = f.request(t, http.MethodDelete, "/api/passcode", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
}

func TestAuditLogsEndpoint(t *testing.T) {
	f := newFixture(t)

	entries := []domain.AuditEntry{
		{ID: 2, Action: domain.ActionCardRead, Timestamp: time.Now()},
		{ID: 1, Action: domain.ActionCacheClear, Timestamp: time.Now().Add(-time.Minute)},
	}
	f.audit.On("Recent", mock.Anything, 50).Return(entries, nil)

	resp, body := f.request(t, http.MethodGet, "/api/audit-logs", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["count"])

	resp, _ = f.request(t, http.MethodGet, "/api/audit-logs?limit=0", nil, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPasscodeEndpointsAreRateLimited(t *testing.T) {
	f := newFixture(t)
	f.passcode.On("Info", mock.Anything).Return(false, time.Time{})

	limited := false
	for i := 0; i < 11; i++ {
		resp, _ := f.request(t, http.MethodGet, "/api/passcode/current", nil, false)
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	assert.True(t, limited, "11th request within the window must be rejected")
}
