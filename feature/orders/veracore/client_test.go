package veracore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"label-matcher/feature/labels/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeVeraCore serves the subset of the public API the client uses.
type fakeVeraCore struct {
	mu          sync.Mutex
	logins      int
	tokens      []string
	statuses    []string
	statusCodes []int
	rows        []map[string]any
	rejectToken string
	authHeaders []string
}

func (f *fakeVeraCore) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /Login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		defer f.mu.Unlock()
		if body["userName"] != "svc" || body["password"] != "secret" || body["systemId"] != "42" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token := "t1"
		if f.logins < len(f.tokens) {
			token = f.tokens[f.logins]
		}
		f.logins++
		_ = json.NewEncoder(w).Encode(map[string]string{"Token": token})
	})

	authed := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			f.mu.Lock()
			f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
			reject := f.rejectToken != "" && r.Header.Get("Authorization") == "bearer "+f.rejectToken
			f.mu.Unlock()
			if reject {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next(w, r)
		}
	}

	mux.HandleFunc("POST /reports", authed(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Open Orders", body["reportName"])
		_ = json.NewEncoder(w).Encode(map[string]string{"TaskId": "task-1"})
	}))

	mux.HandleFunc("GET /reports/task-1/status", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if len(f.statusCodes) > 0 {
			code := f.statusCodes[0]
			f.statusCodes = f.statusCodes[1:]
			if code != http.StatusOK {
				w.WriteHeader(code)
				return
			}
		}
		status := "Done"
		if len(f.statuses) > 0 {
			status = f.statuses[0]
			f.statuses = f.statuses[1:]
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"Status": status})
	}))

	mux.HandleFunc("GET /reports/task-1", authed(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"Data": f.rows})
	}))

	return mux
}

func newClient(t *testing.T, f *fakeVeraCore) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)

	return NewClient(Config{
		BaseURL:      srv.URL + "/",
		Username:     "svc",
		Password:     "secret",
		SystemID:     "42",
		ReportName:   "Open Orders",
		OrderColumn:  "OrderID",
		PollInterval: time.Millisecond,
		PollAttempts: 5,
		Timeout:      time.Second,
		FetchTimeout: time.Second,
		Retries:      2,
	}, zap.NewNop())
}

func TestFetchOpenOrders(t *testing.T) {
	f := &fakeVeraCore{
		statuses: []string{"Processing", "Processing", "Done"},
		rows: []map[string]any{
			{"OrderID": " A-1001 "},
			{"OrderID": "A-1001"},
			{"OrderID": 1234567890},
			{"OrderID": ""},
			{"Other": "x"},
			{"OrderID": "A-1002"},
		},
	}
	c := newClient(t, f)

	ids, err := c.FetchOpenOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A-1001", "1234567890", "A-1002"}, ids)
	assert.Equal(t, 1, f.logins)
	for _, h := range f.authHeaders {
		assert.Equal(t, "bearer t1", h)
	}

	// The token is reused.
	_, err = c.FetchOpenOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.logins)
}

func TestFetchOpenOrders_ReportTooLarge(t *testing.T) {
	f := &fakeVeraCore{statuses: []string{"Request too Large"}}
	_, err := newClient(t, f).FetchOpenOrders(context.Background())
	assert.ErrorIs(t, err, models.ErrPermanentData)
	assert.Contains(t, err.Error(), "too large")
}

func TestFetchOpenOrders_PollExhausted(t *testing.T) {
	f := &fakeVeraCore{statuses: []string{"Processing", "Processing", "Processing", "Processing", "Processing", "Processing"}}
	_, err := newClient(t, f).FetchOpenOrders(context.Background())
	assert.ErrorIs(t, err, models.ErrTransientIO)
}

func TestFetchOpenOrders_RetriesServerErrors(t *testing.T) {
	f := &fakeVeraCore{statusCodes: []int{http.StatusBadGateway, http.StatusServiceUnavailable}}
	ids, err := newClient(t, f).FetchOpenOrders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFetchOpenOrders_GivesUpAfterRetries(t *testing.T) {
	f := &fakeVeraCore{statusCodes: []int{500, 500, 500, 500}}
	_, err := newClient(t, f).FetchOpenOrders(context.Background())
	assert.ErrorIs(t, err, models.ErrTransientIO)
}

func TestFetchOpenOrders_ClientErrorIsPermanent(t *testing.T) {
	f := &fakeVeraCore{statusCodes: []int{http.StatusBadRequest, http.StatusOK}}
	_, err := newClient(t, f).FetchOpenOrders(context.Background())
	assert.ErrorIs(t, err, models.ErrPermanentData)
}

func TestFetchOpenOrders_ReloginOnExpiredToken(t *testing.T) {
	f := &fakeVeraCore{tokens: []string{"old", "new"}, rejectToken: "old"}
	c := newClient(t, f)

	_, err := c.FetchOpenOrders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, f.logins)
	assert.Equal(t, "bearer new", f.authHeaders[len(f.authHeaders)-1])
}

func TestFetchOpenOrders_LoginRejected(t *testing.T) {
	f := &fakeVeraCore{}
	c := newClient(t, f)
	c.cfg.Password = "wrong"

	_, err := c.FetchOpenOrders(context.Background())
	assert.ErrorIs(t, err, models.ErrPermanentData)
	assert.Contains(t, err.Error(), "login rejected")
}

func TestFetchOpenOrders_Cancelled(t *testing.T) {
	f := &fakeVeraCore{statuses: []string{"Processing", "Processing", "Processing"}}
	c := newClient(t, f)
	c.cfg.PollInterval = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.FetchOpenOrders(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
