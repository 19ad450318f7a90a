package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	httpadapter "github.com/aretw0/tripwise/pkg/adapters/http"
	"github.com/aretw0/tripwise/pkg/domain"
	"github.com/aretw0/tripwise/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSessions keeps artifacts in memory and fails runs on demand.
type fakeSessions struct {
	mu     sync.Mutex
	arts   map[string][]domain.Artifact
	runErr error
}

func (f *fakeSessions) Run(_ context.Context, sid, query string) (domain.Artifact, error) {
	if f.runErr != nil {
		return domain.Artifact{}, f.runErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.arts == nil {
		f.arts = map[string][]domain.Artifact{}
	}
	a := domain.Artifact{Index: len(f.arts[sid]), RunID: fmt.Sprintf("run-%d", len(f.arts[sid])), Query: query, Document: "<html>" + query + "</html>"}
	f.arts[sid] = append(f.arts[sid], a)
	return a, nil
}

func (f *fakeSessions) History(_ context.Context, sid string) ([]domain.Artifact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list, ok := f.arts[sid]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return list, nil
}

func (f *fakeSessions) Artifact(ctx context.Context, sid string, index int) (domain.Artifact, error) {
	list, err := f.History(ctx, sid)
	if err != nil {
		return domain.Artifact{}, err
	}
	if index >= len(list) {
		return domain.Artifact{}, domain.ErrArtifactNotFound
	}
	return list[index], nil
}

func (f *fakeSessions) Sessions(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.arts))
	for id := range f.arts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestPlans_CreateListGet(t *testing.T) {
	h := httpadapter.NewHandler(&fakeSessions{})

	w := do(t, h, http.MethodPost, "/sessions/s1/plans", `{"query":"Rome"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created httpadapter.PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, httpadapter.PlanResponse{RunID: "run-0", Index: 0, Document: "<html>Rome</html>"}, created)

	do(t, h, http.MethodPost, "/sessions/s1/plans", `{"query":"Oslo"}`)

	w = do(t, h, http.MethodGet, "/sessions/s1/plans", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []httpadapter.PlanResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Oslo", list[1].Query)
	assert.Empty(t, list[1].Document)

	w = do(t, h, http.MethodGet, "/sessions/s1/plans/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "<html>Oslo</html>", w.Body.String())
}

func TestSessions_List(t *testing.T) {
	h := httpadapter.NewHandler(&fakeSessions{})

	w := do(t, h, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sessions":[]}`, w.Body.String())

	do(t, h, http.MethodPost, "/sessions/oslo/plans", `{"query":"Oslo"}`)
	do(t, h, http.MethodPost, "/sessions/lisbon/plans", `{"query":"Lisbon"}`)

	w = do(t, h, http.MethodGet, "/sessions", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"sessions":["lisbon","oslo"]}`, w.Body.String())
}

func TestPlans_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid query", fmt.Errorf("%w: query is empty", domain.ErrInvalidQuery), http.StatusBadRequest},
		{"in flight", domain.ErrRunInFlight, http.StatusConflict},
		{"stage fault", &domain.StageError{Stage: "flights", Err: errors.New("model down")}, http.StatusBadGateway},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := httpadapter.NewHandler(&fakeSessions{runErr: tt.err})
			w := do(t, h, http.MethodPost, "/sessions/s1/plans", `{"query":"Rome"}`)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}

	h := httpadapter.NewHandler(&fakeSessions{})
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/sessions/s1/plans", `{`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/sessions/none/plans", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/sessions/s1/plans/x", "").Code)

	do(t, h, http.MethodPost, "/sessions/s1/plans", `{"query":"Rome"}`)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/sessions/s1/plans/5", "").Code)
}

func TestHealthInfoGraphMetrics(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("tripwise_runs_total 1")) })
	h := httpadapter.NewHandler(&fakeSessions{},
		httpadapter.WithMetricsHandler(metrics),
		httpadapter.WithGraph(workflow.Description{Kind: workflow.KindPipeline, Name: "itinerary"}),
	)

	w := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/info", "")
	assert.Contains(t, w.Body.String(), "tripwise-http")

	w = do(t, h, http.MethodGet, "/graph", "")
	assert.Contains(t, w.Body.String(), `"itinerary"`)

	w = do(t, h, http.MethodGet, "/metrics", "")
	assert.Contains(t, w.Body.String(), "tripwise_runs_total")

	w = do(t, h, http.MethodOptions, "/sessions/s1/plans", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSubscribeEvents_Session(t *testing.T) {
	streams := httpadapter.NewStreamManager()
	srv := httptest.NewServer(httpadapter.NewHandler(&fakeSessions{}, httpadapter.WithStreams(streams)))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/s1/events?types=stage_end", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	next := func() string {
		select {
		case l := <-lines:
			return l
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for SSE line")
			return ""
		}
	}
	assert.Equal(t, "event: ping", next())
	assert.Equal(t, "data: connected", next())
	assert.Equal(t, "", next())
	require.Eventually(t, func() bool { return streams.Subscribers("s1") == 1 }, time.Second, 10*time.Millisecond)

	hooks := streams.Hooks()
	runCtx := domain.WithSessionID(context.Background(), "s1")
	hooks.OnStageStart(runCtx, &domain.StageEvent{EventBase: domain.EventBase{Type: domain.EventStageStart}, Stage: "flights"})
	hooks.OnStageEnd(domain.WithSessionID(context.Background(), "other"), &domain.StageEvent{EventBase: domain.EventBase{Type: domain.EventStageEnd}, Stage: "ignored"})
	hooks.OnStageEnd(runCtx, &domain.StageEvent{EventBase: domain.EventBase{Type: domain.EventStageEnd}, Stage: "flights", Err: errors.New("model down")})

	assert.Equal(t, "event: stage_end", next())
	data := next()
	assert.True(t, strings.HasPrefix(data, "data: "))
	assert.Contains(t, data, `"stage":"flights"`)
	assert.Contains(t, data, `"error":"model down"`)

	cancel()
	assert.Eventually(t, func() bool { return streams.Subscribers("s1") == 0 }, time.Second, 10*time.Millisecond)
}
