package server

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/ncfrec/core"
	"github.com/rushteam/ncfrec/metrics"
	"github.com/rushteam/ncfrec/recommend"
)

type fakeEngine struct {
	lastReq  recommend.Request
	lastUser string
	lastTopN int
	err      error
	delay    time.Duration
}

func (f *fakeEngine) Recommend(ctx context.Context, req recommend.Request) (*recommend.Response, error) {
	f.lastReq = req
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &recommend.Response{
		Items:     []core.Recommendation{{ItemID: "7", PredictedRating: 4.5, Name: "Lamp", Category: "Home", Price: 25}},
		RequestID: req.RequestID,
		Scored:    1,
	}, nil
}

func (f *fakeEngine) RecommendForUser(ctx context.Context, userID string, topN int) (*recommend.Response, error) {
	f.lastUser, f.lastTopN = userID, topN
	return f.Recommend(ctx, recommend.Request{UserID: userID, TopN: topN})
}

func (f *fakeEngine) PredictRating(userID, itemID string) (float64, bool) {
	if userID == "1" && itemID == "7" {
		return 4.5, true
	}
	return 0, false
}

func (f *fakeEngine) Info() recommend.Info {
	return recommend.Info{Model: "ncf", Users: 3, Items: 9, Pipeline: "ncf"}
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

func TestRecommendEndpoint(t *testing.T) {
	eng := &fakeEngine{}
	h := New(eng, Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/recommendations",
		`{"user_id":"1","top_n":3,"exclude":["2"],"candidates":[{"item_id":"7","name":"Lamp"}],"filter":"item.price < 50.0"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp recommend.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 1)
	assert.Equal(t, "7", resp.Items[0].ItemID)

	assert.Equal(t, "1", eng.lastReq.UserID)
	assert.Equal(t, 3, eng.lastReq.TopN)
	assert.Equal(t, []string{"2"}, eng.lastReq.Exclude)
	assert.Equal(t, "item.price < 50.0", eng.lastReq.Filter)
	assert.NotEmpty(t, eng.lastReq.RequestID)
	assert.Equal(t, eng.lastReq.RequestID, resp.RequestID)
}

func TestRecommendEndpoint_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		body   string
		status int
		code   string
	}{
		{"bad json", nil, `{`, http.StatusBadRequest, core.ErrorCodeInvalidInput},
		{"invalid input", core.NewDomainError(core.ModuleRank, core.ErrorCodeInvalidInput, "top_n"), `{}`, http.StatusBadRequest, core.ErrorCodeInvalidInput},
		{"data integrity", core.ErrDataIntegrity, `{}`, http.StatusInternalServerError, core.ErrorCodeDataIntegrity},
		{"unavailable", core.NewDomainError(core.ModuleCatalog, core.ErrorCodeUnavailable, "feast"), `{}`, http.StatusServiceUnavailable, core.ErrorCodeUnavailable},
		{"other", assert.AnError, `{}`, http.StatusInternalServerError, core.ErrorCodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(&fakeEngine{err: tt.err}, Options{}).Handler()
			rec := do(t, h, http.MethodPost, "/v1/recommendations", tt.body)
			assert.Equal(t, tt.status, rec.Code)

			var body errorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.code, body.Code)
			assert.NotEmpty(t, body.RequestID)
		})
	}
}

func TestRecommendForUserEndpoint(t *testing.T) {
	eng := &fakeEngine{}
	h := New(eng, Options{DefaultTopN: 4}).Handler()

	rec := do(t, h, http.MethodGet, "/v1/users/42/recommendations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", eng.lastUser)
	assert.Equal(t, 4, eng.lastTopN)

	rec = do(t, h, http.MethodGet, "/v1/users/42/recommendations?top_n=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, eng.lastTopN)

	rec = do(t, h, http.MethodGet, "/v1/users/42/recommendations?top_n=x", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictEndpoint(t *testing.T) {
	h := New(&fakeEngine{}, Options{}).Handler()

	rec := do(t, h, http.MethodGet, "/v1/predict?user_id=1&item_id=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got predictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.True(t, got.Known)
	assert.Equal(t, 4.5, got.Rating)

	rec = do(t, h, http.MethodGet, "/v1/predict?user_id=9&item_id=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Known)

	rec = do(t, h, http.MethodGet, "/v1/predict?user_id=1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestTimeout(t *testing.T) {
	h := New(&fakeEngine{delay: time.Second}, Options{RequestTimeout: 20 * time.Millisecond}).Handler()

	rec := do(t, h, http.MethodPost, "/v1/recommendations", `{"user_id":"1","top_n":1}`)
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewRecorder(reg).ObserveRequest(metrics.OutcomeOK, time.Millisecond)
	h := New(&fakeEngine{}, Options{Gatherer: reg}).Handler()

	rec := do(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Contains(t, rec.Body.String(), `"items":9`)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte("ncfrec_recommend_requests_total")))
}
