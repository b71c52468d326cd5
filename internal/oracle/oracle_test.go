package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
)

func TestParseAnalysis(t *testing.T) {
	a, err := ParseAnalysis([]byte(`{"authenticity":0.95,"anomalies":[],"model":"doc-v2"}`))
	require.NoError(t, err)
	require.InDelta(t, 0.95, a.Authenticity, 1e-9)
	require.Empty(t, a.Anomalies)
	require.NotNil(t, a.Anomalies)
	require.JSONEq(t, `{"authenticity":0.95,"anomalies":[],"model":"doc-v2"}`, string(a.Raw))

	a, err = ParseAnalysis([]byte(`{"authenticity":0.5,"anomalies":["blurred image"]}`))
	require.NoError(t, err)
	require.Equal(t, []string{"blurred image"}, a.Anomalies)
}

func TestParseAnalysisRejectsMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"missing score":     `{"anomalies":[]}`,
		"score above one":   `{"authenticity":1.2,"anomalies":[]}`,
		"negative score":    `{"authenticity":-0.1,"anomalies":[]}`,
		"anomalies not str": `{"authenticity":0.9,"anomalies":[1]}`,
		"not json":          `authentic`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseAnalysis([]byte(body))
			require.Error(t, err)
		})
	}
}

func TestEvidenceFrom(t *testing.T) {
	vendor := "v1"
	exp := &entity.Expenditure{
		ID:       uuid.New(),
		VendorID: &vendor,
		Amount:   decimal.RequireFromString("25000"),
		Category: "Construction",
		VendorProof: &entity.VendorProof{
			Images:   []string{"a.jpg"},
			Location: entity.Location{Latitude: 1, Longitude: 2},
		},
	}
	ev := EvidenceFrom(exp)
	require.Equal(t, "25000.00", ev.Amount)
	require.Equal(t, "v1", ev.VendorID)
	require.Equal(t, []string{"a.jpg"}, ev.Images)
}

func TestClientAnalyze(t *testing.T) {
	var got Evidence
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"authenticity":0.91,"anomalies":[]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL, APIKey: "secret", Timeout: time.Second}, nil)
	id := uuid.New()
	a, err := c.Analyze(context.Background(), Evidence{ExpenditureID: id, Images: []string{"x.jpg"}})
	require.NoError(t, err)
	require.InDelta(t, 0.91, a.Authenticity, 1e-9)
	require.Equal(t, id, got.ExpenditureID)
}

func TestClientAnalyzeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL}, nil)
	_, err := c.Analyze(context.Background(), Evidence{ExpenditureID: uuid.New()})
	require.Error(t, err)
	var se *common.HTTPStatusError
	require.ErrorAs(t, err, &se)
	require.True(t, se.Temporary())
}

func TestClientAnalyzeInvalidPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"score":0.9}`))
	}))
	defer srv.Close()

	c := NewClient(Config{URL: srv.URL}, nil)
	_, err := c.Analyze(context.Background(), Evidence{ExpenditureID: uuid.New()})
	require.ErrorContains(t, err, "oracle response")
}
