package rates

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBCBClient(baseURL string) *BCBClient {
	return NewBCBClient(BCBConfig{
		BaseURL:           baseURL,
		RequestsPerSecond: 1000,
		Burst:             10,
		Retry: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2,
		},
	})
}

func TestBCBClient_FetchMonthlyRates(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/bcdata.sgs.4390/dados", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("formato"))
		assert.Equal(t, "01/01/2023", r.URL.Query().Get("dataInicial"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"data":"01/01/2023","valor":"1.12"},{"data":"01/02/2023","valor":"0.92"}]`))
	}))
	defer server.Close()

	client := testBCBClient(server.URL)
	start := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 2, 28, 0, 0, 0, 0, time.UTC)

	got, err := client.FetchMonthlyRates(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, time.February, got[1].Month.Month())
	assert.Equal(t, "0.92", got[1].RatePercent.StringFixed(2))
	assert.Equal(t, bcbSource, got[0].Source)

	_, err = client.FetchMonthlyRates(context.Background(), start, end)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "second fetch should be served from cache")
}

func TestBCBClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[{"data":"01/03/2023","valor":"1.17"}]`))
	}))
	defer server.Close()

	got, err := testBCBClient(server.URL).FetchMonthlyRates(context.Background(),
		time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBCBClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad range", http.StatusBadRequest)
	}))
	defer server.Close()

	_, err := testBCBClient(server.URL).FetchMonthlyRates(context.Background(),
		time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 3, 31, 0, 0, 0, 0, time.UTC))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestBCBClient_RejectsReversedRange(t *testing.T) {
	_, err := testBCBClient("http://unused").FetchMonthlyRates(context.Background(),
		time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, common.ErrInvalidDateRange)
}
