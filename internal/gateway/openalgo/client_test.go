package openalgo

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"legtracker/internal/live"
	"legtracker/internal/risk"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Config{APIURL: srv.URL, APIKey: "secret"})
	require.NoError(t, err)
	return client
}

func TestGetStrategyStates(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/strategy/states", r.URL.Path)
		raw := gjson.ParseBytes(readBody(t, r))
		assert.Equal(t, "secret", raw.Get("apikey").String())
		w.Write([]byte(`{
			"status": "success",
			"data": [{
				"instance_id": "ins-1",
				"strategy_name": "Condor",
				"status": "RUNNING",
				"legs": {
					"main": {"leg_key": "main", "symbol": "NIFTY25SEP24000CE", "exchange": "NFO",
						"side": "SELL", "status": "IN_POSITION", "entry_price": 100, "quantity": 50}
				}
			}]
		}`))
	})

	instances, err := client.GetStrategyStates(context.Background())
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "ins-1", instances[0].ID)
	leg := instances[0].Leg("main")
	require.NotNil(t, leg)
	require.NotNil(t, leg.EntryPrice)
	assert.Equal(t, 100.0, *leg.EntryPrice)
}

func TestFetchQuotes(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/quotes", r.URL.Path)
		w.Write([]byte(`{
			"status": "success",
			"data": [
				{"symbol": "RELIANCE", "exchange": "NSE", "ltp": 2801.5},
				{"symbol": "INFY", "exchange": "NSE", "ltp": 1502.2}
			]
		}`))
	})

	keys := []live.Key{live.KeyOf("RELIANCE", "NSE"), live.KeyOf("INFY", "NSE")}
	quotes, err := client.FetchQuotes(context.Background(), keys)
	require.NoError(t, err)
	assert.Equal(t, 2801.5, quotes[live.KeyOf("RELIANCE", "NSE")])
	assert.Equal(t, 1502.2, quotes[live.KeyOf("INFY", "NSE")])

	t.Run("empty set short-circuits", func(t *testing.T) {
		quotes, err := client.FetchQuotes(context.Background(), nil)
		require.NoError(t, err)
		assert.Nil(t, quotes)
	})
}

func TestSubmitOverridePayload(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw := gjson.ParseBytes(readBody(t, r))
		assert.Equal(t, "/api/v1/strategy/override", r.URL.Path)
		assert.Equal(t, "ins-1", raw.Get("instance_id").String())
		assert.Equal(t, "main", raw.Get("leg_key").String())
		assert.Equal(t, "sl_price", raw.Get("override_type").String())
		assert.Equal(t, 110.0, raw.Get("value").Float())
		assert.Equal(t, "secret", raw.Get("apikey").String())
		w.Write([]byte(`{"status": "success"}`))
	})

	err := client.SubmitOverride(context.Background(), "ins-1", "main", risk.OverrideStopLoss, 110)
	assert.NoError(t, err)
}

func TestErrorClassification(t *testing.T) {
	t.Run("5xx is transient", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "engine down", http.StatusBadGateway)
		})
		err := client.DeleteInstance(context.Background(), "ins-1")
		var te *TransientError
		require.ErrorAs(t, err, &te)
		assert.Contains(t, te.Error(), "engine down")
	})
	t.Run("4xx is a rejection", func(t *testing.T) {
		client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unknown instance", http.StatusNotFound)
		})
		err := client.DeleteInstance(context.Background(), "ins-1")
		assert.ErrorIs(t, err, ErrRejected)
	})
	t.Run("unreachable host is transient", func(t *testing.T) {
		client, err := NewClient(Config{APIURL: "http://127.0.0.1:1"})
		require.NoError(t, err)
		var te *TransientError
		assert.ErrorAs(t, client.DeleteInstance(context.Background(), "ins-1"), &te)
	})
}

func readBody(t *testing.T, r *http.Request) []byte {
	t.Helper()
	raw, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	return raw
}
