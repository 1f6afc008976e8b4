package processor_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/profast/parcel-payments-service/internal/logger"
	"github.com/profast/parcel-payments-service/internal/processor"
)

func TestMain(m *testing.M) {
	logger.Init()
	os.Exit(m.Run())
}

type intentBody struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

func TestCreateIntent(t *testing.T) {
	t.Run("sends minor units and auth header", func(t *testing.T) {
		var got intentBody
		var gotAuth string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/v1/payment_intents", r.URL.Path)
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

			json.NewEncoder(w).Encode(map[string]string{"client_secret": "pi_123_secret"})
		}))
		defer srv.Close()

		c := processor.NewClient(srv.URL, "sk_test_abc", "usd")

		token, err := c.CreateIntent(t.Context(), decimal.RequireFromString("25.00"))
		require.NoError(t, err)

		assert.Equal(t, "pi_123_secret", token)
		assert.Equal(t, int64(2500), got.Amount)
		assert.Equal(t, "usd", got.Currency)
		assert.Equal(t, "Bearer sk_test_abc", gotAuth)
	})

	t.Run("retries on 5xx then succeeds", func(t *testing.T) {
		var calls int

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"client_secret": "pi_retry_secret"})
		}))
		defer srv.Close()

		c := processor.NewClient(srv.URL, "", "usd")

		token, err := c.CreateIntent(t.Context(), decimal.RequireFromString("10"))
		require.NoError(t, err)

		assert.Equal(t, "pi_retry_secret", token)
		assert.Equal(t, 2, calls)
	})

	t.Run("processor rejection fails immediately", func(t *testing.T) {
		var calls int

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer srv.Close()

		c := processor.NewClient(srv.URL, "", "usd")

		_, err := c.CreateIntent(t.Context(), decimal.RequireFromString("10"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 400")
		assert.Equal(t, 1, calls)
	})

	t.Run("empty client secret is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{})
		}))
		defer srv.Close()

		c := processor.NewClient(srv.URL, "", "usd")

		_, err := c.CreateIntent(t.Context(), decimal.RequireFromString("10"))
		require.Error(t, err)
	})
}
