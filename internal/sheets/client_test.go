package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendRow(t *testing.T) {
	ctx := context.Background()

	t.Run("appends one raw row", func(t *testing.T) {
		var gotPath, gotQuery, gotAuth string
		var gotBody appendRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotQuery = r.URL.RawQuery
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.Write([]byte(`{}`))
		}))
		defer srv.Close()

		c := NewClient("sheets-token", time.Second)
		c.BaseURL = srv.URL

		err := c.AppendRow(ctx, "sheet-99", "Orders", []string{"ord_1", "Ana", "149.90"})
		require.NoError(t, err)
		assert.Equal(t, "/spreadsheets/sheet-99/values/Orders:append", gotPath)
		assert.Equal(t, "valueInputOption=RAW", gotQuery)
		assert.Equal(t, "Bearer sheets-token", gotAuth)
		require.Len(t, gotBody.Values, 1)
		assert.Equal(t, []string{"ord_1", "Ana", "149.90"}, gotBody.Values[0])
	})

	t.Run("quota error is temporary", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		c := NewClient("sheets-token", time.Second)
		c.BaseURL = srv.URL

		err := c.AppendRow(ctx, "sheet-99", "Orders", []string{"x"})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.True(t, apiErr.Temporary())
	})

	t.Run("permission error is permanent", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "forbidden", http.StatusForbidden)
		}))
		defer srv.Close()

		c := NewClient("sheets-token", time.Second)
		c.BaseURL = srv.URL

		err := c.AppendRow(ctx, "sheet-99", "Orders", []string{"x"})
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.False(t, apiErr.Temporary())
	})
}
