package airtable

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/birchwood-sourdough/orders/recordstore"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKey: "key", BaseID: "appBakery", BaseURL: srv.URL})
	require.NoError(t, err)
	return c
}

func TestNewClientValidatesConfig(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid config", Config{APIKey: "k", BaseID: "b"}, false},
		{"missing api key", Config{BaseID: "b"}, true},
		{"missing base id", Config{APIKey: "k"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestQueryFollowsPaginationAndSendsFormula(t *testing.T) {
	var formulas []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/appBakery/Orders", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		formulas = append(formulas, r.URL.Query().Get("filterByFormula"))

		if r.URL.Query().Get("offset") == "" {
			_, _ = w.Write([]byte(`{"records":[{"id":"rec1","createdTime":"2025-08-10T09:30:00.000Z","fields":{"Number of Loaves":3}}],"offset":"page2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"records":[{"id":"rec2","createdTime":"2025-08-10T10:30:00.000Z","fields":{"Number of Loaves":1}}]}`))
	})

	records, err := c.Query(context.Background(), "Orders", recordstore.Eq("Pickup Day", "2025-08-12"))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "rec1", records[0].ID)
	assert.Equal(t, 3, records[0].Fields.Int("Number of Loaves"))
	assert.Equal(t, 10, records[1].CreatedTime.Hour())
	assert.Equal(t, []string{"{Pickup Day} = '2025-08-12'", "{Pickup Day} = '2025-08-12'"}, formulas)
}

func TestQueryWithoutFilterOmitsFormula(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, present := r.URL.Query()["filterByFormula"]
		assert.False(t, present)
		_, _ = w.Write([]byte(`{"records":[]}`))
	})

	records, err := c.Query(context.Background(), "Orders", nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCreateSendsFieldsWithTypecast(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, true, body["typecast"])
		fields := body["fields"].(map[string]any)
		assert.Equal(t, "Jane", fields["Customer Name"])

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"recNew","createdTime":"2025-08-10T09:30:00.000Z","fields":{"Customer Name":"Jane"}}`))
	})

	r, err := c.Create(context.Background(), "Orders", recordstore.Fields{"Customer Name": "Jane"})
	require.NoError(t, err)
	assert.Equal(t, "recNew", r.ID)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		check  func(t *testing.T, err error)
	}{
		{"not found", http.StatusNotFound, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, recordstore.ErrNotFound)
		}},
		{"unauthorized", http.StatusUnauthorized, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, recordstore.ErrUnavailable)
		}},
		{"server error", http.StatusBadGateway, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, recordstore.ErrUnavailable)
		}},
		{"bad formula", http.StatusUnprocessableEntity, func(t *testing.T, err error) {
			assert.NotErrorIs(t, err, recordstore.ErrUnavailable)
			assert.Contains(t, err.Error(), "INVALID_FILTER_BY_FORMULA")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"type":"INVALID_FILTER_BY_FORMULA","message":"bad"}}`))
			})
			_, err := c.Find(context.Background(), "Orders", "rec1")
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestUnreachableServerIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c, err := NewClient(Config{APIKey: "k", BaseID: "b", BaseURL: srv.URL})
	require.NoError(t, err)

	err = c.Delete(context.Background(), "Orders", "rec1")
	assert.ErrorIs(t, err, recordstore.ErrUnavailable)
}
