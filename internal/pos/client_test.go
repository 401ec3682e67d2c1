package pos

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

func newTestClient(t *testing.T, h http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewHTTPClient(Options{BaseURL: srv.URL + "/", Token: "secret", Timeout: time.Second, Doer: srv.Client()})
}

func TestCreateInventory(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/inventory/", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body InventoryRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, 3, body.TicketCount)
		assert.Equal(t, int64(1500), body.UnitCostCents)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"inv-1","broadcast":false,"ticket_ids":["t1","t2","t3"]}`))
	})

	inv, err := c.CreateInventory(context.Background(), InventoryRequest{ExternalRef: "pk", Seats: []string{"1", "2", "3"}, UnitCostCents: 1500, TicketCount: 3})
	require.NoError(t, err)
	assert.Equal(t, "inv-1", inv.ID)
	assert.False(t, inv.Broadcast)
	assert.Len(t, inv.TicketIDs, 3)
}

func TestSplitSendsRetainedTickets(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inventory/inv-1/split", r.URL.Path)
		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"t1", "t2"}, body["retain_ticket_ids"])
		_, _ = w.Write([]byte(`{"new_inventory_ids":["inv-2"]}`))
	})

	out, err := c.Split(context.Background(), "inv-1", []string{"t1", "t2"})
	require.NoError(t, err)
	id, ok := out.Retained()
	assert.True(t, ok)
	assert.Equal(t, "inv-2", id)
}

func TestDeleteTreatsNotFoundAsSuccess(t *testing.T) {
	for _, code := range []int{http.StatusNoContent, http.StatusNotFound} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodDelete, r.Method)
			w.WriteHeader(code)
		})
		assert.NoError(t, c.Delete(context.Background(), "inv-1"), "status %d", code)
	}
}

func TestOtherStatusesFailWithBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(" listing locked \n"))
	})

	err := c.Delete(context.Background(), "inv-1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "delete", apiErr.Op)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, "listing locked", apiErr.Body)
	assert.False(t, errors.Is(err, ErrNotFound))

	// Delete answers 204, never 200.
	c = newTestClient(t, func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	assert.Error(t, c.Delete(context.Background(), "inv-1"))
}

func TestTimeoutIsAFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewHTTPClient(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond, Doer: srv.Client()})
	err := c.Delete(context.Background(), "inv-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCreateWithoutIDFails(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"broadcast":true}`))
	})
	_, err := c.CreateInventory(context.Background(), InventoryRequest{})
	assert.Error(t, err)
}
