package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stadiumtix/internal/config"
	"stadiumtix/internal/models"
)

func TestBuildSearchQuery(t *testing.T) {
	q := buildSearchQuery(SearchParams{})
	assert.Contains(t, q, "match_all")

	q = buildSearchQuery(SearchParams{Query: "vip", StadiumID: 3, Kind: "special", Date: "2026-10-23"})
	boolQuery := q["bool"].(map[string]interface{})
	must := boolQuery["must"].([]map[string]interface{})
	filter := boolQuery["filter"].([]map[string]interface{})
	assert.Len(t, must, 1)
	assert.Len(t, filter, 3)
	assert.Equal(t, map[string]interface{}{"stadium_id": int64(3)}, filter[0]["term"])

	q = buildSearchQuery(SearchParams{StadiumID: 3})
	boolQuery = q["bool"].(map[string]interface{})
	assert.NotContains(t, boolQuery, "must")
}

func TestBuildSortQuery(t *testing.T) {
	assert.Contains(t, buildSortQuery("vip")[0], "_score")
	assert.Contains(t, buildSortQuery("")[0], "display_order")
}

func TestNewTicketDocument(t *testing.T) {
	doc := NewTicketDocument(&models.TicketResponse{
		ID: 5, StadiumID: 1, Kind: models.KindSpecial, Name: "Derby Box",
		BasePrice: decimal.NewFromInt(30000), BaseQuantity: 4, Date: "2026-10-23",
	})
	assert.Equal(t, "special", doc.Kind)
	assert.Equal(t, "2026-10-23", doc.Date)
}

// fakeES answers like an Elasticsearch node and records request paths
type fakeES struct {
	mu       sync.Mutex
	requests []string
	bodies   []string
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, string(body))
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodHead:
		w.WriteHeader(http.StatusOK)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"hits": map[string]interface{}{
				"total": map[string]interface{}{"value": 1},
				"hits": []map[string]interface{}{
					{"_source": map[string]interface{}{"id": 7, "stadium_id": 1, "kind": "regular", "name": "Fan Zone", "base_price": "4500"}},
				},
			},
		})
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"result":"not_found"}`))
	default:
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}
}

func newTestClient(t *testing.T) (*ElasticsearchClient, *fakeES) {
	t.Helper()
	fake := &fakeES{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewElasticsearchClient(config.ElasticsearchConfig{URL: srv.URL, Index: "tickets", MaxRetries: 1})
	require.NoError(t, err)
	return client, fake
}

func TestClient_IndexSearchDelete(t *testing.T) {
	client, fake := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.IndexTicket(ctx, &TicketDocument{ID: 7, StadiumID: 1, Kind: "regular", Name: "Fan Zone"}))

	result, err := client.Search(ctx, SearchParams{Query: "fan", StadiumID: 1, Page: 2, PageSize: 5})
	require.NoError(t, err)
	assert.EqualValues(t, 1, result.Total)
	require.Len(t, result.Tickets, 1)
	assert.Equal(t, "Fan Zone", result.Tickets[0].Name)
	assert.True(t, result.Tickets[0].BasePrice.Equal(decimal.NewFromInt(4500)))

	// удаление отсутствующего документа не ошибка
	require.NoError(t, client.DeleteTicket(ctx, 7))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Contains(t, fake.requests, "PUT /tickets/_doc/7")
	assert.Contains(t, fake.requests, "DELETE /tickets/_doc/7")

	var searchBody map[string]interface{}
	for i, r := range fake.requests {
		if strings.HasSuffix(r, "/_search") {
			require.NoError(t, json.Unmarshal([]byte(fake.bodies[i]), &searchBody))
		}
	}
	assert.EqualValues(t, 5, searchBody["from"])
	assert.EqualValues(t, 5, searchBody["size"])
}
