package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/shopspring/decimal"

	"stadiumtix/internal/config"
	"stadiumtix/internal/models"
)

const defaultPageSize = 20

// TicketDocument - тип билета в поисковом индексе
type TicketDocument struct {
	ID           int64           `json:"id"`
	StadiumID    int64           `json:"stadium_id"`
	Kind         string          `json:"kind"`
	Name         string          `json:"name"`
	BasePrice    decimal.Decimal `json:"base_price"`
	BaseQuantity int             `json:"base_quantity"`
	DisplayOrder int             `json:"display_order"`
	Weekdays     []int64         `json:"weekdays,omitempty"`
	Date         string          `json:"date,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewTicketDocument converts a catalog response into an index document
func NewTicketDocument(t *models.TicketResponse) *TicketDocument {
	return &TicketDocument{
		ID:           t.ID,
		StadiumID:    t.StadiumID,
		Kind:         string(t.Kind),
		Name:         t.Name,
		BasePrice:    t.BasePrice,
		BaseQuantity: t.BaseQuantity,
		DisplayOrder: t.DisplayOrder,
		Weekdays:     t.Weekdays,
		Date:         t.Date,
	}
}

// SearchParams фильтры поиска по каталогу
type SearchParams struct {
	Query     string
	StadiumID int64
	Kind      string
	Date      string
	Page      int
	PageSize  int
}

// SearchResult страница найденных билетов
type SearchResult struct {
	Total   int64            `json:"total"`
	Tickets []TicketDocument `json:"tickets"`
}

// ElasticsearchClient представляет клиент для работы с Elasticsearch
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewElasticsearchClient создает новый клиент Elasticsearch
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

// ensureIndex создает индекс если он не существует
func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	mappingJSON, err := json.Marshal(indexMapping())
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(mappingJSON),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

func indexMapping() map[string]interface{} {
	return map[string]interface{}{
		"settings": map[string]interface{}{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":         map[string]interface{}{"type": "long"},
				"stadium_id": map[string]interface{}{"type": "long"},
				"kind":       map[string]interface{}{"type": "keyword"},
				"name": map[string]interface{}{
					"type": "text",
					"fields": map[string]interface{}{
						"keyword": map[string]interface{}{
							"type":         "keyword",
							"ignore_above": 256,
						},
					},
				},
				"base_price":    map[string]interface{}{"type": "scaled_float", "scaling_factor": 100},
				"base_quantity": map[string]interface{}{"type": "integer"},
				"display_order": map[string]interface{}{"type": "integer"},
				"weekdays":      map[string]interface{}{"type": "byte"},
				"date":          map[string]interface{}{"type": "date", "format": "yyyy-MM-dd"},
				"updated_at":    map[string]interface{}{"type": "date"},
			},
		},
	}
}

// Search выполняет поиск по каталогу билетов
func (c *ElasticsearchClient) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	from := 0
	if params.Page > 1 {
		from = (params.Page - 1) * pageSize
	}

	searchRequest := map[string]interface{}{
		"query":            buildSearchQuery(params),
		"sort":             buildSortQuery(params.Query),
		"from":             from,
		"size":             pageSize,
		"track_total_hits": true,
	}

	searchJSON, err := json.Marshal(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(searchJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source TicketDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	result := &SearchResult{
		Total:   response.Hits.Total.Value,
		Tickets: make([]TicketDocument, len(response.Hits.Hits)),
	}
	for i, hit := range response.Hits.Hits {
		result.Tickets[i] = hit.Source
	}
	return result, nil
}

// buildSearchQuery строит поисковый запрос: текст по имени, остальное фильтрами
func buildSearchQuery(params SearchParams) map[string]interface{} {
	var must []map[string]interface{}
	var filter []map[string]interface{}

	if params.Query != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{
				"name": map[string]interface{}{
					"query":     params.Query,
					"fuzziness": "AUTO",
				},
			},
		})
	}
	if params.StadiumID > 0 {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"stadium_id": params.StadiumID},
		})
	}
	if params.Kind != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"kind": params.Kind},
		})
	}
	if params.Date != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"date": params.Date},
		})
	}

	if len(must) == 0 && len(filter) == 0 {
		return map[string]interface{}{
			"match_all": map[string]interface{}{},
		}
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]interface{}{"bool": boolQuery}
}

// buildSortQuery строит сортировку
func buildSortQuery(query string) []map[string]interface{} {
	if query != "" {
		return []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"id": map[string]interface{}{"order": "asc"}},
		}
	}
	return []map[string]interface{}{
		{"display_order": map[string]interface{}{"order": "asc"}},
		{"id": map[string]interface{}{"order": "asc"}},
	}
}

// IndexTicket индексирует тип билета
func (c *ElasticsearchClient) IndexTicket(ctx context.Context, doc *TicketDocument) error {
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}

	docJSON, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(doc.ID, 10),
		Body:       bytes.NewReader(docJSON),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index ticket: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}
	return nil
}

// DeleteTicket удаляет тип билета; отсутствие документа не ошибка
func (c *ElasticsearchClient) DeleteTicket(ctx context.Context, id int64) error {
	req := esapi.DeleteRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(id, 10),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete ticket: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}
	return nil
}

// HealthCheck проверяет состояние Elasticsearch
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}
	return nil
}
