// Package elasticsearch keeps generated records as documents, one index per
// entity table, over the plain REST API.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/template"
)

const (
	scrollKeepAlive = "1m"
	scrollPageSize  = 1000
)

type Store struct {
	baseURL string
	client  *http.Client
}

func NewStore(dsn string) *Store {
	return &Store{baseURL: normalizeURL(dsn)}
}

// Connect pings the cluster root.
func (s *Store) Connect() error {
	s.client = &http.Client{Timeout: 30 * time.Second}
	_, err := s.ServerVersion(context.Background())
	return err
}

func (s *Store) Close() error { return nil }

func (s *Store) ServerVersion(ctx context.Context) (string, error) {
	var root struct {
		Version struct {
			Number string `json:"number"`
		} `json:"version"`
	}
	status, body, err := s.do(ctx, http.MethodGet, "/", "", nil)
	if err != nil {
		return "", err
	}
	if !ok(status) {
		return "", fmt.Errorf("elasticsearch ping failed: status=%d body=%s", status, body)
	}
	if err := json.Unmarshal(body, &root); err != nil {
		return "", err
	}
	return root.Version.Number, nil
}

// Ensure creates the index with one mapped property per typed field. An
// existing index is left alone.
func (s *Store) Ensure(ctx context.Context, tmpl *template.Template) error {
	props := make(map[string]any)
	for _, f := range tmpl.Fields() {
		if typ := mapColumnType(tmpl.FieldType(f)); typ != "" {
			props[f] = map[string]string{"type": typ}
		}
	}
	payload, err := json.Marshal(map[string]any{"mappings": map[string]any{"properties": props}})
	if err != nil {
		return err
	}

	status, body, err := s.do(ctx, http.MethodPut, "/"+indexName(tmpl.Table()), "application/json", payload)
	if err != nil {
		return err
	}
	if ok(status) {
		return nil
	}
	if status == http.StatusBadRequest && bytes.Contains(body, []byte("resource_already_exists_exception")) {
		return nil
	}
	return fmt.Errorf("elasticsearch create index failed: status=%d body=%s", status, body)
}

func mapColumnType(colType domain.ColumnType) string {
	switch colType {
	case domain.ColumnTypeInt, domain.ColumnTypeBigInt:
		return "long"
	case domain.ColumnTypeFloat:
		return "double"
	case domain.ColumnTypeString, domain.ColumnTypeUUID:
		return "keyword"
	case domain.ColumnTypeText:
		return "text"
	case domain.ColumnTypeBool:
		return "boolean"
	case domain.ColumnTypeTimestamp:
		return "date"
	default:
		return ""
	}
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Status int    `json:"status"`
		Result string `json:"result"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// Create bulk-indexes the batch and waits for it to become searchable. The
// returned ids are the cluster-assigned document ids in input order. Bulk
// requests are not atomic: documents indexed before a failing item stay.
func (s *Store) Create(ctx context.Context, table string, records []domain.Record) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}
	index := indexName(table)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, rec := range records {
		if err := enc.Encode(map[string]any{"index": map[string]string{"_index": index}}); err != nil {
			return nil, err
		}
		doc := make(map[string]any, len(rec))
		for k, v := range rec {
			if k != domain.IDField {
				doc[k] = toDocValue(v)
			}
		}
		if err := enc.Encode(doc); err != nil {
			return nil, err
		}
	}

	resp, err := s.bulk(ctx, buf.Bytes())
	if err != nil {
		return nil, err
	}
	if len(resp.Items) != len(records) {
		return nil, fmt.Errorf("elasticsearch bulk insert returned %d items for %d records", len(resp.Items), len(records))
	}
	ids := make([]string, len(records))
	for i, item := range resp.Items {
		res := item["index"]
		if res.Error != nil {
			return nil, fmt.Errorf("elasticsearch bulk insert failed: %s: %s", res.Error.Type, res.Error.Reason)
		}
		ids[i] = res.ID
	}
	return ids, nil
}

// Delete removes documents by id and reports how many existed.
func (s *Store) Delete(ctx context.Context, table string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	index := indexName(table)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, id := range ids {
		if err := enc.Encode(map[string]any{"delete": map[string]string{"_index": index, "_id": id}}); err != nil {
			return 0, err
		}
	}

	resp, err := s.bulk(ctx, buf.Bytes())
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, item := range resp.Items {
		res := item["delete"]
		switch {
		case res.Result == "deleted":
			removed++
		case res.Status == http.StatusNotFound:
		case res.Error != nil:
			return removed, fmt.Errorf("elasticsearch bulk delete failed: %s: %s", res.Error.Type, res.Error.Reason)
		}
	}
	return removed, nil
}

func (s *Store) bulk(ctx context.Context, payload []byte) (*bulkResponse, error) {
	status, body, err := s.do(ctx, http.MethodPost, "/_bulk?refresh=wait_for", "application/x-ndjson", payload)
	if err != nil {
		return nil, err
	}
	if !ok(status) {
		return nil, fmt.Errorf("elasticsearch bulk request failed: status=%d body=%s", status, body)
	}
	var resp bulkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode bulk response: %w", err)
	}
	return &resp, nil
}

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []struct {
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Project scrolls through the index returning only the requested fields. A
// missing index projects to nothing.
func (s *Store) Project(ctx context.Context, table string, fields []string) ([]domain.Record, error) {
	query, err := json.Marshal(map[string]any{
		"size":    scrollPageSize,
		"_source": fields,
		"sort":    []string{"_doc"},
	})
	if err != nil {
		return nil, err
	}
	path := "/" + indexName(table) + "/_search?scroll=" + scrollKeepAlive
	status, body, err := s.do(ctx, http.MethodPost, path, "application/json", query)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}

	var out []domain.Record
	var scrollID string
	defer func() {
		if scrollID != "" {
			s.clearScroll(scrollID)
		}
	}()
	for {
		if !ok(status) {
			return nil, fmt.Errorf("elasticsearch search failed: status=%d body=%s", status, body)
		}
		page, err := decodeSearch(body)
		if err != nil {
			return nil, err
		}
		scrollID = page.ScrollID
		if len(page.Hits.Hits) == 0 {
			return out, nil
		}
		for _, hit := range page.Hits.Hits {
			rec := make(domain.Record, len(fields))
			for _, f := range fields {
				rec[f] = fromDocValue(hit.Source[f])
			}
			out = append(out, rec)
		}
		if len(page.Hits.Hits) < scrollPageSize || scrollID == "" {
			return out, nil
		}

		next, err := json.Marshal(map[string]string{"scroll": scrollKeepAlive, "scroll_id": scrollID})
		if err != nil {
			return nil, err
		}
		status, body, err = s.do(ctx, http.MethodPost, "/_search/scroll", "application/json", next)
		if err != nil {
			return nil, err
		}
	}
}

func decodeSearch(body []byte) (*searchResponse, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var page searchResponse
	if err := dec.Decode(&page); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &page, nil
}

func (s *Store) clearScroll(id string) {
	payload, _ := json.Marshal(map[string]string{"scroll_id": id})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, _ = s.do(ctx, http.MethodDelete, "/_search/scroll", "application/json", payload)
}

func (s *Store) do(ctx context.Context, method, path, contentType string, payload []byte) (int, []byte, error) {
	if s.client == nil {
		return 0, nil, errors.New("elasticsearch store is not connected")
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, bytes.TrimSpace(data), nil
}

func ok(status int) bool { return status >= 200 && status <= 299 }

func toDocValue(v any) any {
	if t, isTime := v.(time.Time); isTime {
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

// fromDocValue turns decoded JSON numbers back into int64 where they fit.
func fromDocValue(v any) any {
	n, isNum := v.(json.Number)
	if !isNum {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	f, _ := n.Float64()
	return f
}

func normalizeURL(dsn string) string {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "http://localhost:9200"
	}
	if strings.HasPrefix(dsn, "http://") || strings.HasPrefix(dsn, "https://") {
		return strings.TrimRight(dsn, "/")
	}
	return "http://" + strings.TrimRight(dsn, "/")
}

// indexName lowercases the table name, as index names must be.
func indexName(table string) string {
	return url.PathEscape(strings.ToLower(strings.TrimSpace(table)))
}
