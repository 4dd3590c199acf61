package vectorindex

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appErr "github.com/xxxsen/recall/internal/pkg/errors"
)

type qdrantIndex struct {
	location   string
	apiKey     string
	collection string
	vectorSize int
	client     *http.Client
}

type qdrantStatus struct {
	State string
	Error string
}

func (s *qdrantStatus) UnmarshalJSON(data []byte) error {
	var plain string
	if err := json.Unmarshal(data, &plain); err == nil {
		s.State = plain
		return nil
	}
	var obj struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	s.Error = obj.Error
	return nil
}

type qdrantEnvelope[T any] struct {
	Status qdrantStatus `json:"status"`
	Result T            `json:"result"`
}

type qdrantPoint struct {
	ID      string                 `json:"id"`
	Vector  []float32              `json:"vector,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

type qdrantScoredPoint struct {
	ID      string                 `json:"id"`
	Score   float32                `json:"score"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// NewQdrantIndex builds a REST client against a qdrant deployment and makes
// sure the collection exists (cosine distance).
func NewQdrantIndex(cfg Config) (Index, error) {
	if cfg.Location == "" || cfg.Collection == "" || cfg.VectorSize == 0 {
		return nil, fmt.Errorf("qdrant index needs location, collection and vector_size")
	}
	idx := &qdrantIndex{
		location:   strings.TrimRight(cfg.Location, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		vectorSize: cfg.VectorSize,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
	if err := idx.ensureCollection(); err != nil {
		return nil, err
	}
	return idx, nil
}

func (q *qdrantIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	points := make([]qdrantPoint, 0, len(entries))
	for _, entry := range entries {
		points = append(points, qdrantPoint{
			ID:     pointID(entry.ID),
			Vector: entry.Vector,
			Payload: map[string]interface{}{
				"record_id": entry.ID,
				"owner_id":  entry.Metadata.OwnerID,
				"table":     entry.Metadata.Table,
				"type":      entry.Metadata.Type,
			},
		})
	}
	req := map[string]interface{}{"points": points}
	var rsp qdrantEnvelope[json.RawMessage]
	path := fmt.Sprintf("/collections/%s/points?wait=true", url.PathEscape(q.collection))
	if err := q.do(ctx, http.MethodPut, path, req, &rsp); err != nil {
		return err
	}
	if !strings.EqualFold(rsp.Status.State, "ok") && rsp.Status.Error != "" {
		return errors.New(rsp.Status.Error)
	}
	return nil
}

func (q *qdrantIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	points := make([]string, 0, len(ids))
	for _, id := range ids {
		points = append(points, pointID(id))
	}
	req := map[string]interface{}{"points": points}
	var rsp qdrantEnvelope[json.RawMessage]
	path := fmt.Sprintf("/collections/%s/points/delete?wait=true", url.PathEscape(q.collection))
	if err := q.do(ctx, http.MethodPost, path, req, &rsp); err != nil {
		return err
	}
	if !strings.EqualFold(rsp.Status.State, "ok") && rsp.Status.Error != "" {
		return errors.New(rsp.Status.Error)
	}
	return nil
}

func (q *qdrantIndex) Query(ctx context.Context, vector []float32, topK int, withMetadata bool) ([]Match, error) {
	if topK < 1 {
		return nil, nil
	}
	// The payload is always requested: it carries the record id that joins
	// a hit back to the relational row.
	req := map[string]interface{}{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var rsp qdrantEnvelope[[]qdrantScoredPoint]
	path := fmt.Sprintf("/collections/%s/points/search", url.PathEscape(q.collection))
	if err := q.do(ctx, http.MethodPost, path, req, &rsp); err != nil {
		return nil, err
	}
	matches := make([]Match, 0, len(rsp.Result))
	for _, point := range rsp.Result {
		id := payloadString(point.Payload, "record_id")
		if id == "" {
			id = point.ID
		}
		matches = append(matches, Match{
			ID:    id,
			Score: point.Score,
			Metadata: Metadata{
				OwnerID: payloadString(point.Payload, "owner_id"),
				Table:   payloadString(point.Payload, "table"),
				Type:    payloadString(point.Payload, "type"),
			},
		})
	}
	return matches, nil
}

func (q *qdrantIndex) do(ctx context.Context, method string, path string, req interface{}, rsp interface{}) error {
	var buf io.Reader
	if req != nil {
		data, err := json.Marshal(req)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(data)
	}
	request, err := http.NewRequestWithContext(ctx, method, q.location+path, buf)
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		request.Header.Set("api-key", q.apiKey)
	}
	response, err := q.client.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", appErr.ErrIndexUnavailable, err)
	}
	defer response.Body.Close()
	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("qdrant http %d: %s", response.StatusCode, string(payload))
	}
	if rsp != nil && len(payload) > 0 {
		if err := json.Unmarshal(payload, rsp); err != nil {
			return err
		}
	}
	return nil
}

func (q *qdrantIndex) ensureCollection() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	path := fmt.Sprintf("/collections/%s", url.PathEscape(q.collection))
	var rsp qdrantEnvelope[json.RawMessage]
	err := q.do(ctx, http.MethodGet, path, nil, &rsp)
	if err == nil && strings.EqualFold(rsp.Status.State, "ok") {
		return nil
	}
	if err != nil && !strings.Contains(err.Error(), "404") {
		return err
	}
	req := map[string]interface{}{
		"vectors": map[string]interface{}{
			"size":     q.vectorSize,
			"distance": "Cosine",
		},
	}
	if err := q.do(ctx, http.MethodPut, path, req, &rsp); err != nil {
		return err
	}
	if !strings.EqualFold(rsp.Status.State, "ok") && rsp.Status.Error != "" {
		return errors.New(rsp.Status.Error)
	}
	return nil
}

// pointID maps a record id onto a deterministic UUID; qdrant only accepts
// UUID or integer point ids. The original record id travels in the payload.
func pointID(recordID string) string {
	sum := sha256.Sum256([]byte(recordID))
	hexed := fmt.Sprintf("%x", sum[:16])
	return fmt.Sprintf("%s-%s-%s-%s-%s", hexed[0:8], hexed[8:12], hexed[12:16], hexed[16:20], hexed[20:32])
}

func payloadString(payload map[string]interface{}, key string) string {
	if payload == nil {
		return ""
	}
	value, _ := payload[key].(string)
	return value
}
