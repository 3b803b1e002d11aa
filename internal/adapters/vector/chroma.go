package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyinfo/phishgate/internal/config"
	"github.com/hyinfo/phishgate/internal/core"
	"github.com/hyinfo/phishgate/internal/utils"
)

const contentExcerptRunes = 500
const maxDocumentURLs = 5

// ChromaIndex stores analyzed emails in a Chroma collection and retrieves
// the most similar prior emails for a new one. The collection is created
// lazily on first use.
type ChromaIndex struct {
	baseURL    string
	collection string
	httpClient *http.Client
	embedder   Embedder
	textProc   *utils.TextProcessor
	logger     *zap.Logger

	mu           sync.Mutex
	collectionID string
}

// NewChromaIndex creates a new Chroma-backed similarity index
func NewChromaIndex(cfg config.VectorConfig, embedder Embedder, textProc *utils.TextProcessor, logger *zap.Logger) *ChromaIndex {
	return &ChromaIndex{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		collection: cfg.Collection,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		embedder:   embedder,
		textProc:   textProc,
		logger:     logger,
	}
}

// documentText renders the searchable representation of a record
func (c *ChromaIndex) documentText(rec *core.DeliveryRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Subject: %s\n", rec.Subject)
	fmt.Fprintf(&b, "From: %s\n", rec.Sender)
	fmt.Fprintf(&b, "Domain: %s\n", rec.FromDomain)
	fmt.Fprintf(&b, "Content: %s\n", c.textProc.TruncateRunes(rec.ContentText, contentExcerptRunes))

	urls := rec.URLs
	if len(urls) > maxDocumentURLs {
		urls = urls[:maxDocumentURLs]
	}
	if len(urls) > 0 {
		fmt.Fprintf(&b, "URLs: %s\n", strings.Join(urls, ", "))
	}
	return b.String()
}

// Upsert stores a record and its final label in the collection
func (c *ChromaIndex) Upsert(ctx context.Context, rec *core.DeliveryRecord) error {
	collID, err := c.ensureCollection(ctx)
	if err != nil {
		return err
	}

	doc := c.documentText(rec)
	embedding, err := c.embedder.Embed(ctx, doc)
	if err != nil {
		return err
	}

	payload := map[string]interface{}{
		"ids":        []string{rec.ID},
		"embeddings": [][]float32{embedding},
		"documents":  []string{doc},
		"metadatas": []map[string]interface{}{{
			"subject": rec.Subject,
			"sender":  rec.Sender,
			"label":   rec.FinalDecision.String(),
		}},
	}

	var out json.RawMessage
	if err := c.post(ctx, "/api/v1/collections/"+collID+"/add", payload, &out); err != nil {
		return fmt.Errorf("failed to add document to collection: %w", err)
	}
	return nil
}

type chromaQueryResponse struct {
	IDs       [][]string                 `json:"ids"`
	Distances [][]float64                `json:"distances"`
	Documents [][]string                 `json:"documents"`
	Metadatas [][]map[string]interface{} `json:"metadatas"`
}

// Query returns up to k previously analyzed emails closest to the record
func (c *ChromaIndex) Query(ctx context.Context, rec *core.DeliveryRecord, k int) ([]core.SimilarRecord, error) {
	collID, err := c.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	embedding, err := c.embedder.Embed(ctx, c.documentText(rec))
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"query_embeddings": [][]float32{embedding},
		"n_results":        k,
		"include":          []string{"documents", "distances", "metadatas"},
	}

	var decoded chromaQueryResponse
	if err := c.post(ctx, "/api/v1/collections/"+collID+"/query", payload, &decoded); err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	if len(decoded.IDs) == 0 {
		return nil, nil
	}

	results := make([]core.SimilarRecord, 0, len(decoded.IDs[0]))
	for i, id := range decoded.IDs[0] {
		sim := core.SimilarRecord{ID: id}
		if len(decoded.Distances) > 0 && i < len(decoded.Distances[0]) {
			// Chroma reports distance; flip it into a similarity score.
			sim.Similarity = 1 - decoded.Distances[0][i]
		}
		if len(decoded.Documents) > 0 && i < len(decoded.Documents[0]) {
			sim.Content = decoded.Documents[0][i]
		}
		if len(decoded.Metadatas) > 0 && i < len(decoded.Metadatas[0]) {
			meta := decoded.Metadatas[0][i]
			sim.Subject, _ = meta["subject"].(string)
			sim.Sender, _ = meta["sender"].(string)
			sim.Label, _ = meta["label"].(string)
		}
		results = append(results, sim)
	}
	return results, nil
}

// ensureCollection resolves the collection ID, creating it if needed
func (c *ChromaIndex) ensureCollection(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.collectionID != "" {
		return c.collectionID, nil
	}

	payload := map[string]interface{}{
		"name":          c.collection,
		"get_or_create": true,
	}

	var decoded struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/api/v1/collections", payload, &decoded); err != nil {
		return "", fmt.Errorf("failed to open collection %s: %w", c.collection, err)
	}
	if decoded.ID == "" {
		return "", fmt.Errorf("collection response missing id")
	}

	c.collectionID = decoded.ID
	return c.collectionID, nil
}

func (c *ChromaIndex) post(ctx context.Context, path string, payload interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	return json.Unmarshal(respBody, out)
}
