package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"

	"skusync/pkg/catalog/feed"
)

const (
	// DefaultSimilar caps the similarity list length per record
	DefaultSimilar = 5
	// MaxQueryTerms bounds how many terms the engine picks per field
	MaxQueryTerms = 12

	minTermFreq = 1
)

// mltFields are the document fields the similarity query matches on.
var mltFields = []string{"title", "description", "brand", "features"}

// Client indexes SKU documents and answers more-like-this queries
// against a single index.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// New connects to the search engine and verifies the cluster is
// reachable, so a dead engine fails the run before any record is
// processed.
func New(url, user, password, index string) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client - %w", err)
	}

	res, err := es.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch ping - %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch ping - %s", res.String())
	}
	io.Copy(io.Discard, res.Body)

	if index == "" {
		index = "sku"
	}

	return &Client{es: es, index: index}, nil
}

// Index upserts the record's reduced document under its uuid.
func (c *Client) Index(ctx context.Context, sku *feed.SKU) error {
	body, err := json.Marshal(sku.Document())
	if err != nil {
		return fmt.Errorf("encode document %s - %w", sku.UUID, err)
	}

	res, err := c.es.Index(
		c.index,
		bytes.NewReader(body),
		c.es.Index.WithDocumentID(sku.UUID.String()),
		c.es.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index sku %s - %w", sku.UUID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index sku %s - %s", sku.UUID, res.String())
	}
	io.Copy(io.Discard, res.Body)

	return nil
}

// FindSimilar returns the ids of up to k indexed records most similar
// to sku, ranked by the engine's relevance score. The seed record
// itself is never part of the result.
func (c *Client) FindSimilar(ctx context.Context, sku *feed.SKU, k int) ([]uuid.UUID, error) {
	if k <= 0 {
		k = DefaultSimilar
	}

	body, err := json.Marshal(moreLikeThisQuery(sku.UUID, k))
	if err != nil {
		return nil, fmt.Errorf("encode query %s - %w", sku.UUID, err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search similar %s - %w", sku.UUID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search similar %s - %s", sku.UUID, res.String())
	}

	return parseSimilarIDs(res.Body, sku.UUID, k)
}

// moreLikeThisQuery builds the search body, using the seed record's own
// indexed document as the like-source.
func moreLikeThisQuery(seed uuid.UUID, k int) map[string]interface{} {
	return map[string]interface{}{
		"size": k,
		"query": map[string]interface{}{
			"more_like_this": map[string]interface{}{
				"fields": mltFields,
				"like": []map[string]interface{}{
					{"_id": seed.String()},
				},
				"min_term_freq":   minTermFreq,
				"max_query_terms": MaxQueryTerms,
			},
		},
	}
}

// parseSimilarIDs extracts ranked hit ids from a search response,
// dropping the seed id and anything that is not a uuid.
func parseSimilarIDs(r io.Reader, seed uuid.UUID, k int) ([]uuid.UUID, error) {
	var response struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}

	if err := json.NewDecoder(r).Decode(&response); err != nil {
		return nil, fmt.Errorf("decode search response - %w", err)
	}

	ids := make([]uuid.UUID, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		id, err := uuid.Parse(hit.ID)
		if err != nil || id == seed {
			continue
		}
		ids = append(ids, id)
		if len(ids) == k {
			break
		}
	}

	return ids, nil
}
