//go:build integration

package search

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skusync/pkg/catalog/feed"
)

// Needs a reachable Elasticsearch, e.g. TEST_ELASTIC_URL=http://localhost:9200
func openTestClient(t *testing.T) *Client {
	t.Helper()

	url := os.Getenv("TEST_ELASTIC_URL")
	if url == "" {
		t.Skip("TEST_ELASTIC_URL not set")
	}

	c, err := New(url, os.Getenv("ELASTIC_USER"), os.Getenv("ELASTIC_PASSWORD"), "sku_test")
	require.Nil(t, err)

	return c
}

func TestIndexAndFindSimilar(t *testing.T) {
	c := openTestClient(t)
	ctx := context.Background()

	a := &feed.SKU{UUID: uuid.New(), Title: "wireless gaming mouse", Brand: "ClickCo"}
	b := &feed.SKU{UUID: uuid.New(), Title: "wireless gaming keyboard", Brand: "ClickCo"}

	require.Nil(t, c.Index(ctx, a))
	require.Nil(t, c.Index(ctx, b))

	// the index refreshes on its own interval
	time.Sleep(2 * time.Second)

	similar, err := c.FindSimilar(ctx, a, DefaultSimilar)
	require.Nil(t, err)

	assert.LessOrEqual(t, len(similar), DefaultSimilar)
	for _, id := range similar {
		assert.NotEqual(t, a.UUID, id)
	}
}
