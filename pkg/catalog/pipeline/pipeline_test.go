package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"skusync/pkg/catalog/feed"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<yml_catalog>
	<shop>
		<categories>
			<category id="1">A</category>
			<category id="2" parentId="1">B</category>
		</categories>
		<offers>
			<offer marketplace_id="1" id="1001">
				<categoryId>2</categoryId>
				<name>Game Console</name>
				<vendor>PlayCo</vendor>
			</offer>
			<offer marketplace_id="1" id="1002">
				<categoryId>2</categoryId>
				<name>Game Controller</name>
				<vendor>PlayCo</vendor>
			</offer>
			<offer marketplace_id="1" id="1003">
				<categoryId>1</categoryId>
				<name>Teddy Bear</name>
				<vendor>SoftCo</vendor>
			</offer>
		</offers>
	</shop>
</yml_catalog>`

type fakeStore struct {
	rows     map[uuid.UUID]*feed.SKU
	inserted []uuid.UUID
	resets   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[uuid.UUID]*feed.SKU)}
}

func (f *fakeStore) Reset(ctx context.Context) error {
	f.resets++
	f.rows = make(map[uuid.UUID]*feed.SKU)
	f.inserted = nil
	return nil
}

func (f *fakeStore) Insert(ctx context.Context, sku *feed.SKU) error {
	for _, row := range f.rows {
		if row.MarketplaceID == sku.MarketplaceID && row.ProductID == sku.ProductID {
			return fmt.Errorf("insert sku %d/%d - %w", sku.MarketplaceID, sku.ProductID, errDuplicate)
		}
	}
	clone := *sku
	f.rows[sku.UUID] = &clone
	f.inserted = append(f.inserted, sku.UUID)
	return nil
}

func (f *fakeStore) UpdateSimilarity(ctx context.Context, id uuid.UUID, similar []uuid.UUID) error {
	row, ok := f.rows[id]
	if !ok {
		return fmt.Errorf("update similar_sku %s - %w", id, errNotFound)
	}
	row.SimilarSKU = similar
	return nil
}

var (
	errDuplicate = errors.New("duplicate sku")
	errNotFound  = errors.New("sku not found")
)

// fakeSearch answers FindSimilar with every previously indexed id, so
// the order dependence of single-pass enrichment is observable.
type fakeSearch struct {
	indexed   []uuid.UUID
	calls     int
	failIndex bool
	failFind  bool
}

func (f *fakeSearch) Index(ctx context.Context, sku *feed.SKU) error {
	f.calls++
	if f.failIndex {
		return errors.New("index unavailable")
	}
	f.indexed = append(f.indexed, sku.UUID)
	return nil
}

func (f *fakeSearch) FindSimilar(ctx context.Context, sku *feed.SKU, k int) ([]uuid.UUID, error) {
	f.calls++
	if f.failFind {
		return nil, errors.New("search unavailable")
	}
	var out []uuid.UUID
	for _, id := range f.indexed {
		if id == sku.UUID {
			continue
		}
		out = append(out, id)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

type PipelineTestSuite struct {
	suite.Suite
	store  *fakeStore
	search *fakeSearch
}

func (s *PipelineTestSuite) SetupTest() {
	s.store = newFakeStore()
	s.search = &fakeSearch{}
}

func (s *PipelineTestSuite) newSource(doc string) Source {
	h, err := feed.LoadHierarchy(strings.NewReader(doc))
	require.Nil(s.T(), err)

	return feed.NewDecoder(strings.NewReader(doc), h)
}

func (s *PipelineTestSuite) TestRun() {
	stats, err := New(s.store, s.search).Run(context.Background(), s.newSource(testFeed))
	require.Nil(s.T(), err)

	assert.Equal(s.T(), 3, stats.Records)
	assert.Equal(s.T(), 3, stats.Indexed)
	assert.Equal(s.T(), 3, stats.Enriched)
	assert.Equal(s.T(), 0, stats.SearchErrors)
	assert.Equal(s.T(), 1, s.store.resets)
	assert.Len(s.T(), s.store.rows, 3)
}

func (s *PipelineTestSuite) TestSimilarityFollowsFeedOrder() {
	_, err := New(s.store, s.search).Run(context.Background(), s.newSource(testFeed))
	require.Nil(s.T(), err)

	first := s.store.rows[s.store.inserted[0]]
	last := s.store.rows[s.store.inserted[2]]

	// the first record was enriched before the others were indexed
	assert.Empty(s.T(), first.SimilarSKU)
	assert.Len(s.T(), last.SimilarSKU, 2)
	assert.NotContains(s.T(), last.SimilarSKU, last.UUID)
}

func (s *PipelineTestSuite) TestSearchFailureDegrades() {
	s.search.failIndex = true
	s.search.failFind = true

	p := New(s.store, s.search)
	stats, err := p.Run(context.Background(), s.newSource(testFeed))
	require.Nil(s.T(), err)

	assert.Equal(s.T(), 3, stats.Records)
	assert.Equal(s.T(), 0, stats.Indexed)
	assert.Equal(s.T(), 6, stats.SearchErrors)
	assert.Len(s.T(), p.Errors(), 6)

	for _, row := range s.store.rows {
		assert.Empty(s.T(), row.SimilarSKU)
	}
}

func (s *PipelineTestSuite) TestEmptyFeed() {
	doc := `<yml_catalog><shop><offers/></shop></yml_catalog>`

	stats, err := New(s.store, s.search).Run(context.Background(), s.newSource(doc))
	require.Nil(s.T(), err)

	assert.Equal(s.T(), 0, stats.Records)
	assert.Equal(s.T(), 0, s.search.calls)
	assert.Len(s.T(), s.store.rows, 0)
}

func (s *PipelineTestSuite) TestDuplicateAbortsRun() {
	doc := strings.ReplaceAll(testFeed, `id="1002"`, `id="1001"`)

	stats, err := New(s.store, s.search).Run(context.Background(), s.newSource(doc))
	assert.True(s.T(), errors.Is(err, errDuplicate))
	assert.Equal(s.T(), 1, stats.Records)
}

func TestPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}
