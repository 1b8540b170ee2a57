package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"skusync/pkg/catalog/feed"
	"skusync/pkg/collection"
)

// Store is the slice of the record store the driver needs.
type Store interface {
	Reset(ctx context.Context) error
	Insert(ctx context.Context, sku *feed.SKU) error
	UpdateSimilarity(ctx context.Context, id uuid.UUID, similar []uuid.UUID) error
}

// Searcher indexes records and finds their closest neighbours.
type Searcher interface {
	Index(ctx context.Context, sku *feed.SKU) error
	FindSimilar(ctx context.Context, sku *feed.SKU, k int) ([]uuid.UUID, error)
}

// Source is a forward-only stream of decoded records ending in io.EOF.
type Source interface {
	Next() (*feed.SKU, error)
}

// Stats summarizes one run for the closing log line.
type Stats struct {
	Records      int
	Indexed      int
	Enriched     int
	SearchErrors int
}

// Pipeline drives one ingestion run: reset, then per record in feed
// order insert, index, find similar, update. Strictly sequential;
// similarity results only see what was indexed before the query.
type Pipeline struct {
	store  Store
	search Searcher
	topK   int
	mux    *sync.Mutex
	errs   PipelineErrors
}

func New(store Store, search Searcher) *Pipeline {
	mux := new(sync.Mutex)

	return &Pipeline{
		store:  store,
		search: search,
		topK:   5,
		mux:    mux,
		errs:   NewPE(mux),
	}
}

// Errors returns the degradations collected during the run.
func (p *Pipeline) Errors() []error {
	return p.errs.Errors
}

// Run consumes src until io.EOF. Search failures are logged and the
// record keeps an empty similarity list; store failures abort the run.
func (p *Pipeline) Run(ctx context.Context, src Source) (stats Stats, err error) {
	defer track(time.Now(), "Ingestion")

	if err := p.store.Reset(ctx); err != nil {
		return stats, fmt.Errorf("reset store - %w", err)
	}

	for {
		sku, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("read offer - %w", err)
		}

		if err := p.store.Insert(ctx, sku); err != nil {
			return stats, err
		}
		stats.Records++

		if err := p.search.Index(ctx, sku); err != nil {
			stats.SearchErrors++
			p.errs.Log(PipelineError{
				IsNonCritical: true,
				Message:       fmt.Errorf("sku %s - %v", sku.UUID, err),
			}, "Index Record")
		} else {
			stats.Indexed++
		}

		similar, err := p.search.FindSimilar(ctx, sku, p.topK)
		if err != nil {
			stats.SearchErrors++
			similar = nil
			p.errs.Log(PipelineError{
				IsNonCritical: true,
				Message:       fmt.Errorf("sku %s - %v", sku.UUID, err),
			}, "Search Similar Records")
		}

		sku.SimilarSKU = collection.UniqueUUIDs(similar)
		if err := p.store.UpdateSimilarity(ctx, sku.UUID, sku.SimilarSKU); err != nil {
			return stats, err
		}
		stats.Enriched++

		log.WithFields(log.Fields{
			"SKU":     sku.UUID,
			"Similar": len(sku.SimilarSKU),
		}).Debugln("Record processed")
	}

	if len(p.errs.Errors) > 0 {
		log.WithFields(log.Fields{
			"Records":              stats.Records,
			"Indexed":              stats.Indexed,
			"Enriched":             stats.Enriched,
			"Errors":               p.errs,
			"Max Memory Allocated": p.errs.GetMaxMemory(),
		}).Warnln("Ingestion finished with degraded records")
	} else {
		log.WithFields(log.Fields{
			"Records":  stats.Records,
			"Indexed":  stats.Indexed,
			"Enriched": stats.Enriched,
		}).Infoln("Ingestion finished")
	}

	return stats, nil
}

func track(start time.Time, name string) {
	elapsed := time.Since(start)

	log.WithField("time elapsed", elapsed).Info(name)
}
