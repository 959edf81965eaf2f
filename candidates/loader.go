package candidates

import (
	"context"
	"time"

	"github.com/ChrissHeIs/electricco-vehicle-image-manager/models"
	"github.com/graph-gophers/dataloader/v7"
	"golang.org/x/sync/errgroup"
)

// maxConcurrentSearches bounds one batch; the client's rate limiter still
// paces the requests themselves.
const maxConcurrentSearches = 4

// Loader collapses lookups for the same brand/model (typically one vehicle
// across several model years) into a single search, and remembers the
// outcome for its lifetime.
type Loader struct {
	loader *dataloader.Loader[models.SearchKey, []string]
}

func NewLoader(searcher Searcher) *Loader {
	reader := &searchReader{searcher: searcher}
	return &Loader{
		loader: dataloader.NewBatchedLoader(
			reader.search,
			dataloader.WithWait[models.SearchKey, []string](2*time.Millisecond),
			dataloader.WithBatchCapacity[models.SearchKey, []string](20),
		),
	}
}

func (l *Loader) Load(ctx context.Context, key models.SearchKey) ([]string, error) {
	return l.loader.Load(ctx, key)()
}

type searchReader struct {
	searcher Searcher
}

func (r *searchReader) search(ctx context.Context, keys []models.SearchKey) []*dataloader.Result[[]string] {
	results := make([]*dataloader.Result[[]string], len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentSearches)
	for i, key := range keys {
		i, key := i, key
		g.Go(func() error {
			urls, err := r.searcher.Search(gctx, key)
			results[i] = &dataloader.Result[[]string]{Data: urls, Error: err}
			return nil
		})
	}
	_ = g.Wait()
	return results
}
