package runstore

import "context"

// Store is the run history used by the pipeline and the API. Consumers
// depend on it rather than on *DB.
type Store interface {
	SaveRun(ctx context.Context, r *Run) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, opts ListOptions) ([]RunSummary, int, error)
	SearchRuns(ctx context.Context, query string, limit int) ([]RunSummary, error)
	Close() error
}

var _ Store = (*DB)(nil)
