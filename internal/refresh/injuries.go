package refresh

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/statline/internal/model"
	"github.com/sells-group/statline/internal/transform"
)

// InjurySource retrieves the current league injury report.
type InjurySource interface {
	FetchInjuries(ctx context.Context) (*model.RawBatch, error)
}

// Injury refresh errors.
var (
	ErrNoInjurySource    = eris.New("refresh: source has no injury report")
	ErrEmptyInjuryReport = eris.New("refresh: injury report is empty")
)

// RefreshInjuries replaces the stored injury report with the current one
// and drops cached reads. An empty report leaves the stored one in place.
func (o *Orchestrator) RefreshInjuries(ctx context.Context) (int64, error) {
	src, ok := o.source.(InjurySource)
	if !ok {
		return 0, ErrNoInjurySource
	}
	batch, err := src.FetchInjuries(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "refresh: fetch injuries")
	}
	report, err := transform.TransformInjuries(batch, o.now())
	if err != nil {
		return 0, eris.Wrap(err, "refresh: transform injuries")
	}
	if len(report) == 0 {
		return 0, ErrEmptyInjuryReport
	}

	n, err := o.store.CommitInjuries(ctx, report)
	if err != nil {
		return 0, err
	}
	if o.cache != nil {
		o.cache.InvalidateAll()
	}
	o.log.Info("injury report refreshed", zap.Int64("rows", n))
	return n, nil
}
