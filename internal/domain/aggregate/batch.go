package aggregate

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/runboard/internal/domain/model"
	"github.com/okian/runboard/pkg/logger"
	"github.com/okian/runboard/pkg/metrics"
)

// writeBatch persists writes in chunks of batchSize. A failed chunk is
// recorded and the remaining chunks are still attempted.
func (a *Aggregator) writeBatch(ctx context.Context, writes []model.RunWrite) BatchResult {
	var res BatchResult
	if len(writes) == 0 {
		return res
	}

	bs, batched := a.store.(BatchStore)
	for start := 0; start < len(writes); start += a.batchSize {
		chunk := writes[start:min(start+a.batchSize, len(writes))]

		if err := ctx.Err(); err != nil {
			res.fail(chunk, err)
			continue
		}
		if batched {
			res.merge(chunk, bs.PutRuns(ctx, chunk))
			continue
		}
		for _, w := range chunk {
			if err := a.store.PutRun(ctx, w.ID, w.Fields); err != nil {
				res.Failed = append(res.Failed, w.ID)
				res.Errors = append(res.Errors, fmt.Sprintf("run %s: %v", w.ID, err))
				continue
			}
			res.Updated++
		}
	}

	metrics.RecordBatchWrite(res.Updated, len(res.Failed))
	if len(res.Failed) > 0 {
		a.logger.Warn(ctx, "batch write incomplete",
			logger.Int("updated", res.Updated), logger.Int("failed", len(res.Failed)))
	}
	return res
}

func (r *BatchResult) merge(chunk []model.RunWrite, err error) {
	if err == nil {
		r.Updated += len(chunk)
		return
	}
	var pf *model.PartialBatchFailure
	if errors.As(err, &pf) {
		r.Updated += pf.Updated
		r.Failed = append(r.Failed, pf.Failed...)
		r.Errors = append(r.Errors, pf.Errors...)
		return
	}
	r.fail(chunk, err)
}

func (r *BatchResult) fail(chunk []model.RunWrite, err error) {
	for _, w := range chunk {
		r.Failed = append(r.Failed, w.ID)
	}
	r.Errors = append(r.Errors, fmt.Sprintf("chunk of %d runs starting at %s: %v", len(chunk), chunk[0].ID, err))
}
