package train

import (
	"log/slog"

	"github.com/convkg-ml/convkg/internal/data"
)

// Evaluate computes mean rank and mean reciprocal rank for a split and
// emits them as "<split> mr" / "<split> mrr".
//
// The protocol is unfiltered: when a query has several true objects, the
// others stay in the candidate list while each one is ranked, so the
// reported numbers are pessimistic compared to filtered evaluation. This is
// deliberate and must not be "fixed" silently.
//
// The model runs in evaluation mode (running batch-norm statistics, no
// dropout) over the inference scoring path; tape recording is suspended for
// the duration.
func (t *Trainer) Evaluate(epoch int, ds *data.Dataset, split string) (mr, mrr float64) {
	wasRecording := t.tape.IsRecording()
	t.tape.StopRecording()
	defer func() {
		if wasRecording {
			t.tape.StartRecording()
		}
	}()

	batches := data.Batches(ds, data.LoaderConfig{
		BatchSize: t.cfg.BatchSize,
		Workers:   t.cfg.Workers,
	}, t.rng)

	numEntities := ds.NumEntities()
	var ranks []int
	for batch := range batches {
		scores := t.model.Predict(t.tape, batch.S, batch.R)
		sd := scores.Data()
		for i := range batch.S {
			row := sd[i*numEntities : (i+1)*numEntities]
			for _, o := range batch.Objects[i] {
				ranks = append(ranks, Rank(row, o))
			}
		}
	}

	mr, mrr = Aggregate(ranks)
	t.logger.Info("evaluation",
		slog.String("split", split),
		slog.Int("epoch", epoch),
		slog.Float64("mr", mr),
		slog.Float64("mrr", mrr))
	t.collector.Emit(split+" mr", mr, epoch)
	t.collector.Emit(split+" mrr", mrr, epoch)
	return mr, mrr
}

// Aggregate reduces a list of ranks to mean rank and mean reciprocal rank.
// Empty input yields zeros.
func Aggregate(ranks []int) (mr, mrr float64) {
	if len(ranks) == 0 {
		return 0, 0
	}
	for _, r := range ranks {
		mr += float64(r)
		mrr += 1 / float64(r)
	}
	n := float64(len(ranks))
	return mr / n, mrr / n
}

// Rank returns the 1-based position of object's score in the descending
// order of scores. Ties are broken in favor of the lower entity index: an
// equal-scoring candidate counts as ranked above the object only when its
// index is smaller.
func Rank(scores []float32, object int32) int {
	target := scores[object]
	rank := 1
	for j, s := range scores {
		if s > target || (s == target && int32(j) < object) {
			rank++
		}
	}
	return rank
}
