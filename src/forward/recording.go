package forward

import (
	"context"
	"time"

	"github.com/google/uuid"

	"devsonar/src/contracts"
	"devsonar/src/logger"
	"devsonar/src/patterns"
	"devsonar/src/store"
)

// Recording forwards through next and then writes every report of the batch to the
// history store with the outcome. Store failures are logged and do not change the result.
type Recording struct {
	next   Forwarder
	store  store.Store
	logger logger.Logger
	now    func() time.Time
}

func NewRecording(next Forwarder, st store.Store, log logger.Logger) *Recording {
	return &Recording{next: next, store: st, logger: log, now: time.Now}
}

func (r *Recording) Forward(ctx context.Context, reports []contracts.ErrorReport) error {
	err := r.next.Forward(ctx, reports)

	outcome := store.OutcomeForwarded
	errText := ""
	if err != nil {
		outcome = store.OutcomeFailed
		errText = err.Error()
	}

	batchID := uuid.NewString()
	forwardedAt := r.now()
	records := make([]store.Record, len(reports))
	for i, rep := range reports {
		records[i] = store.Record{
			ID:          uuid.NewString(),
			BatchID:     batchID,
			Fingerprint: patterns.Fingerprint(rep.Message),
			Message:     rep.Message,
			Source:      rep.Source,
			Language:    rep.Language(),
			Stack:       rep.Stack,
			Context:     rep.Context,
			ReportedAt:  rep.Timestamp,
			ForwardedAt: forwardedAt,
			Outcome:     outcome,
			Error:       errText,
		}
	}

	// The forward context may already be cancelled at shutdown; the history write should still land.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if saveErr := r.store.SaveRecords(saveCtx, records); saveErr != nil {
		r.logger.Error("[Recording] Failed to save %d record(s): %v", len(records), saveErr)
	}

	return err
}
