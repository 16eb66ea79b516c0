package usecase

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/eslsoft/audiolink/internal/repository"
)

const (
	_defaultRelayBatchSize = 500
	_defaultRelayGrace     = 30 * time.Second
)

// RelayOptions tunes outbox redelivery.
type RelayOptions struct {
	// BatchSize caps the entries handled per pass.
	BatchSize int
	// Grace skips entries younger than this so in-flight dispatches are not duplicated.
	Grace time.Duration
	// Rate limits notifier calls per second; zero means unlimited.
	Rate float64
}

// RelayResult summarizes one redelivery pass.
type RelayResult struct {
	Delivered int
	Failed    int
}

// ReindexRelay redelivers reindex triggers that were committed to the outbox
// but never confirmed, e.g. after a notifier outage or a crash.
type ReindexRelay struct {
	outbox   repository.ReindexOutbox
	notifier repository.ReindexNotifier
	opts     RelayOptions
	limiter  *rate.Limiter
	logger   logrus.FieldLogger
	clock    func() time.Time
}

func NewReindexRelay(outbox repository.ReindexOutbox, notifier repository.ReindexNotifier, opts RelayOptions, logger logrus.FieldLogger) *ReindexRelay {
	if opts.BatchSize <= 0 {
		opts.BatchSize = _defaultRelayBatchSize
	}
	if opts.Grace < 0 {
		opts.Grace = _defaultRelayGrace
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.Rate), 1)
	}
	return &ReindexRelay{
		outbox:   outbox,
		notifier: notifier,
		opts:     opts,
		limiter:  limiter,
		logger:   logger.WithField("component", "reindex_relay"),
		clock:    time.Now,
	}
}

// Redeliver performs one pass over pending outbox entries. Entries whose
// notification fails are kept for the next pass.
func (r *ReindexRelay) Redeliver(ctx context.Context) (RelayResult, error) {
	var res RelayResult
	pending, err := r.outbox.ListPending(ctx, r.clock().Add(-r.opts.Grace), r.opts.BatchSize)
	if err != nil {
		return res, err
	}

	for _, p := range pending {
		if err := r.limiter.Wait(ctx); err != nil {
			return res, err
		}
		log := r.logger.WithFields(logrus.Fields{"outbox_id": p.ID, "sentence_id": p.SentenceID})
		if err := r.notifier.FlagForReindex(ctx, p.SentenceID); err != nil {
			res.Failed++
			log.WithError(err).Warn("redelivery failed")
			continue
		}
		if err := r.outbox.Ack(ctx, p.ID); err != nil {
			res.Failed++
			log.WithError(err).Warn("redelivered but ack failed")
			continue
		}
		res.Delivered++
	}

	if len(pending) > 0 {
		r.logger.WithFields(logrus.Fields{
			"pending":   len(pending),
			"delivered": res.Delivered,
			"failed":    res.Failed,
		}).Info("reindex relay pass finished")
	}
	return res, nil
}
