// Package pump implements the Pump loop from spec.md §4.2: claim unpublished
// outbox rows with SKIP LOCKED, publish each to the broker, revert on
// publish failure. Grounded on event-service's
// internal/infrastructure/db/postgres/outbox.go claim/publish/revert shape.
package pump

import (
	"context"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/dripwave/sequencer/internal/apperrors"
	"github.com/dripwave/sequencer/internal/broker/rabbitmq"
	"github.com/dripwave/sequencer/internal/metrics"
	"github.com/dripwave/sequencer/internal/store/postgres"
)

// pollFoundRatio mirrors spec.md §4.2's default POLL pair (1s found / 10s
// idle): pollFound is derived from the configured idle interval at this
// ratio instead of its own env var.
const pollFoundRatio = 1.0 / 10.0

const publishTimeout = 10 * time.Second

type Pump struct {
	repo      *postgres.PumpRepo
	publisher *rabbitmq.Publisher
	claimSize int
	pollIdle  time.Duration
	pollFound time.Duration
	log       zerolog.Logger
}

func New(repo *postgres.PumpRepo, publisher *rabbitmq.Publisher, claimSize int, pollIdle time.Duration, log zerolog.Logger) *Pump {
	return &Pump{
		repo:      repo,
		publisher: publisher,
		claimSize: claimSize,
		pollIdle:  pollIdle,
		pollFound: time.Duration(float64(pollIdle) * pollFoundRatio),
		log:       log.With().Str("component", "pump").Logger(),
	}
}

func (p *Pump) Run(ctx context.Context) {
	time.Sleep(time.Duration(rand.Intn(500)) * time.Millisecond)

	interval := p.pollIdle
	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("pump stopped")
			return
		case <-timer.C:
			// A claimed batch is published (or reverted) in full even if
			// shutdown is signalled mid-batch.
			found := p.tick(context.WithoutCancel(ctx))
			if found {
				interval = p.pollFound
			} else {
				interval = p.pollIdle
			}
			timer.Reset(interval)
		}
	}
}

func (p *Pump) tick(ctx context.Context) bool {
	claimed, err := p.repo.Claim(ctx, p.claimSize)
	if err != nil {
		apperrors.Database("claim failed", err).Log(p.log)
		return false
	}
	if len(claimed) == 0 {
		return false
	}

	metrics.PumpClaimedTotal.Add(float64(len(claimed)))

	for _, row := range claimed {
		pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
		err := p.publisher.Publish(pubCtx, row.Topic, row.Payload, nil)
		cancel()

		if err != nil {
			apperrors.Network("publish failed; reverting", err).WithContext("outbox_id", row.ID).Log(p.log)
			if revertErr := p.repo.Revert(ctx, row.ID); revertErr != nil {
				apperrors.Database("revert failed", revertErr).WithContext("outbox_id", row.ID).Log(p.log)
			} else {
				metrics.PumpRevertedTotal.Inc()
			}
			continue
		}

		metrics.PumpPublishedTotal.Inc()
		p.log.Info().Str("outbox_id", row.ID).Str("topic", row.Topic).Int("retries", row.Retries).Msg("published")
	}

	return true
}
