package cron

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/multierr"

	"github.com/kittykibble/kibble-backend/internal/compensation"
	"github.com/kittykibble/kibble-backend/pkg/config"
	"github.com/kittykibble/kibble-backend/pkg/logger"
	"github.com/kittykibble/kibble-backend/pkg/metrics"
)

// Compensation results.
const (
	compensationCancelled = "cancelled"
	compensationRequeued  = "requeued"
	compensationDead      = "dead"
)

type cancellationQueue interface {
	Pop(ctx context.Context) (*compensation.Cancellation, error)
	Requeue(ctx context.Context, c compensation.Cancellation) error
	DeadLetter(ctx context.Context, c compensation.Cancellation) error
	Depth(ctx context.Context) (int64, error)
}

type waybillCanceller interface {
	Cancel(ctx context.Context, ref string) error
}

// WaybillCompensationJobParams configure the orphaned-waybill worker.
type WaybillCompensationJobParams struct {
	Logger   *logger.Logger
	Queue    cancellationQueue
	Waybills waybillCanceller
	Metrics  *metrics.CheckoutMetrics
	Config   config.CompensationConfig
}

// NewWaybillCompensationJob builds the job that deletes waybills whose
// order could not be saved.
func NewWaybillCompensationJob(params WaybillCompensationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("cancellation queue required")
	}
	if params.Waybills == nil {
		return nil, fmt.Errorf("waybill service required")
	}
	cfg := params.Config
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 10
	}
	return &waybillCompensationJob{
		logg:     params.Logger,
		queue:    params.Queue,
		waybills: params.Waybills,
		metrics:  params.Metrics,
		cfg:      cfg,
	}, nil
}

type waybillCompensationJob struct {
	logg     *logger.Logger
	queue    cancellationQueue
	waybills waybillCanceller
	metrics  *metrics.CheckoutMetrics
	cfg      config.CompensationConfig
}

func (j *waybillCompensationJob) Name() string { return "waybill-compensation" }

// Run drains up to BatchSize entries. Failures go back to the tail only
// after the batch so one bad entry is tried once per run.
func (j *waybillCompensationJob) Run(ctx context.Context) error {
	var (
		errs    error
		retries []compensation.Cancellation
		done    int
	)
	for i := 0; i < j.cfg.BatchSize; i++ {
		entry, err := j.queue.Pop(ctx)
		if errors.Is(err, compensation.ErrMalformed) {
			j.logg.Error(ctx, "undecodable cancellation moved to dead letter", err)
			j.metrics.IncCompensation(compensationDead)
			errs = multierr.Append(errs, err)
			continue
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		if entry == nil {
			break
		}
		entryCtx := j.logg.WithFields(ctx, map[string]any{
			"waybill_ref":    entry.WaybillRef,
			"waybill_number": entry.WaybillNumber,
			"attempt":        entry.Attempts + 1,
		})
		if err := j.waybills.Cancel(entryCtx, entry.WaybillRef); err != nil {
			entry.Attempts++
			entry.LastError = err.Error()
			if entry.Attempts >= j.cfg.MaxAttempts {
				j.logg.Error(entryCtx, "waybill cancellation exhausted retries; moved to dead letter", err)
				j.metrics.IncCompensation(compensationDead)
				if dlErr := j.queue.DeadLetter(ctx, *entry); dlErr != nil {
					errs = multierr.Append(errs, dlErr)
				}
			} else {
				j.logg.Warn(entryCtx, "waybill cancellation failed; will retry")
				j.metrics.IncCompensation(compensationRequeued)
				retries = append(retries, *entry)
			}
			errs = multierr.Append(errs, fmt.Errorf("cancel waybill %s: %w", entry.WaybillNumber, err))
			continue
		}
		j.metrics.IncCompensation(compensationCancelled)
		j.logg.Info(entryCtx, "orphaned waybill cancelled")
		done++
	}

	for _, entry := range retries {
		if err := j.queue.Requeue(ctx, entry); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if depth, err := j.queue.Depth(ctx); err == nil {
		j.metrics.SetQueueDepth(depth)
	}
	if done > 0 || len(retries) > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{"cancelled": done, "requeued": len(retries)})
		j.logg.Info(logCtx, "waybill compensation loop complete")
	}
	return errs
}
