package waitlist

import (
	"context"
	"sync"
	"time"

	"roomly/pkg/logger"
)

// JobProcessor runs the caller-driven waitlist expiry sweep on a timer
type JobProcessor struct {
	service Service
	config  *JobConfig
	log     *logger.Logger
	done    chan struct{}
	once    sync.Once
}

// JobConfig contains configuration for background jobs
type JobConfig struct {
	ExpiryCheckInterval time.Duration
	BatchSize           int
}

// DefaultJobConfig returns default job configuration
func DefaultJobConfig() *JobConfig {
	return &JobConfig{
		ExpiryCheckInterval: 1 * time.Minute,
		BatchSize:           100,
	}
}

func NewJobProcessor(service Service, config *JobConfig, log *logger.Logger) *JobProcessor {
	defaults := DefaultJobConfig()
	if config == nil {
		config = defaults
	}
	if config.ExpiryCheckInterval <= 0 {
		config.ExpiryCheckInterval = defaults.ExpiryCheckInterval
	}
	// a non-positive batch would never come back short
	if config.BatchSize <= 0 {
		config.BatchSize = defaults.BatchSize
	}
	if log == nil {
		log = logger.GetDefault()
	}

	return &JobProcessor{
		service: service,
		config:  config,
		log:     log,
		done:    make(chan struct{}),
	}
}

// Run sweeps once immediately, then on every tick until ctx ends or Stop
// is called
func (jp *JobProcessor) Run(ctx context.Context) {
	ticker := time.NewTicker(jp.config.ExpiryCheckInterval)
	defer ticker.Stop()

	jp.log.Info("Started waitlist expiry sweep", "interval", jp.config.ExpiryCheckInterval.String())
	jp.SweepOnce(ctx)

	for {
		select {
		case <-ticker.C:
			jp.SweepOnce(ctx)
		case <-jp.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends Run
func (jp *JobProcessor) Stop() {
	jp.once.Do(func() { close(jp.done) })
}

// SweepOnce expires stale entries in batches until a batch comes back short
func (jp *JobProcessor) SweepOnce(ctx context.Context) int {
	total := 0
	for {
		n, err := jp.service.ExpireStale(ctx, jp.config.BatchSize)
		total += n
		if err != nil {
			jp.log.ErrorWithContext(ctx, "Error expiring waitlist entries", err, map[string]interface{}{
				"expired_so_far": total,
			})
			return total
		}
		if n < jp.config.BatchSize {
			break
		}
	}

	if total > 0 {
		jp.log.InfoContext(ctx, "Expired stale waitlist entries", "count", total)
	}
	return total
}
