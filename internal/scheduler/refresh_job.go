package scheduler

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/modules/marketdata"
)

// RefreshJob runs the full market data update pipeline on schedule.
// When a manually triggered update is still in flight, the tick is skipped.
type RefreshJob struct {
	service *marketdata.Service
	log     zerolog.Logger
}

// NewRefreshJob creates the scheduled market data refresh job
func NewRefreshJob(service *marketdata.Service, log zerolog.Logger) *RefreshJob {
	return &RefreshJob{
		service: service,
		log:     log.With().Str("job", "market_data_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RefreshJob) Name() string {
	return "market_data_refresh"
}

// Run executes one refresh
func (j *RefreshJob) Run() error {
	result, err := j.service.UpdateAll()
	if errors.Is(err, marketdata.ErrUpdateRunning) {
		j.log.Info().Msg("Update already in flight, skipping scheduled run")
		return nil
	}
	if err != nil {
		return err
	}

	j.log.Info().
		Int("tickers_resolved", result.TickersResolved).
		Int("prices_inserted", result.PricesInserted).
		Int("index_bars", result.IndexBars).
		Msg("Scheduled refresh complete")
	return nil
}
