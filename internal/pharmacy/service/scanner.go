package service

import (
	"context"
	"time"

	"github.com/pharmacore/pharmacy-backend/internal/pharmacy/events"
	"github.com/pharmacore/pharmacy-backend/pkg/logger"
)

// AlertScanner periodically sweeps the inventory and publishes alert events
// for expiring batches and drugs at or below their reorder level. Dispenses
// already raise low-stock alerts inline; the scanner catches drugs that drift
// into alert state without movement, such as batches ageing past their expiry.
type AlertScanner struct {
	stock     *StockService
	publisher *events.StockEventPublisher
	interval  time.Duration
	logger    *logger.Logger
	cancel    context.CancelFunc
}

// NewAlertScanner creates a new alert scanner
func NewAlertScanner(stock *StockService, publisher *events.StockEventPublisher, interval time.Duration, log *logger.Logger) *AlertScanner {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &AlertScanner{
		stock:     stock,
		publisher: publisher,
		interval:  interval,
		logger:    log.WithComponent("alert_scanner"),
	}
}

// Start starts the scanner in a background goroutine. An initial scan runs
// immediately so a freshly started service does not wait a full interval
// before reporting already-expiring stock.
func (s *AlertScanner) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().Dur("interval", s.interval).Msg("alert scanner started")

		s.scan(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("alert scanner stopped")
				return
			case <-ticker.C:
				s.scan(ctx)
			}
		}
	}()
}

// Stop stops the scanner goroutine
func (s *AlertScanner) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *AlertScanner) scan(ctx context.Context) {
	start := time.Now()

	expiring, err := s.stock.ExpiringSoon(ctx, 0)
	if err != nil {
		s.logger.WithError(err).Error().Msg("expiry scan failed")
	} else {
		for _, eb := range expiring {
			expired := eb.ExpiryStatus == ExpiryStatusExpired
			s.publisher.PublishBatchExpiring(ctx, eb.Batch, eb.DaysUntilExpiry, expired)
		}
	}

	low, err := s.stock.LowStockDrugs(ctx)
	if err != nil {
		s.logger.WithError(err).Error().Msg("low stock scan failed")
		return
	}
	out, err := s.stock.OutOfStockDrugs(ctx)
	if err != nil {
		s.logger.WithError(err).Error().Msg("out of stock scan failed")
		return
	}

	for _, ds := range low {
		s.publisher.PublishLowStock(ctx, ds.Drug, ds.StockOnHand, false)
	}
	for _, ds := range out {
		s.publisher.PublishLowStock(ctx, ds.Drug, ds.StockOnHand, true)
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("expiring", len(expiring)).
		Int("low_stock", len(low)).
		Int("out_of_stock", len(out)).
		Msg("alert scan completed")
}
