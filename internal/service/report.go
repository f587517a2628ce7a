package service

import (
	"context"
	"fmt"
	"strings"

	"stock-monitor/config"
	"stock-monitor/internal/contract"
	"stock-monitor/pkg/logger"
	"stock-monitor/pkg/utils"

	"github.com/robfig/cron/v3"
)

// reportCronSpec fires shortly after the afternoon close on weekdays.
const reportCronSpec = "5 15 * * 1-5"

// ReportService sends a close-of-day summary of every tracked instrument.
type ReportService struct {
	cfg      *config.Config
	log      *logger.Logger
	engine   *MonitorEngine
	notifier contract.Notifier
	cron     *cron.Cron
}

func NewReportService(cfg *config.Config, log *logger.Logger, engine *MonitorEngine, notifier contract.Notifier) *ReportService {
	return &ReportService{
		cfg:      cfg,
		log:      log,
		engine:   engine,
		notifier: notifier,
		cron:     cron.New(cron.WithLocation(utils.GetMarketLocation())),
	}
}

func (s *ReportService) Start(ctx context.Context) error {
	if !s.cfg.Monitor.DailyReportEnabled {
		s.log.Info("Daily report disabled")
		return nil
	}

	_, err := s.cron.AddFunc(reportCronSpec, func() {
		if err := s.SendDailyReport(ctx); err != nil {
			s.log.ErrorContextWithAlert(ctx, "Failed to send daily report", logger.ErrorField(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule daily report: %w", err)
	}

	s.cron.Start()
	s.log.Info("Daily report scheduled", logger.StringField("cron", reportCronSpec))
	return nil
}

func (s *ReportService) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
}

// SendDailyReport summarizes the session metrics of every instrument with
// state. Instruments that never produced a sample are listed as such.
func (s *ReportService) SendDailyReport(ctx context.Context) error {
	snapshots := s.engine.Snapshot()
	if len(snapshots) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString("📊 Daily close report\n\n")
	for _, snap := range snapshots {
		if snap.State == nil {
			b.WriteString(fmt.Sprintf("%s (%s): no data today\n", snap.Config.Name, snap.Config.Code))
			continue
		}
		b.WriteString(fmt.Sprintf("%s (%s): close %s | change %s | peak rise %s | fallback %s\n",
			snap.Config.Name,
			snap.Config.Code,
			utils.FormatPrice(snap.State.CurrentPrice),
			utils.FormatPercentage(snap.State.ChangePercent),
			utils.FormatPercentage(snap.State.MaxRisePercent),
			utils.FormatPercentage(snap.State.FallbackPercent),
		))
	}

	return s.notifier.Send(ctx, b.String())
}
