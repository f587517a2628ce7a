package service

import (
	"stock-monitor/config"
	"stock-monitor/internal/contract"
	"stock-monitor/internal/repository"
	"stock-monitor/pkg/cache"
	"stock-monitor/pkg/logger"
)

type Service struct {
	MonitorEngine *MonitorEngine
	ReportService *ReportService
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	notifier contract.Notifier,
) *Service {
	engine := NewMonitorEngine(cfg, log, repo, inmemoryCache, notifier)
	return &Service{
		MonitorEngine: engine,
		ReportService: NewReportService(cfg, log, engine, notifier),
	}
}
