package repository

import (
	"stock-monitor/config"
	"stock-monitor/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	InstrumentRepo InstrumentRepository
	QuoteRepo      QuoteRepository
}

func NewRepository(cfg *config.Config, db *gorm.DB, log *logger.Logger) (*Repository, error) {
	quoteRepo, err := NewQuoteRepository(cfg, log)
	if err != nil {
		return nil, err
	}

	return &Repository{
		InstrumentRepo: NewInstrumentRepository(db),
		QuoteRepo:      quoteRepo,
	}, nil
}
