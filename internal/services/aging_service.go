package services

import (
	"time"

	"pos_ledger_backend/internal/models"
	"pos_ledger_backend/internal/repositories"
)

// AgingConfig sets the bucket boundaries in days until expiry. A batch is
// "old" within OldWindowDays of expiry, "aging" within AgingWindowDays, and
// "fresh" beyond that or without an expiry date.
type AgingConfig struct {
	AgingWindowDays int
	OldWindowDays   int
}

// DefaultAgingConfig matches the standard retail windows.
var DefaultAgingConfig = AgingConfig{AgingWindowDays: 30, OldWindowDays: 7}

type AgingService interface {
	// Classify buckets the given batches as of a point in time. Every
	// batch lands in exactly one bucket.
	Classify(batches []models.Batch, asOf time.Time) *models.AgingReport

	// GetAgingReport classifies all batches that currently have stock.
	GetAgingReport() (*models.AgingReport, error)
}

type agingService struct {
	batchRepo repositories.BatchRepository
	config    AgingConfig
}

// NewAgingService creates an AgingService.
func NewAgingService(batchRepo repositories.BatchRepository, config AgingConfig) AgingService {
	if config.AgingWindowDays <= 0 {
		config.AgingWindowDays = DefaultAgingConfig.AgingWindowDays
	}
	if config.OldWindowDays <= 0 {
		config.OldWindowDays = DefaultAgingConfig.OldWindowDays
	}
	return &agingService{batchRepo: batchRepo, config: config}
}

func (s *agingService) Classify(batches []models.Batch, asOf time.Time) *models.AgingReport {
	report := &models.AgingReport{
		AsOf:    asOf.Format(time.RFC3339),
		Buckets: make(map[models.AgingBucket][]models.AgingEntry),
		Totals:  make(map[models.AgingBucket]int64),
	}
	for _, bucket := range []models.AgingBucket{models.BucketFresh, models.BucketAging, models.BucketOld, models.BucketExpired} {
		report.Buckets[bucket] = []models.AgingEntry{}
		report.Totals[bucket] = 0
	}

	for i := range batches {
		b := batches[i]
		if b.QuantityOnHand <= 0 {
			continue
		}
		entry := models.AgingEntry{Batch: b, Bucket: models.BucketFresh}
		if days, ok := b.DaysUntilExpiry(asOf); ok {
			d := days
			entry.DaysUntilExpiry = &d
			switch {
			case b.IsExpired(asOf):
				entry.Bucket = models.BucketExpired
			case days <= s.config.OldWindowDays:
				entry.Bucket = models.BucketOld
			case days <= s.config.AgingWindowDays:
				entry.Bucket = models.BucketAging
			}
		}
		report.Buckets[entry.Bucket] = append(report.Buckets[entry.Bucket], entry)
		report.Totals[entry.Bucket] += b.QuantityOnHand
	}
	return report
}

func (s *agingService) GetAgingReport() (*models.AgingReport, error) {
	batches, err := s.batchRepo.ListWithStock()
	if err != nil {
		return nil, err
	}
	return s.Classify(batches, time.Now()), nil
}
