package lookup

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/mcavicchiaUADE/sepa-app/models"
	"github.com/mcavicchiaUADE/sepa-app/pkg/cache"
)

var (
	// ErrNotFound means no merchant carries the product code.
	ErrNotFound = errors.New("product not found")
	// ErrNotReady means an ingestion is running and the store must not be read.
	ErrNotReady = errors.New("listing store not ready")
)

// carrefourID is the merchant whose variant names are published without the chain name.
const carrefourID = 10

// Finder is the read side of the listing store.
type Finder interface {
	FindByCode(ctx context.Context, code string) ([]models.ListingMatch, error)
	SearchByDescription(ctx context.Context, term string, limit int) ([]models.ProductSummary, error)
}

// Cache stores lookup responses per ingestion run and reports which run is served.
type Cache interface {
	ReadyRun(ctx context.Context) (string, error)
	GetProduct(ctx context.Context, runID, code string) (*models.ProductResponse, error)
	SetProduct(ctx context.Context, runID, code string, resp *models.ProductResponse, ttl time.Duration) error
}

// Service answers product lookups, through the cache when one is configured.
type Service struct {
	finder Finder
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewService builds a Service. c may be nil, which disables caching and
// readiness checks.
func NewService(finder Finder, c Cache, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{finder: finder, cache: c, ttl: ttl, logger: logger}
}

// Product returns every merchant offer for code.
func (s *Service) Product(ctx context.Context, code string) (*models.ProductResponse, error) {
	runID, err := s.readyRun(ctx)
	if err != nil {
		return nil, err
	}

	if runID != "" {
		resp, err := s.cache.GetProduct(ctx, runID, code)
		if err == nil {
			return resp, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("cache read failed, falling back to DB", zap.String("code", code), zap.Error(err))
		}
	}

	matches, err := s.finder.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, ErrNotFound
	}
	resp := BuildResponse(matches)

	if runID != "" {
		if err := s.cache.SetProduct(ctx, runID, code, resp, s.ttl); err != nil {
			s.logger.Warn("failed to populate cache", zap.String("code", code), zap.Error(err))
		}
	}
	return resp, nil
}

// Search returns products whose description contains term.
func (s *Service) Search(ctx context.Context, term string, limit int) ([]models.ProductSummary, error) {
	if _, err := s.readyRun(ctx); err != nil {
		return nil, err
	}
	return s.finder.SearchByDescription(ctx, term, limit)
}

// readyRun returns "" when no cache is configured.
func (s *Service) readyRun(ctx context.Context) (string, error) {
	if s.cache == nil {
		return "", nil
	}
	runID, err := s.cache.ReadyRun(ctx)
	if err != nil {
		return "", fmt.Errorf("check readiness: %w", err)
	}
	if runID == "" {
		return "", ErrNotReady
	}
	return runID, nil
}

// BuildResponse shapes the rows for one product code. matches must not be empty.
func BuildResponse(matches []models.ListingMatch) *models.ProductResponse {
	first := matches[0]
	resp := &models.ProductResponse{
		ProductCode: first.ProductCode,
		Name:        first.Description,
		Brand:       first.Brand.String,
		Merchants:   make([]models.MerchantOffer, 0, len(matches)),
	}
	for _, m := range matches {
		resp.Merchants = append(resp.Merchants, models.MerchantOffer{
			MerchantID: strconv.Itoa(m.MerchantID),
			VariantID:  strconv.Itoa(m.VariantID),
			Name:       MerchantName(m),
			Price:      FormatPrice(m.Price),
		})
	}
	return resp
}

// MerchantName prefers the variant's display name over the legal name.
func MerchantName(m models.ListingMatch) string {
	name := m.DisplayName.String
	if name == "" {
		name = m.LegalName.String
	}
	if m.MerchantID == carrefourID && (name == "Express" || name == "Market") {
		name = "Carrefour " + name
	}
	return name
}

// FormatPrice renders a price rounded to whole pesos, e.g. "$1200".
func FormatPrice(p float64) string {
	return fmt.Sprintf("$%.0f", p)
}
