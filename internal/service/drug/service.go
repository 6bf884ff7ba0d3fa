package drug

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository"
	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
	"github.com/jwalitptl/medvault-api/pkg/logger"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
	"github.com/jwalitptl/medvault-api/pkg/openfda"
)

const connectionFailureMessage = "Could not connect to the server. Please check your internet connection."

// LabelSource fetches drug labels by brand name.
type LabelSource interface {
	LabelByBrandName(ctx context.Context, term string) (*openfda.Label, error)
}

type DrugService interface {
	Lookup(ctx context.Context, name string) (*model.DrugInfo, error)
	KnownDrugs(ctx context.Context) ([]string, error)
	AddMapping(ctx context.Context, mapping model.DrugMapping) error
}

type Service struct {
	mappings repository.DrugMapRepository
	labels   LabelSource
	cache    *cache.Cache
	log      *logger.Logger
	metrics  *metrics.Metrics
}

// cachedMiss records a lookup that found nothing, so it is not retried
// until the entry expires.
type cachedMiss struct{}

func NewService(mappings repository.DrugMapRepository, labels LabelSource, cacheTTL time.Duration, log *logger.Logger, m *metrics.Metrics) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		mappings: mappings,
		labels:   labels,
		cache:    cache.New(cacheTTL, 2*cacheTTL),
		log:      log,
		metrics:  m,
	}
}

// Lookup resolves name through the drug map and fetches its label. A label
// that cannot be shown is reported as LookupUnavailable with a message meant
// for the user.
func (s *Service) Lookup(ctx context.Context, name string) (*model.DrugInfo, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == model.DrugPlaceholder {
		return nil, apperrors.BadRequest("drug name is required", nil)
	}

	key := strings.ToLower(name)
	if cached, found := s.cache.Get(key); found {
		s.count("cache_hit")
		switch v := cached.(type) {
		case *model.DrugInfo:
			out := *v
			return &out, nil
		case cachedMiss:
			return nil, notFound(name)
		}
	}

	searchName, err := s.resolve(ctx, name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	label, err := s.labels.LabelByBrandName(ctx, searchName)
	if s.metrics != nil {
		s.metrics.DrugLookupLatency.Observe(time.Since(start).Seconds())
	}

	switch {
	case errors.Is(err, openfda.ErrNotFound):
		s.count("not_found")
		s.cache.SetDefault(key, cachedMiss{})
		return nil, notFound(name)
	case err != nil:
		s.count("unavailable")
		s.log.WithContext(ctx).Warn("drug lookup failed", "drug", name, "search_name", searchName, "error", err.Error())
		return nil, apperrors.LookupUnavailable(connectionFailureMessage, err)
	}

	info := &model.DrugInfo{
		Name:             name,
		SearchName:       searchName,
		Purpose:          first(label.Purpose),
		Warnings:         first(label.Warnings),
		ActiveIngredient: first(label.ActiveIngredient),
	}
	s.count("found")
	s.cache.SetDefault(key, info)

	out := *info
	return &out, nil
}

// KnownDrugs lists the local names of the drug map, capitalized and sorted,
// for the medication picker.
func (s *Service) KnownDrugs(ctx context.Context) ([]string, error) {
	mappings, err := s.mappings.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list drug map: %w", err)
	}

	names := make([]string, 0, len(mappings))
	for _, m := range mappings {
		if m.LocalName != "" {
			names = append(names, capitalize(m.LocalName))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *Service) AddMapping(ctx context.Context, mapping model.DrugMapping) error {
	mapping.LocalName = strings.TrimSpace(mapping.LocalName)
	mapping.SearchName = strings.TrimSpace(mapping.SearchName)
	if mapping.LocalName == "" || mapping.SearchName == "" {
		return apperrors.BadRequest("local and search names are required", nil)
	}

	if err := s.mappings.Put(ctx, mapping); err != nil {
		return fmt.Errorf("failed to save drug mapping: %w", err)
	}
	s.cache.Delete(strings.ToLower(mapping.LocalName))
	return nil
}

func (s *Service) resolve(ctx context.Context, name string) (string, error) {
	mappings, err := s.mappings.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list drug map: %w", err)
	}
	for _, m := range mappings {
		if strings.EqualFold(m.LocalName, name) {
			return m.SearchName, nil
		}
	}
	return name, nil
}

func (s *Service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.DrugLookups.WithLabelValues(outcome).Inc()
	}
}

func notFound(name string) error {
	return apperrors.LookupUnavailable(fmt.Sprintf("No information found for '%s'.", name), openfda.ErrNotFound)
}

func first(items []string) string {
	if len(items) == 0 || strings.TrimSpace(items[0]) == "" {
		return model.NotAvailable
	}
	return items[0]
}

// capitalize upper-cases the first letter and lower-cases the rest.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
