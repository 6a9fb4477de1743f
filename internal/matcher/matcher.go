package matcher

import (
	"context"
	"fmt"

	"github.com/agnivade/levenshtein"

	"github.com/pkruczek/spizarka-backend/internal/catalog"
	"github.com/pkruczek/spizarka-backend/pkg/config"
	"github.com/pkruczek/spizarka-backend/pkg/db"
	"github.com/pkruczek/spizarka-backend/pkg/db/models"
	"github.com/pkruczek/spizarka-backend/pkg/enums"
	"github.com/pkruczek/spizarka-backend/pkg/logger"
)

// Match is the outcome of linking one receipt name to a catalog product.
type Match struct {
	Product        *models.Product
	NormalizedName string
	Type           enums.MatchType
	Confidence     float64
}

// Confidence assigned per match path. Fuzzy matches carry their similarity
// score instead.
const (
	exactConfidence    = 1.0
	aliasConfidence    = 0.9
	createdConfidence  = 0.5
	fallbackConfidence = 0.1
)

// Service resolves receipt product names against the catalog.
type Service interface {
	Match(ctx context.Context, rawName string) (*Match, error)
	BatchMatch(ctx context.Context, rawNames []string) ([]Match, error)
}

type service struct {
	repo     *catalog.Repository
	dbClient *db.Client
	cfg      config.MatcherConfig
	logg     *logger.Logger
}

// NewService constructs a matcher service instance.
func NewService(repo *catalog.Repository, dbClient *db.Client, cfg config.MatcherConfig, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	return &service{repo: repo, dbClient: dbClient, cfg: cfg, logg: logg}, nil
}

// Match resolves a single name through the exact, alias, fuzzy and
// auto-create tiers, in that order.
func (s *service) Match(ctx context.Context, rawName string) (*Match, error) {
	normalized := Normalize(rawName)
	if normalized == "" {
		return nil, fmt.Errorf("product name %q normalizes to empty", rawName)
	}

	// Tier 1: exact normalized name.
	product, err := s.repo.FindByNormalizedName(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("exact lookup: %w", err)
	}
	if product != nil {
		return &Match{Product: product, NormalizedName: normalized, Type: enums.MatchTypeExact, Confidence: exactConfidence}, nil
	}

	// Tier 2: learned alias.
	product, err = s.repo.FindByAlias(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("alias lookup: %w", err)
	}
	if product != nil {
		if err := s.repo.UpsertAlias(ctx, product.ID, normalized); err != nil {
			return nil, fmt.Errorf("bumping alias: %w", err)
		}
		return &Match{Product: product, NormalizedName: normalized, Type: enums.MatchTypeAlias, Confidence: aliasConfidence}, nil
	}

	// Tier 3: fuzzy over active products.
	candidate, score, err := s.bestFuzzyCandidate(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("fuzzy lookup: %w", err)
	}
	if candidate != nil && score >= s.cfg.FuzzyThreshold {
		// Learn the alias so the next receipt skips fuzzy scoring.
		if err := s.repo.UpsertAlias(ctx, candidate.ID, normalized); err != nil {
			return nil, fmt.Errorf("learning alias: %w", err)
		}
		return &Match{Product: candidate, NormalizedName: normalized, Type: enums.MatchTypeFuzzy, Confidence: score}, nil
	}

	// Tier 4: auto-create a ghost product.
	if !s.cfg.AutoCreateProducts {
		return nil, fmt.Errorf("no product matched %q", rawName)
	}
	ghost, err := s.createGhost(ctx, rawName, normalized)
	if err != nil {
		return nil, fmt.Errorf("creating ghost product: %w", err)
	}
	return &Match{Product: ghost, NormalizedName: normalized, Type: enums.MatchTypeCreated, Confidence: createdConfidence}, nil
}

// BatchMatch resolves every name, always returning one match per input. A
// failure on one item degrades that item to a low-confidence ghost instead of
// failing the batch.
func (s *service) BatchMatch(ctx context.Context, rawNames []string) ([]Match, error) {
	matches := make([]Match, 0, len(rawNames))
	for _, rawName := range rawNames {
		m, err := s.Match(ctx, rawName)
		if err == nil {
			matches = append(matches, *m)
			continue
		}
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("match failed for %q, falling back to ghost: %v", rawName, err))
		}

		normalized := Normalize(rawName)
		if normalized == "" {
			normalized = "nieznany produkt"
		}
		ghost, ghostErr := s.createGhost(ctx, rawName, normalized)
		if ghostErr != nil {
			return nil, fmt.Errorf("fallback ghost for %q: %w", rawName, ghostErr)
		}
		matches = append(matches, Match{
			Product:        ghost,
			NormalizedName: normalized,
			Type:           enums.MatchTypeCreated,
			Confidence:     fallbackConfidence,
		})
	}
	return matches, nil
}

func (s *service) bestFuzzyCandidate(ctx context.Context, normalized string) (*models.Product, float64, error) {
	products, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, 0, err
	}

	var best *models.Product
	bestScore := 0.0
	for i := range products {
		score := similarity(normalized, products[i].NormalizedName)
		if score > bestScore {
			best = &products[i]
			bestScore = score
		}
	}
	return best, bestScore, nil
}

func (s *service) createGhost(ctx context.Context, rawName, normalized string) (*models.Product, error) {
	// An earlier receipt may have created the same ghost already; ghosts are
	// inactive, so the match tiers never see them.
	existing, err := s.repo.FindAnyByNormalizedName(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	category, err := s.repo.GetOrCreateCategory(ctx, CategoryFor(normalized))
	if err != nil {
		return nil, err
	}

	ghost, err := s.repo.CreateGhost(ctx, rawName, normalized, "szt", &category.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return s.repo.FindAnyByNormalizedName(ctx, normalized)
		}
		return nil, err
	}
	return ghost, nil
}

// similarity maps Levenshtein distance onto [0, 1].
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len([]rune(a)), len([]rune(b))
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(longest)
}
