package matcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pkruczek/spizarka-backend/internal/catalog"
	"github.com/pkruczek/spizarka-backend/pkg/config"
	"github.com/pkruczek/spizarka-backend/pkg/db"
	"github.com/pkruczek/spizarka-backend/pkg/db/models"
	"github.com/pkruczek/spizarka-backend/pkg/enums"
)

func newTestClient(t *testing.T) *db.Client {
	t.Helper()
	client, err := db.New(context.Background(), config.DBConfig{
		Driver: "sqlite",
		DSN:    "file::memory:",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.DB().AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.ProductAlias{},
	))
	return client
}

func newTestService(t *testing.T, client *db.Client) Service {
	t.Helper()
	svc, err := NewService(catalog.NewRepository(client.DB()), client, config.MatcherConfig{
		FuzzyThreshold:     0.75,
		AutoCreateProducts: true,
	}, nil)
	require.NoError(t, err)
	return svc
}

func mustCreateProduct(t *testing.T, client *db.Client, name string) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:           name,
		NormalizedName: Normalize(name),
		Unit:           "szt",
		IsActive:       true,
	}
	require.NoError(t, client.DB().Create(product).Error)
	return product
}

func TestMatchExact(t *testing.T) {
	client := newTestClient(t)
	svc := newTestService(t, client)
	product := mustCreateProduct(t, client, "Mleko")

	m, err := svc.Match(context.Background(), "Tesco Mleko 1L")
	require.NoError(t, err)
	require.Equal(t, product.ID, m.Product.ID)
	require.Equal(t, enums.MatchTypeExact, m.Type)
	require.InDelta(t, 1.0, m.Confidence, 1e-9)
}

func TestMatchFuzzyLearnsAlias(t *testing.T) {
	client := newTestClient(t)
	svc := newTestService(t, client)
	product := mustCreateProduct(t, client, "Mleko wiejskie")

	m, err := svc.Match(context.Background(), "mleko wiejski")
	require.NoError(t, err)
	require.Equal(t, product.ID, m.Product.ID)
	require.Equal(t, enums.MatchTypeFuzzy, m.Type)
	require.GreaterOrEqual(t, m.Confidence, 0.75)
	require.Less(t, m.Confidence, 1.0)

	// Next time the learned alias short-circuits fuzzy scoring.
	m2, err := svc.Match(context.Background(), "mleko wiejski")
	require.NoError(t, err)
	require.Equal(t, product.ID, m2.Product.ID)
	require.Equal(t, enums.MatchTypeAlias, m2.Type)
	require.InDelta(t, 0.9, m2.Confidence, 1e-9)

	var alias models.ProductAlias
	require.NoError(t, client.DB().Where("alias = ?", "mleko wiejski").First(&alias).Error)
	require.Equal(t, 2, alias.HitCount)
	require.Equal(t, enums.AliasStatusUnverified, alias.Status)
}

func TestMatchCreatesGhostBelowThreshold(t *testing.T) {
	client := newTestClient(t)
	svc := newTestService(t, client)
	mustCreateProduct(t, client, "Mleko")

	m, err := svc.Match(context.Background(), "Proszek do prania")
	require.NoError(t, err)
	require.Equal(t, enums.MatchTypeCreated, m.Type)
	require.InDelta(t, 0.5, m.Confidence, 1e-9)
	require.True(t, m.Product.IsGhost)
	require.False(t, m.Product.IsActive)

	var category models.Category
	require.NoError(t, client.DB().First(&category, "id = ?", m.Product.CategoryID).Error)
	require.Equal(t, "Artykuły Chemiczne", category.Name)
}

func TestMatchGhostReusedOnSecondReceipt(t *testing.T) {
	client := newTestClient(t)
	svc := newTestService(t, client)

	first, err := svc.Match(context.Background(), "Chrupki kukurydziane")
	require.NoError(t, err)
	require.Equal(t, enums.MatchTypeCreated, first.Type)

	// The inactive ghost stays out of the match tiers; the create path
	// dedupes onto it instead of inserting a twin.
	second, err := svc.Match(context.Background(), "Chrupki kukurydziane")
	require.NoError(t, err)
	require.Equal(t, enums.MatchTypeCreated, second.Type)
	require.Equal(t, first.Product.ID, second.Product.ID)

	var count int64
	require.NoError(t, client.DB().Model(&models.Product{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestBatchMatchReturnsOneMatchPerInput(t *testing.T) {
	client := newTestClient(t)
	svc := newTestService(t, client)
	mustCreateProduct(t, client, "Mleko")
	mustCreateProduct(t, client, "Chleb")

	names := []string{"Mleko 1L", "Chleb 500g", "Pasta do zębów"}
	matches, err := svc.BatchMatch(context.Background(), names)
	require.NoError(t, err)
	require.Len(t, matches, len(names))
	require.Equal(t, enums.MatchTypeExact, matches[0].Type)
	require.Equal(t, enums.MatchTypeExact, matches[1].Type)
	require.Equal(t, enums.MatchTypeCreated, matches[2].Type)
}

func TestUpsertAliasScopedPerProduct(t *testing.T) {
	client := newTestClient(t)
	repo := catalog.NewRepository(client.DB())
	mleko := mustCreateProduct(t, client, "Mleko")
	chleb := mustCreateProduct(t, client, "Chleb")

	// The same alias text on two products makes two rows; a repeat only
	// bumps the row of its own product.
	require.NoError(t, repo.UpsertAlias(context.Background(), mleko.ID, "mleko uht"))
	require.NoError(t, repo.UpsertAlias(context.Background(), chleb.ID, "mleko uht"))
	require.NoError(t, repo.UpsertAlias(context.Background(), chleb.ID, "mleko uht"))

	var aliases []models.ProductAlias
	require.NoError(t, client.DB().Order("hit_count desc").Find(&aliases).Error)
	require.Len(t, aliases, 2)
	require.Equal(t, chleb.ID, aliases[0].ProductID)
	require.Equal(t, 2, aliases[0].HitCount)
	require.Equal(t, 1, aliases[1].HitCount)
}

func TestSimilarity(t *testing.T) {
	require.InDelta(t, 1.0, similarity("mleko", "mleko"), 1e-9)
	require.InDelta(t, 0.8, similarity("mleko", "mleka"), 1e-9)
	require.Less(t, similarity("mleko", "proszek"), 0.5)
}
