package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pkruczek/spizarka-backend/pkg/config"
	"github.com/pkruczek/spizarka-backend/pkg/db"
	"github.com/pkruczek/spizarka-backend/pkg/db/models"
	"github.com/pkruczek/spizarka-backend/pkg/enums"
	pkgerrors "github.com/pkruczek/spizarka-backend/pkg/errors"
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
		&models.InventoryItem{},
		&models.InventoryHistory{},
	))
	return client
}

func newTestService(t *testing.T, client *db.Client) Service {
	t.Helper()
	svc, err := NewService(NewRepository(client.DB()), client, decimal.NewFromInt(5))
	require.NoError(t, err)
	return svc
}

func mustCreateProduct(t *testing.T, client *db.Client, name string) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:           name,
		NormalizedName: name,
		Unit:           "szt",
		IsActive:       true,
	}
	require.NoError(t, client.DB().Create(product).Error)
	return product
}

func requireLedgerMatchesStock(t *testing.T, svc Service, client *db.Client, productID uuid.UUID) {
	t.Helper()
	repo := NewRepository(client.DB())
	item, err := repo.GetItem(context.Background(), productID)
	require.NoError(t, err)
	require.NotNil(t, item)
	sum, err := repo.SumHistory(context.Background(), productID)
	require.NoError(t, err)
	require.True(t, item.Quantity.Equal(sum), "stock %s != ledger sum %s", item.Quantity, sum)
}

func TestAddCreatesItemAndLedgerEntry(t *testing.T) {
	client := newTestClient(t)
	svc := newTestService(t, client)
	product := mustCreateProduct(t, client, "mleko")
	receiptID := uuid.New()

	item, err := svc.Add(context.Background(), AddInput{
		ProductID: product.ID,
		Quantity:  decimal.NewFromInt(2),
		Unit:      "szt",
		Source:    "receipt",
		SourceID:  &receiptID,
	})
	require.NoError(t, err)
	require.True(t, item.Quantity.Equal(decimal.NewFromInt(2)))

	history, err := svc.History(context.Background(), product.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, enums.InventoryChangePurchase, history[0].ChangeType)
	require.Equal(t, "receipt", history[0].Source)
	require.Equal(t, receiptID, *history[0].SourceID)
	require.True(t, history[0].NewQuantity.Equal(decimal.NewFromInt(2)))

	requireLedgerMatchesStock(t, svc, client, product.ID)
}

func TestAddAccumulates(t *testing.T) {
	client := newTestClient(t)
	svc := newTestService(t, client)
	product := mustCreateProduct(t, client, "mleko")

	_, err := svc.Add(context.Background(), AddInput{ProductID: product.ID, Quantity: decimal.NewFromInt(2)})
	require.NoError(t, err)
	item, err := svc.Add(context.Background(), AddInput{ProductID: product.ID, Quantity: decimal.NewFromFloat(1.5)})
	require.NoError(t, err)
	require.True(t, item.Quantity.Equal(decimal.NewFromFloat(3.5)))

	requireLedgerMatchesStock(t, svc, client, product.ID)
}

func TestConsumeRefusesNegativeStock(t *testing.T) {
	client := newTestClient(t)
	svc := newTestService(t, client)
	product := mustCreateProduct(t, client, "mleko")

	_, err := svc.Add(context.Background(), AddInput{ProductID: product.ID, Quantity: decimal.NewFromInt(2)})
	require.NoError(t, err)

	_, err = svc.Consume(context.Background(), product.ID, decimal.NewFromInt(3), nil)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	// No mutation happened.
	repo := NewRepository(client.DB())
	item, err := repo.GetItem(context.Background(), product.ID)
	require.NoError(t, err)
	require.True(t, item.Quantity.Equal(decimal.NewFromInt(2)))

	history, err := svc.History(context.Background(), product.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestConsumeWritesNegativeLedgerEntry(t *testing.T) {
	client := newTestClient(t)
	svc := newTestService(t, client)
	product := mustCreateProduct(t, client, "mleko")

	_, err := svc.Add(context.Background(), AddInput{ProductID: product.ID, Quantity: decimal.NewFromInt(5)})
	require.NoError(t, err)

	item, err := svc.Consume(context.Background(), product.ID, decimal.NewFromInt(2), nil)
	require.NoError(t, err)
	require.True(t, item.Quantity.Equal(decimal.NewFromInt(3)))

	history, err := svc.History(context.Background(), product.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.True(t, history[0].Change.Equal(decimal.NewFromInt(-2)))
	require.True(t, history[0].NewQuantity.Equal(decimal.NewFromInt(3)))

	requireLedgerMatchesStock(t, svc, client, product.ID)
}

func TestConsumeUnknownProduct(t *testing.T) {
	client := newTestClient(t)
	svc := newTestService(t, client)

	_, err := svc.Consume(context.Background(), uuid.New(), decimal.NewFromInt(1), nil)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestAdjustSignedDelta(t *testing.T) {
	client := newTestClient(t)
	svc := newTestService(t, client)
	product := mustCreateProduct(t, client, "mleko")

	_, err := svc.Add(context.Background(), AddInput{ProductID: product.ID, Quantity: decimal.NewFromInt(4)})
	require.NoError(t, err)

	item, err := svc.Adjust(context.Background(), product.ID, decimal.NewFromInt(-1), nil)
	require.NoError(t, err)
	require.True(t, item.Quantity.Equal(decimal.NewFromInt(3)))

	history, err := svc.History(context.Background(), product.ID)
	require.NoError(t, err)
	require.True(t, history[0].NewQuantity.Equal(decimal.NewFromInt(3)))

	_, err = svc.Adjust(context.Background(), product.ID, decimal.NewFromInt(-10), nil)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	requireLedgerMatchesStock(t, svc, client, product.ID)
}

func TestLowStockAndSummary(t *testing.T) {
	client := newTestClient(t)
	svc := newTestService(t, client)
	scarce := mustCreateProduct(t, client, "mleko")
	plenty := mustCreateProduct(t, client, "cukier")

	_, err := svc.Add(context.Background(), AddInput{ProductID: scarce.ID, Quantity: decimal.NewFromInt(2)})
	require.NoError(t, err)
	_, err = svc.Add(context.Background(), AddInput{ProductID: plenty.ID, Quantity: decimal.NewFromInt(20)})
	require.NoError(t, err)

	low, err := svc.LowStock(context.Background())
	require.NoError(t, err)
	require.Len(t, low, 1)
	require.Equal(t, scarce.ID, low[0].ProductID)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalProducts)
	require.Equal(t, 1, summary.LowStockCount)
	require.True(t, summary.TotalQuantity.Equal(decimal.NewFromInt(22)))
}
