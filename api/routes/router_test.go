package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/pkruczek/spizarka-backend/internal/inventory"
	"github.com/pkruczek/spizarka-backend/internal/receipts"
	"github.com/pkruczek/spizarka-backend/pkg/config"
	"github.com/pkruczek/spizarka-backend/pkg/db"
	"github.com/pkruczek/spizarka-backend/pkg/db/models"
	"github.com/pkruczek/spizarka-backend/pkg/enums"
)

type fakeQueue struct{}

func (fakeQueue) Enqueue(context.Context, uuid.UUID, int) error { return nil }

type fakeStore struct{}

func (fakeStore) Save(r io.Reader, _ string) (string, error) {
	_, _ = io.Copy(io.Discard, r)
	return "uploads/" + uuid.NewString() + ".jpg", nil
}

func (fakeStore) Remove(string) error { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *db.Client) {
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
		&models.Receipt{},
		&models.ReceiptLineItem{},
		&models.InventoryItem{},
		&models.InventoryHistory{},
	))

	inv, err := inventory.NewService(inventory.NewRepository(client.DB()), client, decimal.NewFromInt(5))
	require.NoError(t, err)

	svc, err := receipts.NewService(receipts.NewRepository(client.DB()), client, fakeStore{}, fakeQueue{}, inv, nil)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Storage.MaxUploadMB = 5

	srv := httptest.NewServer(NewRouter(cfg, nil, svc, inv, nil))
	t.Cleanup(srv.Close)
	return srv, client
}

func uploadReceipt(t *testing.T, srv *httptest.Server) uuid.UUID {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", "receipt.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("not a real jpeg"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	resp, err := http.Post(srv.URL+"/api/v1/receipts/", writer.FormDataContentType(), &body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var envelope struct {
		Data struct {
			ID       uuid.UUID `json:"id"`
			Status   string    `json:"status"`
			Progress int       `json:"progress"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, "pending", envelope.Data.Status)
	require.Equal(t, 10, envelope.Data.Progress)
	return envelope.Data.ID
}

func TestUploadAndPollStatus(t *testing.T) {
	srv, _ := newTestServer(t)
	id := uploadReceipt(t, srv)

	resp, err := http.Get(srv.URL + "/api/v1/receipts/" + id.String() + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var envelope struct {
		Data struct {
			Status      string `json:"status"`
			CurrentStep string `json:"current_step"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, "pending", envelope.Data.Status)
	require.Equal(t, "uploaded", envelope.Data.CurrentStep)
}

func TestConfirmRequiresReviewPending(t *testing.T) {
	srv, _ := newTestServer(t)
	id := uploadReceipt(t, srv)

	payload := bytes.NewBufferString(`{"items":[{"name":"Mleko","quantity":1}]}`)
	resp, err := http.Post(srv.URL+"/api/v1/receipts/"+id.String()+"/confirm", "application/json", payload)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Equal(t, "STATE_CONFLICT", envelope.Error.Code)
}

func TestConfirmFlowPostsInventory(t *testing.T) {
	srv, client := newTestServer(t)
	id := uploadReceipt(t, srv)

	product := &models.Product{Name: "mleko", NormalizedName: "mleko", Unit: "szt", IsActive: true}
	require.NoError(t, client.DB().Create(product).Error)
	require.NoError(t, client.DB().Model(&models.Receipt{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       enums.ReceiptStatusReviewPending,
			"current_step": enums.StepReviewPending,
		}).Error)

	confirm := map[string]any{
		"items": []map[string]any{{
			"product_id": product.ID,
			"name":       "Mleko 2,5%",
			"quantity":   2,
			"unit_price": 3.50,
		}},
	}
	body, err := json.Marshal(confirm)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/api/v1/receipts/"+id.String()+"/confirm", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	invResp, err := http.Get(srv.URL + "/api/v1/inventory/")
	require.NoError(t, err)
	defer invResp.Body.Close()
	require.Equal(t, http.StatusOK, invResp.StatusCode)

	var envelope struct {
		Data []struct {
			ProductID uuid.UUID       `json:"product_id"`
			Quantity  decimal.Decimal `json:"quantity"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(invResp.Body).Decode(&envelope))
	require.Len(t, envelope.Data, 1)
	require.Equal(t, product.ID, envelope.Data[0].ProductID)
	require.True(t, envelope.Data[0].Quantity.Equal(decimal.NewFromInt(2)))
}

func TestUnknownReceiptReturns404(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/receipts/" + uuid.NewString())
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthLive(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health/live")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "test", resp.Header.Get("X-Spizarka-Env"))
}
