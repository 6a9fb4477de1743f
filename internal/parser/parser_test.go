package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeGenerator struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.response, f.err
}

const sampleOCRText = `BIEDRONKA
ul. Polna 12, Warszawa
Mleko 2,5%  2 x 3,50  7,00
Chleb wiejski  1 x 4,20  4,20
SUMA: 11,20 PLN`

func TestParseFromLLMJSON(t *testing.T) {
	gen := &fakeGenerator{response: `Oto dane z paragonu:
{
  "store_name": "Biedronka",
  "date": "2026-08-20",
  "total": 11.20,
  "currency": "PLN",
  "products": [
    {"name": "Mleko 2,5%", "quantity": 2, "price": 3.50, "total_price": 7.00, "unit": "szt"},
    {"name": "Chleb wiejski", "quantity": 1, "price": 4.20, "total_price": 4.20, "unit": "szt"}
  ]
}
Mam nadzieję, że pomogłem!`}

	svc, err := NewService(gen, nil)
	require.NoError(t, err)

	receipt, err := svc.Parse(context.Background(), sampleOCRText)
	require.NoError(t, err)
	require.Equal(t, "Biedronka", receipt.StoreName)
	require.Equal(t, "2026-08-20", receipt.Date)
	require.InDelta(t, 11.20, receipt.Total, 1e-9)
	require.Equal(t, "PLN", receipt.Currency)
	require.Len(t, receipt.Products, 2)
	require.Equal(t, "Mleko 2,5%", receipt.Products[0].Name)

	require.Len(t, gen.prompts, 1)
	require.Contains(t, gen.prompts[0], sampleOCRText)
}

func TestParseKeepsSuppliedLineTotal(t *testing.T) {
	// A line total below quantity times price usually means a discount.
	gen := &fakeGenerator{response: `{
  "store_name": "Lidl",
  "total": 10.50,
  "currency": "PLN",
  "products": [
    {"name": "Jogurt", "quantity": 3, "price": 2.50, "total_price": 6.00, "unit": "szt"}
  ]
}`}

	svc, err := NewService(gen, nil)
	require.NoError(t, err)

	receipt, err := svc.Parse(context.Background(), "Jogurt 3 x 2,50")
	require.NoError(t, err)
	require.InDelta(t, 6.00, receipt.Products[0].TotalPrice, 1e-9)
}

func TestParseComputesMissingLineTotal(t *testing.T) {
	gen := &fakeGenerator{response: `{
  "store_name": "Lidl",
  "total": 10.50,
  "currency": "PLN",
  "products": [
    {"name": "Jogurt", "quantity": 3, "price": 2.50, "unit": "szt"}
  ]
}`}

	svc, err := NewService(gen, nil)
	require.NoError(t, err)

	receipt, err := svc.Parse(context.Background(), "Jogurt 3 x 2,50")
	require.NoError(t, err)
	require.InDelta(t, 7.50, receipt.Products[0].TotalPrice, 1e-9)
}

func TestParseAcceptsStringAmounts(t *testing.T) {
	// Models sometimes quote amounts and keep the Polish comma decimal.
	gen := &fakeGenerator{response: `{
  "store_name": "Żabka",
  "date": null,
  "total": "29,99",
  "currency": "PLN",
  "products": [
    {"name": "Kawa", "quantity": "2", "price": "15,00", "total_price": "29,99", "unit": "szt"}
  ]
}`}

	svc, err := NewService(gen, nil)
	require.NoError(t, err)

	receipt, err := svc.Parse(context.Background(), "Kawa 2 x 15,00")
	require.NoError(t, err)
	require.InDelta(t, 29.99, receipt.Total, 1e-9)
	require.Empty(t, receipt.Date)
	require.Len(t, receipt.Products, 1)
	require.InDelta(t, 2.0, receipt.Products[0].Quantity, 1e-9)
	require.InDelta(t, 15.00, receipt.Products[0].Price, 1e-9)
	require.InDelta(t, 29.99, receipt.Products[0].TotalPrice, 1e-9)
}

func TestParseDefaultsAndDropsNameless(t *testing.T) {
	gen := &fakeGenerator{response: `{
  "store_name": "",
  "date": "wczoraj",
  "total": -3,
  "currency": "",
  "products": [
    {"name": "  ", "quantity": 1, "price": 2.00},
    {"name": "Kawa", "quantity": 0, "price": 12.99, "unit": ""}
  ]
}`}

	svc, err := NewService(gen, nil)
	require.NoError(t, err)

	receipt, err := svc.Parse(context.Background(), "Kawa 12,99")
	require.NoError(t, err)
	require.Empty(t, receipt.Date)
	require.Zero(t, receipt.Total)
	require.Equal(t, "PLN", receipt.Currency)
	require.Len(t, receipt.Products, 1)
	require.Equal(t, "Kawa", receipt.Products[0].Name)
	require.InDelta(t, 1.0, receipt.Products[0].Quantity, 1e-9)
	require.Equal(t, "szt", receipt.Products[0].Unit)
}

func TestParseFallsBackToRegexOnLLMError(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("connection refused")}

	svc, err := NewService(gen, nil)
	require.NoError(t, err)

	receipt, err := svc.Parse(context.Background(), sampleOCRText)
	require.NoError(t, err)
	require.Equal(t, "Biedronka", receipt.StoreName)
	require.InDelta(t, 11.20, receipt.Total, 1e-9)
	require.NotEmpty(t, receipt.Products)
	require.Equal(t, "Mleko 2,5%", receipt.Products[0].Name)
	require.InDelta(t, 7.00, receipt.Products[0].TotalPrice, 1e-9)
}

func TestParseFallsBackOnProseWithoutJSON(t *testing.T) {
	gen := &fakeGenerator{response: "Niestety nie mogę przetworzyć tego paragonu."}

	svc, err := NewService(gen, nil)
	require.NoError(t, err)

	receipt, err := svc.Parse(context.Background(), sampleOCRText)
	require.NoError(t, err)
	require.NotEmpty(t, receipt.Products)
}

func TestParseNoProductsIsNotAnError(t *testing.T) {
	gen := &fakeGenerator{response: `{"store_name": "Lidl", "total": 0, "products": []}`}

	svc, err := NewService(gen, nil)
	require.NoError(t, err)

	receipt, err := svc.Parse(context.Background(), "PARAGON FISKALNY\nSUMA 0,00")
	require.NoError(t, err)
	require.Equal(t, "Lidl", receipt.StoreName)
	require.Empty(t, receipt.Products)
}

func TestParseEmptyText(t *testing.T) {
	gen := &fakeGenerator{}
	svc, err := NewService(gen, nil)
	require.NoError(t, err)

	receipt, err := svc.Parse(context.Background(), "   ")
	require.NoError(t, err)
	require.Empty(t, receipt.Products)
	require.Equal(t, "PLN", receipt.Currency)
	require.Empty(t, gen.prompts)
}

func TestParseAmountCommaDecimal(t *testing.T) {
	require.InDelta(t, 29.99, parseAmount("29,99"), 1e-9)
	require.InDelta(t, 29.99, parseAmount("29.99"), 1e-9)
	require.Zero(t, parseAmount("abc"))
}
