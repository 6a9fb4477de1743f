package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pkruczek/spizarka-backend/pkg/logger"
)

// ErrNoProducts marks parsed receipt data that contains no products. Parse
// itself never returns it; the pipeline raises it before matching.
var ErrNoProducts = errors.New("no products found in receipt text")

// Generator is the completion surface the parser needs from the LLM client.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Product is one parsed receipt line before matching.
type Product struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	Price      float64 `json:"price"`
	TotalPrice float64 `json:"total_price"`
	Unit       string  `json:"unit"`
}

// UnmarshalJSON tolerates amounts the model emits as strings, often with a
// Polish comma decimal, instead of numbers.
func (p *Product) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name       string          `json:"name"`
		Quantity   json.RawMessage `json:"quantity"`
		Price      json.RawMessage `json:"price"`
		TotalPrice json.RawMessage `json:"total_price"`
		Unit       string          `json:"unit"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Name = raw.Name
	p.Quantity = rawAmount(raw.Quantity)
	p.Price = rawAmount(raw.Price)
	p.TotalPrice = rawAmount(raw.TotalPrice)
	p.Unit = raw.Unit
	return nil
}

// Receipt is the structured result of parsing OCR text.
type Receipt struct {
	StoreName string    `json:"store_name"`
	Date      string    `json:"date"`
	Total     float64   `json:"total"`
	Currency  string    `json:"currency"`
	Products  []Product `json:"products"`
}

// UnmarshalJSON tolerates a string-typed total and a null date.
func (r *Receipt) UnmarshalJSON(data []byte) error {
	var raw struct {
		StoreName string          `json:"store_name"`
		Date      json.RawMessage `json:"date"`
		Total     json.RawMessage `json:"total"`
		Currency  string          `json:"currency"`
		Products  []Product       `json:"products"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.StoreName = raw.StoreName
	r.Date = rawString(raw.Date)
	r.Total = rawAmount(raw.Total)
	r.Currency = raw.Currency
	r.Products = raw.Products
	return nil
}

// rawAmount reads a JSON amount that may be a number, a quoted string or
// null. Unparseable values degrade to zero.
func rawAmount(raw json.RawMessage) float64 {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0
	}
	s = strings.Trim(s, `"`)
	return parseAmount(s)
}

func rawString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// Service turns raw OCR text into a structured receipt. The LLM does the
// heavy lifting; a regex fallback covers LLM outages.
type Service interface {
	Parse(ctx context.Context, rawText string) (*Receipt, error)
}

type service struct {
	llm  Generator
	logg *logger.Logger
}

// NewService constructs a parser service instance.
func NewService(llm Generator, logg *logger.Logger) (Service, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm generator required")
	}
	return &service{llm: llm, logg: logg}, nil
}

const promptTemplate = `Przeanalizuj poniższy tekst z paragonu sklepowego i wyodrębnij dane w formacie JSON.

Tekst paragonu:
%s

Zwróć TYLKO poprawny JSON w dokładnie tym formacie, bez żadnych dodatkowych komentarzy:
{
  "store_name": "nazwa sklepu",
  "date": "YYYY-MM-DD",
  "total": 0.00,
  "currency": "PLN",
  "products": [
    {
      "name": "nazwa produktu",
      "quantity": 1,
      "price": 0.00,
      "total_price": 0.00,
      "unit": "szt"
    }
  ]
}

Zasady:
- Ceny zapisuj z kropką dziesiętną (np. 3.50)
- Jeśli nie możesz odczytać daty, użyj null
- Pomiń linie, które nie są produktami (rabaty, podsumowania, numery kas)`

// jsonBlockRe pulls the first {...} block out of prose the model may add
// around the JSON despite instructions.
var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// Parse extracts a structured receipt from OCR text. It never fails: when
// the LLM call or its output is unusable, the regex fallback produces a
// best-effort receipt, possibly with an empty product list.
func (s *service) Parse(ctx context.Context, rawText string) (*Receipt, error) {
	if strings.TrimSpace(rawText) == "" {
		return &Receipt{Currency: "PLN"}, nil
	}

	receipt, err := s.parseWithLLM(ctx, rawText)
	if err != nil {
		if s.logg != nil {
			s.logg.Warn(ctx, fmt.Sprintf("llm parse failed, using fallback: %v", err))
		}
		receipt = parseWithRegex(rawText)
	}

	return validate(receipt), nil
}

func (s *service) parseWithLLM(ctx context.Context, rawText string) (*Receipt, error) {
	prompt := fmt.Sprintf(promptTemplate, rawText)

	completion, err := s.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	block := jsonBlockRe.FindString(completion)
	if block == "" {
		return nil, fmt.Errorf("no JSON object in llm response")
	}

	var receipt Receipt
	if err := json.Unmarshal([]byte(block), &receipt); err != nil {
		return nil, fmt.Errorf("decoding llm JSON: %w", err)
	}
	return &receipt, nil
}

var (
	knownStoreRe = regexp.MustCompile(`(?i)(biedronka|kaufland|carrefour|tesco|auchan|lidl|żabka)`)
	companyRe    = regexp.MustCompile(`(?m)^([A-ZŻŹĆĄŚĘŁÓŃ][\p{L}\s.-]+(?:sp\.\s*z\s*o\.o\.|S\.A\.))`)
	totalRe      = regexp.MustCompile(`(?i)(?:suma|razem|total|do zapłaty)[\s:]*(\d+[,.]?\d*)`)
	amountRe     = regexp.MustCompile(`(?i)(\d+[,.]?\d*)\s*(?:pln|zł)`)
	lineItemRe   = regexp.MustCompile(`(?m)^\s*([\p{L}][\p{L}\d\s%,.-]*?)\s+(\d+(?:[,.]\d+)?)\s*(?:x|\*)\s*(\d+[,.]\d{2})`)
)

// parseWithRegex scrapes the store, total and obvious product lines straight
// from the text. It is deliberately conservative: anything uncertain is
// dropped rather than guessed.
func parseWithRegex(rawText string) *Receipt {
	receipt := &Receipt{Currency: "PLN"}

	if m := knownStoreRe.FindString(rawText); m != "" {
		receipt.StoreName = titleCase(m)
	} else if m := companyRe.FindStringSubmatch(rawText); m != nil {
		receipt.StoreName = strings.TrimSpace(m[1])
	}

	if m := totalRe.FindStringSubmatch(rawText); m != nil {
		receipt.Total = parseAmount(m[1])
	} else if m := amountRe.FindStringSubmatch(rawText); m != nil {
		receipt.Total = parseAmount(m[1])
	}

	for _, m := range lineItemRe.FindAllStringSubmatch(rawText, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		qty := parseAmount(m[2])
		price := parseAmount(m[3])
		receipt.Products = append(receipt.Products, Product{
			Name:     name,
			Quantity: qty,
			Price:    price,
			Unit:     "szt",
		})
	}

	return receipt
}
