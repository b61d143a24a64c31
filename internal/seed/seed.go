// Package seed loads catalog fixtures.
package seed

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/merch-store/db"
	"github.com/xenking/merch-store/internal/domain/product"
)

// DefaultStock is assigned to products whose fixture omits stock.
const DefaultStock = 10

var gzipMagic = []byte{0x1f, 0x8b}

type productJSON struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"image_url"`
	Stock       *int            `json:"stock"`
}

// Default returns the built-in catalog.
func Default() ([]product.Product, error) {
	return Load(bytes.NewReader(db.Products))
}

// LoadFile reads a catalog from path. Gzip-compressed files are detected by
// their header.
func LoadFile(path string) ([]product.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open products file")
	}
	defer func() { _ = f.Close() }()

	return Load(f)
}

// Load decodes a JSON array of products, transparently decompressing gzip
// input.
func Load(r io.Reader) ([]product.Product, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "peek header")
	}

	var src io.Reader = br
	if bytes.Equal(head, gzipMagic) {
		zr, err := pgzip.NewReader(br)
		if err != nil {
			return nil, errors.Wrap(err, "open gzip")
		}
		defer func() { _ = zr.Close() }()
		src = zr
	}

	var raw []productJSON
	if err := json.NewDecoder(src).Decode(&raw); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}

	products := make([]product.Product, 0, len(raw))
	seen := make(map[int64]struct{}, len(raw))
	for i, p := range raw {
		if p.ID <= 0 {
			return nil, errors.Errorf("product #%d: id must be positive", i)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, errors.Errorf("product #%d: duplicate id %d", i, p.ID)
		}
		seen[p.ID] = struct{}{}
		if p.Name == "" {
			return nil, errors.Errorf("product %d: name is required", p.ID)
		}
		if p.Price.IsNegative() {
			return nil, errors.Errorf("product %d: negative price", p.ID)
		}

		stock := DefaultStock
		if p.Stock != nil {
			stock = *p.Stock
		}
		if stock < 0 {
			return nil, errors.Errorf("product %d: negative stock", p.ID)
		}

		products = append(products, product.Product{
			ID:          p.ID,
			Name:        p.Name,
			Category:    p.Category,
			Description: p.Description,
			Price:       p.Price,
			ImageURL:    p.ImageURL,
			Stock:       stock,
		})
	}
	return products, nil
}
