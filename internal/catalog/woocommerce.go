package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fjod/storefront-cart/internal/domain"
	"github.com/shopspring/decimal"
)

// WooProduct is the subset of a WooCommerce REST product the cart uses.
type WooProduct struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Type         string  `json:"type"`
	Price        string  `json:"price"`
	RegularPrice string  `json:"regular_price"`
	SalePrice    string  `json:"sale_price"`
	Variations   []int64 `json:"variations"`
}

type WooVariation struct {
	ID           int64  `json:"id"`
	Price        string `json:"price"`
	RegularPrice string `json:"regular_price"`
	SalePrice    string `json:"sale_price"`
}

type wooProduct struct {
	id    string
	price int64
}

func (p wooProduct) ID() string   { return p.id }
func (p wooProduct) Price() int64 { return p.price }

type wooVariant struct {
	id     string
	price  int64
	priced bool
}

func (v wooVariant) ID() string           { return v.id }
func (v wooVariant) Price() (int64, bool) { return v.price, v.priced }

// DefaultPriceDecimals is WooCommerce's default "Number of decimals" setting.
const DefaultPriceDecimals = 2

// AdaptWoo converts a WooCommerce product and its variations into a catalog
// item. decimals is the store's configured number of price decimals.
func AdaptWoo(p WooProduct, variations []WooVariation, decimals int) (Item, error) {
	price, ok, err := effectivePrice(decimals, p.Price, p.SalePrice, p.RegularPrice)
	if err != nil {
		return Item{}, fmt.Errorf("product %d: %w", p.ID, err)
	}
	if !ok {
		return Item{}, fmt.Errorf("product %d has no price", p.ID)
	}

	item := Item{
		Product:  wooProduct{id: strconv.FormatInt(p.ID, 10), price: price},
		Name:     p.Name,
		Variants: make(map[string]domain.Variant, len(variations)),
	}
	for _, v := range variations {
		vp, priced, err := effectivePrice(decimals, v.Price, v.SalePrice, v.RegularPrice)
		if err != nil {
			return Item{}, fmt.Errorf("variation %d: %w", v.ID, err)
		}
		id := strconv.FormatInt(v.ID, 10)
		item.Variants[id] = wooVariant{id: id, price: vp, priced: priced}
	}
	return item, nil
}

// effectivePrice picks the first non-empty of the candidates, in cents.
func effectivePrice(decimals int, candidates ...string) (int64, bool, error) {
	for _, c := range candidates {
		if strings.TrimSpace(c) == "" {
			continue
		}
		cents, err := ParsePrice(c, decimals)
		if err != nil {
			return 0, false, err
		}
		return cents, true, nil
	}
	return 0, false, nil
}

// ParsePrice reads a WooCommerce price string ("129.90", "129,90", "1 299,00 €")
// into cents. decimals is the store's number of price decimals: a last
// separator followed by 1 to decimals digits is the decimal mark, any other
// separator groups thousands. With three or more decimals "1.234" is read as
// 1.234, not 1234.
func ParsePrice(s string, decimals int) (int64, error) {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' || r == '-' {
			b.WriteRune(r)
		}
	}
	raw := b.String()
	if raw == "" {
		return 0, fmt.Errorf("invalid price %q", s)
	}

	if i := strings.LastIndexAny(raw, ".,"); i >= 0 {
		if frac := len(raw) - i - 1; frac >= 1 && frac <= decimals {
			raw = strings.NewReplacer(".", "", ",", "").Replace(raw[:i]) + "." + raw[i+1:]
		} else {
			raw = strings.NewReplacer(".", "", ",", "").Replace(raw)
		}
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid price %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("negative price %q", s)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}
