package domain

import "errors"

const (
	// DefaultVariant stands in for "no variant" when rendering line keys.
	DefaultVariant = "default"
	keySeparator   = "::"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrInvalidProduct  = errors.New("product must have an id and a non-negative price")
)

// Product is the capability the cart needs from any catalog product shape.
// Prices are in minor currency units (euro cents).
type Product interface {
	ID() string
	Price() int64
}

// Variant is an optional refinement of a product. Price reports false when the
// variant does not override the product price.
type Variant interface {
	ID() string
	Price() (int64, bool)
}

// LineItem is one (product, variant) row of a cart with its price snapshot.
// The JSON shape is the persisted layout.
type LineItem struct {
	ProductID string `json:"productId" bson:"product_id"`
	VariantID string `json:"variantId,omitempty" bson:"variant_id,omitempty"`
	Quantity  int    `json:"quantity" bson:"quantity"`
	UnitPrice int64  `json:"unitPrice" bson:"unit_price"`
}

func (li LineItem) Key() LineKey {
	return KeyOf(li.ProductID, li.VariantID)
}

func (li LineItem) Subtotal() int64 {
	return li.UnitPrice * int64(li.Quantity)
}

// LineKey identifies a line item. An empty VariantID means no variant, which
// is distinct from a variant named DefaultVariant.
type LineKey struct {
	ProductID string
	VariantID string
}

func KeyOf(productID, variantID string) LineKey {
	return LineKey{ProductID: productID, VariantID: variantID}
}

// String renders the key as productId::variantId, with DefaultVariant for no
// variant. It is for logs only and is not unique for ids containing "::".
func (k LineKey) String() string {
	v := k.VariantID
	if v == "" {
		v = DefaultVariant
	}
	return k.ProductID + keySeparator + v
}
