package helpers

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

// LineRequest is one requested product/quantity pair.
type LineRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// MergeLines validates requested lines and folds duplicate products into one
// line, keeping first-seen order.
func MergeLines(lines []LineRequest) ([]LineRequest, error) {
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}

	index := make(map[uuid.UUID]int, len(lines))
	merged := make([]LineRequest, 0, len(lines))
	for i, line := range lines {
		if line.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: product id is required", i))
		}
		if line.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d]: quantity must be at least 1", i)).
				WithDetails(map[string]any{"product_id": line.ProductID, "quantity": line.Quantity})
		}
		if pos, ok := index[line.ProductID]; ok {
			merged[pos].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged, nil
}

// ValidateProduct reports PRODUCT_NOT_FOUND or PRODUCT_UNAVAILABLE for a
// requested product.
func ValidateProduct(productID uuid.UUID, product *models.Product) error {
	if product == nil {
		return pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found").
			WithDetails(map[string]any{"product_id": productID})
	}
	if !product.Status.Purchasable() {
		return pkgerrors.New(pkgerrors.CodeProductUnavailable, "product is not available for purchase").
			WithDetails(map[string]any{"product_id": productID, "status": product.Status})
	}
	return nil
}

// Shortages compares requested quantities with the availability read before
// the transaction. The transactional reservation still has the final word.
func Shortages(lines []LineRequest, products map[uuid.UUID]*models.Product) []inventory.Shortage {
	var out []inventory.Shortage
	for _, line := range lines {
		product := products[line.ProductID]
		if product == nil || !product.TracksInventory {
			continue
		}
		if available := product.Available(); available < line.Quantity {
			out = append(out, inventory.Shortage{
				ProductID: line.ProductID,
				Requested: line.Quantity,
				Available: max(available, 0),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID.String() < out[j].ProductID.String() })
	return out
}
