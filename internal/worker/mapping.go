package worker

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/orderguard/orderguard/internal/detection/matcher"
	orderdomain "github.com/orderguard/orderguard/internal/order/domain"
	"gorm.io/datatypes"
)

var errMissingOrderID = errors.New("order payload has no id")

// platformOrder mirrors the platform's order webhook body. Monetary values
// arrive as strings, numbers, or not at all depending on platform version,
// hence json.Number.
type platformOrder struct {
	ID       json.Number `json:"id"`
	Email    string      `json:"email"`
	Phone    string      `json:"phone"`
	Customer struct {
		ID        json.Number `json:"id"`
		Email     string      `json:"email"`
		Phone     string      `json:"phone"`
		FirstName string      `json:"first_name"`
		LastName  string      `json:"last_name"`
	} `json:"customer"`
	ShippingAddress *struct {
		Address1 string `json:"address1"`
		City     string `json:"city"`
		Zip      string `json:"zip"`
		Country  string `json:"country"`
	} `json:"shipping_address"`
	LineItems []struct {
		SKU string `json:"sku"`
	} `json:"line_items"`
	TotalPrice json.Number `json:"total_price"`
	Currency   string      `json:"currency"`
	CreatedAt  string      `json:"created_at"`
}

func parsePlatformOrder(raw []byte) (*platformOrder, error) {
	var po platformOrder
	if err := json.Unmarshal(raw, &po); err != nil {
		return nil, err
	}
	if strings.TrimSpace(po.ID.String()) == "" {
		return nil, errMissingOrderID
	}
	return &po, nil
}

func (po *platformOrder) sourceOrderID() string {
	return po.ID.String()
}

func (po *platformOrder) customerID() string {
	return po.Customer.ID.String()
}

func (po *platformOrder) email() string {
	if e := strings.TrimSpace(po.Email); e != "" {
		return e
	}
	return strings.TrimSpace(po.Customer.Email)
}

func (po *platformOrder) phone() string {
	if p := strings.TrimSpace(po.Phone); p != "" {
		return p
	}
	return strings.TrimSpace(po.Customer.Phone)
}

func (po *platformOrder) customerName() string {
	return strings.TrimSpace(strings.TrimSpace(po.Customer.FirstName) + " " + strings.TrimSpace(po.Customer.LastName))
}

// buildOrder maps the platform body to the persistence model. The phone is
// normalized here once so the candidate lookup and the matcher agree on it.
func buildOrder(id, tenantID snowflake.ID, po *platformOrder, ingestedAt time.Time) *orderdomain.Order {
	order := &orderdomain.Order{
		ID:            id,
		TenantID:      tenantID,
		SourceOrderID: po.sourceOrderID(),
		CustomerEmail: strings.ToLower(po.email()),
		CustomerName:  po.customerName(),
		CustomerPhone: po.phone(),
		Currency:      strings.ToUpper(strings.TrimSpace(po.Currency)),
	}
	order.CustomerPhoneNormalized = matcher.NormalizePhone(order.CustomerPhone)

	if addr := po.ShippingAddress; addr != nil {
		order.SetShippingAddress(&orderdomain.Address{
			Street:  strings.TrimSpace(addr.Address1),
			City:    strings.TrimSpace(addr.City),
			Zip:     strings.TrimSpace(addr.Zip),
			Country: strings.TrimSpace(addr.Country),
		})
	}

	skus := make(datatypes.JSONSlice[string], 0, len(po.LineItems))
	for _, item := range po.LineItems {
		if sku := strings.TrimSpace(item.SKU); sku != "" {
			skus = append(skus, sku)
		}
	}
	order.LineItemSKUs = skus

	if price, err := strconv.ParseFloat(po.TotalPrice.String(), 64); err == nil {
		order.TotalPrice = price
	}

	order.SourceCreatedAt = ingestedAt
	if po.CreatedAt != "" {
		if ts, err := time.Parse(time.RFC3339, po.CreatedAt); err == nil {
			order.SourceCreatedAt = ts.UTC()
		}
	}
	return order
}
