// Package domain contains persistence models for ingested orders.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// ResolvedBy identifies what cleared a duplicate flag.
type ResolvedBy string

const (
	ResolvedByManual     ResolvedBy = "manual"
	ResolvedByTagRemoved ResolvedBy = "tag_removed"
	ResolvedByAutoMerged ResolvedBy = "auto_merged"
)

func (r ResolvedBy) Valid() bool {
	switch r {
	case ResolvedByManual, ResolvedByTagRemoved, ResolvedByAutoMerged:
		return true
	}
	return false
}

// Address is the shipping address snapshot used for match scoring.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// Order is one platform order per tenant. A source order maps to exactly one
// row; the row is created once by the worker after matching and only mutated
// by resolution actions afterwards.
type Order struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	TenantID      snowflake.ID `gorm:"not null;uniqueIndex:idx_orders_tenant_source;index:idx_orders_tenant_email;index:idx_orders_tenant_phone"`
	SourceOrderID string       `gorm:"type:text;not null;uniqueIndex:idx_orders_tenant_source"`

	CustomerEmail string `gorm:"type:text;not null;index:idx_orders_tenant_email"`
	CustomerName  string `gorm:"type:text"`
	CustomerPhone string `gorm:"type:text"`
	// Digits-only form stored at insert so the candidate lookup can hit an index.
	CustomerPhoneNormalized string `gorm:"type:text;index:idx_orders_tenant_phone"`

	ShippingStreet  *string `gorm:"type:text"`
	ShippingCity    *string `gorm:"type:text"`
	ShippingZip     *string `gorm:"type:text"`
	ShippingCountry *string `gorm:"type:text"`

	LineItemSKUs datatypes.JSONSlice[string] `gorm:"column:line_item_skus"`
	TotalPrice   float64                     `gorm:"not null;default:0"`
	Currency     string                      `gorm:"type:text"`

	// Timestamp reported by the platform, distinct from ingestion time.
	SourceCreatedAt time.Time `gorm:"not null;index"`

	IsFlagged          bool          `gorm:"not null;default:false"`
	FlaggedAt          *time.Time    `gorm:""`
	DuplicateOfOrderID *snowflake.ID `gorm:""`
	MatchReason        *string       `gorm:"type:text"`
	MatchConfidence    int           `gorm:"not null;default:0"`
	ResolvedAt         *time.Time    `gorm:""`
	ResolvedBy         *ResolvedBy   `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Order) TableName() string { return "orders" }

// ShippingAddress returns the address snapshot, or nil when the order has no
// physical shipping address. Matching skips address signals entirely for
// those orders.
func (o *Order) ShippingAddress() *Address {
	if o.ShippingStreet == nil && o.ShippingCity == nil && o.ShippingZip == nil {
		return nil
	}
	addr := Address{}
	if o.ShippingStreet != nil {
		addr.Street = *o.ShippingStreet
	}
	if o.ShippingCity != nil {
		addr.City = *o.ShippingCity
	}
	if o.ShippingZip != nil {
		addr.Zip = *o.ShippingZip
	}
	if o.ShippingCountry != nil {
		addr.Country = *o.ShippingCountry
	}
	if addr.Street == "" && addr.City == "" && addr.Zip == "" {
		return nil
	}
	return &addr
}

// SetShippingAddress stores the address snapshot on the row.
func (o *Order) SetShippingAddress(addr *Address) {
	if addr == nil {
		o.ShippingStreet, o.ShippingCity, o.ShippingZip, o.ShippingCountry = nil, nil, nil, nil
		return
	}
	street, city, zip, country := addr.Street, addr.City, addr.Zip, addr.Country
	o.ShippingStreet = &street
	o.ShippingCity = &city
	o.ShippingZip = &zip
	o.ShippingCountry = &country
}
