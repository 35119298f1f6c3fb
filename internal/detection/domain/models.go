// Package domain contains per-tenant detection settings.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// AddressSensitivity controls how much of a shipping address must agree
// before partial credit is awarded.
type AddressSensitivity string

const (
	SensitivityLow    AddressSensitivity = "low"
	SensitivityMedium AddressSensitivity = "medium"
	SensitivityHigh   AddressSensitivity = "high"
)

// Notification channels.
const (
	ChannelEmail = "email"
	ChannelSlack = "slack"
)

// Settings is one row per tenant. The pipeline consumes it read-only;
// configuration changes come from outside this core.
type Settings struct {
	ID       snowflake.ID `gorm:"primaryKey"`
	TenantID snowflake.ID `gorm:"not null;uniqueIndex"`

	MatchEmail   bool `gorm:"not null;default:true"`
	MatchPhone   bool `gorm:"not null;default:true"`
	MatchAddress bool `gorm:"not null;default:true"`
	MatchSKU     bool `gorm:"column:match_sku;not null;default:false"`

	AddressSensitivity AddressSensitivity `gorm:"type:text;not null;default:medium"`
	TimeWindowHours    int                `gorm:"not null;default:48"`

	NotifyThreshold int                         `gorm:"not null;default:70"`
	NotifyChannels  datatypes.JSONSlice[string] `gorm:"column:notify_channels"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Settings) TableName() string { return "detection_settings" }

// DefaultSettings are applied lazily the first time a tenant is seen.
func DefaultSettings(tenantID snowflake.ID) Settings {
	return Settings{
		TenantID:           tenantID,
		MatchEmail:         true,
		MatchPhone:         true,
		MatchAddress:       true,
		MatchSKU:           false,
		AddressSensitivity: SensitivityMedium,
		TimeWindowHours:    48,
		NotifyThreshold:    70,
		NotifyChannels:     datatypes.JSONSlice[string]{ChannelEmail},
	}
}
