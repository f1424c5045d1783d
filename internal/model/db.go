package model

import "time"

type ItemKind string

const (
	ItemKindCourse ItemKind = "course"
	ItemKindPlan   ItemKind = "plan"
)

// Network says which payment network a price row applies to.
type Network string

const (
	NetworkMercadoPago Network = "mercadopago"
	NetworkPaypal      Network = "paypal"
	NetworkAny         Network = "any"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

type User struct {
	ID        string `gorm:"primaryKey;size:64;not null"`
	Email     string `gorm:"size:255;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type PurchasableItem struct {
	ID          string   `gorm:"primaryKey;size:64;not null"`
	Kind        ItemKind `gorm:"size:16;uniqueIndex:idx_item_kind_slug;not null"` // course, plan
	Slug        string   `gorm:"size:128;uniqueIndex:idx_item_kind_slug;not null"`
	Title       string   `gorm:"size:255;not null"`
	Description string   `gorm:"type:text"`
	IsActive    bool     `gorm:"not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type PriceRow struct {
	ID           uint    `gorm:"primaryKey"`
	ItemID       string  `gorm:"size:64;index:idx_price_lookup;not null"`
	CurrencyCode string  `gorm:"size:8;index:idx_price_lookup;not null"`
	Amount       float64 `gorm:"not null"`
	Scope        Network `gorm:"size:16;not null;default:any"`
	IsActive     bool    `gorm:"not null"`
	DurationDays int     `gorm:"not null"` // entitlement length granted by this price
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Coupon struct {
	ID            string       `gorm:"primaryKey;size:64;not null"`
	Code          string       `gorm:"size:64;uniqueIndex;not null"` // stored upper case
	IsActive      bool         `gorm:"not null"`
	ItemID        *string      `gorm:"size:64"` // nil means global
	CurrencyCode  *string      `gorm:"size:8"`
	DiscountType  DiscountType `gorm:"size:16;not null"`
	DiscountValue float64      `gorm:"not null"`
	UsageLimit    int          `gorm:"not null;default:0"` // 0 means unlimited
	UsageCount    int          `gorm:"not null;default:0"`
	PerUserLimit  int          `gorm:"not null;default:0"` // 0 means unlimited
	ValidFrom     *time.Time
	ValidUntil    *time.Time
	GrantsFree    bool `gorm:"not null;default:false"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CouponUserUsage struct {
	CouponID  string `gorm:"primaryKey;size:64;not null"`
	UserID    string `gorm:"primaryKey;size:64;not null"`
	Uses      int    `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Entitlement struct {
	ID                string   `gorm:"primaryKey;size:64;not null"`
	UserID            string   `gorm:"size:64;index;not null"`
	ItemKind          ItemKind `gorm:"size:16;not null"`
	ItemSlug          string   `gorm:"size:128;not null"`
	Provider          string   `gorm:"size:32;uniqueIndex:idx_entitlement_ref;not null"`
	ProviderReference string   `gorm:"size:160;uniqueIndex:idx_entitlement_ref;not null"`
	CouponID          *string  `gorm:"size:64"`
	ExpiresAt         time.Time
	CreatedAt         time.Time
}
