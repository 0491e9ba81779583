package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus represents the lifecycle state of a marketplace listing.
type ProductStatus string

const (
	// StatusPending indicates a listing awaiting admin review.
	StatusPending ProductStatus = "PENDING"
	// StatusApproved indicates a listing visible in search and browse.
	StatusApproved ProductStatus = "APPROVED"
	// StatusRejected indicates a listing declined by an admin.
	StatusRejected ProductStatus = "REJECTED"
	// StatusPaused indicates a listing temporarily hidden by its seller.
	StatusPaused ProductStatus = "PAUSED"
	// StatusSold indicates a listing marked as sold.
	StatusSold ProductStatus = "SOLD"
)

// Valid reports whether s is a known status value.
func (s ProductStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusPaused, StatusSold:
		return true
	}
	return false
}

// Product field names used for partial updates.
const (
	FieldStatus          = "status"
	FieldTitle           = "title"
	FieldDescription     = "description"
	FieldPrice           = "price"
	FieldCategory        = "category"
	FieldStock           = "stock"
	FieldLimitedStock    = "limitedStock"
	FieldViewCount       = "viewCount"
	FieldFavoriteCount   = "favoriteCount"
	FieldAdminComment    = "adminComment"
	FieldRejectionReason = "rejectionReason"
	FieldImageURLs       = "imageUrls"
	FieldSellerAvatar    = "sellerAvatar"
	FieldApprovedAt      = "approvedAt"
	FieldLastUpdatedAt   = "lastUpdatedAt"
)

// Product represents a marketplace listing document. SellerName and
// SellerAvatar are denormalized snapshots; SellerAvatar is reconciled by
// the profile-image fan-out when the seller changes it.
type Product struct {
	ID              string          `json:"id"`
	SellerID        string          `json:"sellerId"`
	SellerName      string          `json:"sellerName"`
	SellerAvatar    string          `json:"sellerAvatar"`
	Title           string          `json:"title"`
	Description     string          `json:"description"`
	Price           decimal.Decimal `json:"price"`
	Category        string          `json:"category"`
	Tags            []string        `json:"tags"`
	ImageURLs       []string        `json:"imageUrls"`
	Status          ProductStatus   `json:"status"`
	Stock           int64           `json:"stock"`
	LimitedStock    bool            `json:"limitedStock"`
	ViewCount       int64           `json:"viewCount"`
	FavoriteCount   int64           `json:"favoriteCount"`
	AdminComment    string          `json:"adminComment"`
	RejectionReason string          `json:"rejectionReason"`
	CreatedAt       time.Time       `json:"createdAt"`
	ApprovedAt      time.Time       `json:"approvedAt"`
	LastUpdatedAt   time.Time       `json:"lastUpdatedAt"`
}

// ProductDraft carries the seller-supplied fields of a new listing.
type ProductDraft struct {
	SellerID     string
	Title        string
	Description  string
	Price        decimal.Decimal
	Category     string
	Tags         []string
	Stock        int64
	LimitedStock bool
	Images       []ImageUpload
}

// ProductSnapshot is one emission of a single-product subscription.
type ProductSnapshot struct {
	Product Product
	Exists  bool
}

// SellerStats is a derived aggregate over a seller's live product list;
// it is never stored as its own document.
type SellerStats struct {
	Total          int
	CountByStatus  map[ProductStatus]int
	TotalViews     int64
	TotalFavorites int64
}
