// Package market defines marketplace listings, purchases and disputes.
package market

import "time"

// ListingStatus is the listing lifecycle state.
type ListingStatus string

const (
	ListingActive  ListingStatus = "active"
	ListingPaused  ListingStatus = "paused"
	ListingSold    ListingStatus = "sold"
	ListingRemoved ListingStatus = "removed"
)

// Listing is an item offered for points.
type Listing struct {
	ID          string        `json:"id"`
	SellerID    string        `json:"seller_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Price       int64         `json:"price"` // Points
	ImageKey    string        `json:"image_key,omitempty"`
	Quantity    int           `json:"quantity"`
	Status      ListingStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// PurchaseStatus tracks a purchase through escrow.
type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"   // Paid, awaiting delivery
	PurchaseDelivered PurchaseStatus = "delivered" // Seller marked delivered
	PurchaseCompleted PurchaseStatus = "completed" // Buyer confirmed, escrow released
	PurchaseRefunded  PurchaseStatus = "refunded"
)

// Purchase is a buyer's escrowed order against a listing.
type Purchase struct {
	ID          string         `json:"id"`
	ListingID   string         `json:"listing_id"`
	BuyerID     string         `json:"buyer_id"`
	SellerID    string         `json:"seller_id"`
	Price       int64          `json:"price"`
	Fee         int64          `json:"fee"` // Marketplace cut taken from the seller on release
	Status      PurchaseStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	DeliveredAt time.Time      `json:"delivered_at,omitempty"`
	CompletedAt time.Time      `json:"completed_at,omitempty"`
}

// DisputeStatus is the resolution state of a dispute.
type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeRefunded DisputeStatus = "refunded"
	DisputeReleased DisputeStatus = "released"
)

// Dispute is a buyer complaint on a purchase. At most one open dispute may
// exist per purchase.
type Dispute struct {
	ID         string        `json:"id"`
	PurchaseID string        `json:"purchase_id"`
	RaisedBy   string        `json:"raised_by"`
	Reason     string        `json:"reason"`
	Status     DisputeStatus `json:"status"`
	ResolvedBy string        `json:"resolved_by,omitempty"`
	Resolution string        `json:"resolution,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
	ResolvedAt time.Time     `json:"resolved_at,omitempty"`
}

// FeePercent is the marketplace cut applied on escrow release.
const FeePercent = 5
