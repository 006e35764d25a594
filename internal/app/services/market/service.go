// Package market manages peer-to-peer listings with escrowed purchases.
package market

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/earnhub/platform/internal/app/domain/market"
	"github.com/earnhub/platform/internal/app/domain/notification"
	"github.com/earnhub/platform/internal/app/domain/wallet"
	"github.com/earnhub/platform/internal/app/metrics"
	"github.com/earnhub/platform/internal/app/services/notifications"
	"github.com/earnhub/platform/internal/app/storage"
	"github.com/earnhub/platform/pkg/logger"
)

// Errors
var (
	ErrNotSeller       = errors.New("not the listing owner")
	ErrNotBuyer        = errors.New("not the purchase buyer")
	ErrListingClosed   = errors.New("listing is not available")
	ErrOwnListing      = errors.New("cannot buy your own listing")
	ErrWrongState      = errors.New("purchase is not in the required state")
	ErrDisputeExists   = errors.New("purchase already has an open dispute")
	ErrDisputeResolved = errors.New("dispute already resolved")
)

// Service manages the marketplace.
type Service struct {
	store    storage.MarketStore
	users    storage.UserStore
	wallet   storage.WalletStore
	notifier *notifications.Service
	log      *logger.Logger
}

// New creates a configured marketplace service.
func New(store storage.MarketStore, userStore storage.UserStore, walletStore storage.WalletStore,
	notifier *notifications.Service, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("market")
	}
	return &Service{store: store, users: userStore, wallet: walletStore, notifier: notifier, log: log}
}

// CreateListing publishes an item for sale.
func (s *Service) CreateListing(ctx context.Context, sellerID string, l market.Listing) (market.Listing, error) {
	l.Title = strings.TrimSpace(l.Title)
	if l.Title == "" {
		return market.Listing{}, fmt.Errorf("title is required")
	}
	if l.Price <= 0 {
		return market.Listing{}, fmt.Errorf("price must be positive")
	}
	if l.Quantity <= 0 {
		l.Quantity = 1
	}
	l.SellerID = sellerID
	l.Status = market.ListingActive

	created, err := s.store.CreateListing(ctx, l)
	if err != nil {
		return market.Listing{}, fmt.Errorf("create listing: %w", err)
	}
	s.log.WithField("listing_id", created.ID).WithField("seller_id", sellerID).Info("listing created")
	return created, nil
}

// UpdateListing modifies a listing's editable fields. Only the seller may
// edit; moderators remove instead.
func (s *Service) UpdateListing(ctx context.Context, id, sellerID string, title, description, category *string, price *int64, quantity *int) (market.Listing, error) {
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return market.Listing{}, err
	}
	if l.SellerID != sellerID {
		return market.Listing{}, ErrNotSeller
	}
	if l.Status == market.ListingRemoved || l.Status == market.ListingSold {
		return market.Listing{}, ErrListingClosed
	}
	if title != nil {
		trimmed := strings.TrimSpace(*title)
		if trimmed == "" {
			return market.Listing{}, fmt.Errorf("title cannot be empty")
		}
		l.Title = trimmed
	}
	if description != nil {
		l.Description = *description
	}
	if category != nil {
		l.Category = *category
	}
	if price != nil {
		if *price <= 0 {
			return market.Listing{}, fmt.Errorf("price must be positive")
		}
		l.Price = *price
	}
	if quantity != nil {
		if *quantity < 0 {
			return market.Listing{}, fmt.Errorf("quantity cannot be negative")
		}
		l.Quantity = *quantity
		if l.Quantity == 0 {
			l.Status = market.ListingSold
		}
	}
	return s.store.UpdateListing(ctx, l)
}

// SetListingStatus pauses, resumes or removes a listing. The seller controls
// pause/resume; removal is also open to moderators.
func (s *Service) SetListingStatus(ctx context.Context, id, actorID string, status market.ListingStatus, moderator bool) (market.Listing, error) {
	l, err := s.store.GetListing(ctx, id)
	if err != nil {
		return market.Listing{}, err
	}
	if l.SellerID != actorID && !(moderator && status == market.ListingRemoved) {
		return market.Listing{}, ErrNotSeller
	}
	switch status {
	case market.ListingActive, market.ListingPaused, market.ListingRemoved:
	default:
		return market.Listing{}, fmt.Errorf("unknown status %q", status)
	}
	l.Status = status
	return s.store.UpdateListing(ctx, l)
}

// GetListing returns one listing.
func (s *Service) GetListing(ctx context.Context, id string) (market.Listing, error) {
	return s.store.GetListing(ctx, id)
}

// ListListings returns listings filtered by status. An empty status returns
// all.
func (s *Service) ListListings(ctx context.Context, status market.ListingStatus, limit int) ([]market.Listing, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListListings(ctx, status, limit)
}

// Buy escrows the listing price from the buyer and opens a purchase. The
// seller is paid when the buyer confirms receipt.
func (s *Service) Buy(ctx context.Context, listingID, buyerID string) (market.Purchase, error) {
	l, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return market.Purchase{}, err
	}
	if l.Status != market.ListingActive || l.Quantity <= 0 {
		return market.Purchase{}, ErrListingClosed
	}
	if l.SellerID == buyerID {
		return market.Purchase{}, ErrOwnListing
	}

	debited, err := s.users.AdjustPointsBalance(ctx, buyerID, -l.Price)
	if err != nil {
		return market.Purchase{}, fmt.Errorf("escrow price: %w", err)
	}

	p, err := s.store.CreatePurchase(ctx, market.Purchase{
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  l.SellerID,
		Price:     l.Price,
		Fee:       l.Price * market.FeePercent / 100,
		Status:    market.PurchasePending,
	})
	if err != nil {
		if _, rbErr := s.users.AdjustPointsBalance(ctx, buyerID, l.Price); rbErr != nil {
			s.log.WithError(rbErr).WithField("buyer_id", buyerID).Error("escrow rollback failed")
		}
		return market.Purchase{}, fmt.Errorf("create purchase: %w", err)
	}

	l.Quantity--
	if l.Quantity == 0 {
		l.Status = market.ListingSold
	}
	if _, err := s.store.UpdateListing(ctx, l); err != nil {
		s.log.WithError(err).WithField("listing_id", listingID).Warn("listing quantity not persisted")
	}

	if _, err := s.wallet.CreateTransaction(ctx, wallet.Transaction{
		UserID:       buyerID,
		Type:         wallet.TxMarketPurchase,
		Amount:       -l.Price,
		BalanceAfter: debited.PointsBalance,
		Reference:    p.ID,
		Description:  fmt.Sprintf("purchase of %q", l.Title),
	}); err != nil {
		s.log.WithError(err).WithField("purchase_id", p.ID).Warn("purchase transaction not recorded")
	}

	s.notifier.Notify(ctx, l.SellerID, notification.CategoryMarket,
		"Item sold", fmt.Sprintf("%q was purchased. Deliver it to release the escrow.", l.Title), p.ID)

	s.log.WithField("purchase_id", p.ID).WithField("listing_id", listingID).Info("purchase escrowed")
	return p, nil
}

// MarkDelivered records that the seller shipped or fulfilled the order.
func (s *Service) MarkDelivered(ctx context.Context, purchaseID, sellerID string) (market.Purchase, error) {
	p, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return market.Purchase{}, err
	}
	if p.SellerID != sellerID {
		return market.Purchase{}, ErrNotSeller
	}
	if p.Status != market.PurchasePending {
		return market.Purchase{}, ErrWrongState
	}
	p.Status = market.PurchaseDelivered
	p.DeliveredAt = time.Now().UTC()
	updated, err := s.store.UpdatePurchase(ctx, p)
	if err != nil {
		return market.Purchase{}, err
	}
	s.notifier.Notify(ctx, p.BuyerID, notification.CategoryMarket,
		"Order delivered", "Your order was marked delivered. Confirm receipt to release payment.", p.ID)
	return updated, nil
}

// Confirm releases the escrow to the seller minus the marketplace fee.
func (s *Service) Confirm(ctx context.Context, purchaseID, buyerID string) (market.Purchase, error) {
	p, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return market.Purchase{}, err
	}
	if p.BuyerID != buyerID {
		return market.Purchase{}, ErrNotBuyer
	}
	if p.Status != market.PurchaseDelivered {
		return market.Purchase{}, ErrWrongState
	}
	if _, err := s.store.GetOpenDisputeByPurchase(ctx, purchaseID); err == nil {
		return market.Purchase{}, ErrDisputeExists
	}
	return s.release(ctx, p)
}

// OpenDispute raises a buyer complaint, freezing escrow release until an
// admin resolves it.
func (s *Service) OpenDispute(ctx context.Context, purchaseID, buyerID, reason string) (market.Dispute, error) {
	p, err := s.store.GetPurchase(ctx, purchaseID)
	if err != nil {
		return market.Dispute{}, err
	}
	if p.BuyerID != buyerID {
		return market.Dispute{}, ErrNotBuyer
	}
	if p.Status != market.PurchasePending && p.Status != market.PurchaseDelivered {
		return market.Dispute{}, ErrWrongState
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return market.Dispute{}, fmt.Errorf("reason is required")
	}
	if _, err := s.store.GetOpenDisputeByPurchase(ctx, purchaseID); err == nil {
		return market.Dispute{}, ErrDisputeExists
	}

	d, err := s.store.CreateDispute(ctx, market.Dispute{
		PurchaseID: purchaseID,
		RaisedBy:   buyerID,
		Reason:     reason,
		Status:     market.DisputeOpen,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return market.Dispute{}, ErrDisputeExists
		}
		return market.Dispute{}, fmt.Errorf("create dispute: %w", err)
	}

	s.notifier.Notify(ctx, p.SellerID, notification.CategoryMarket,
		"Dispute opened", "The buyer opened a dispute on your sale.", p.ID)
	s.log.WithField("dispute_id", d.ID).WithField("purchase_id", purchaseID).Info("dispute opened")
	return d, nil
}

// ResolveDispute closes a dispute, either refunding the buyer or releasing
// the escrow to the seller.
func (s *Service) ResolveDispute(ctx context.Context, disputeID, adminID string, refund bool, resolution string) (market.Dispute, error) {
	d, err := s.store.GetDispute(ctx, disputeID)
	if err != nil {
		return market.Dispute{}, err
	}
	if d.Status != market.DisputeOpen {
		return market.Dispute{}, ErrDisputeResolved
	}
	p, err := s.store.GetPurchase(ctx, d.PurchaseID)
	if err != nil {
		return market.Dispute{}, err
	}

	if refund {
		if err := s.refund(ctx, p); err != nil {
			return market.Dispute{}, err
		}
		d.Status = market.DisputeRefunded
	} else {
		if _, err := s.release(ctx, p); err != nil {
			return market.Dispute{}, err
		}
		d.Status = market.DisputeReleased
	}

	d.ResolvedBy = adminID
	d.Resolution = strings.TrimSpace(resolution)
	d.ResolvedAt = time.Now().UTC()
	updated, err := s.store.UpdateDispute(ctx, d)
	if err != nil {
		return market.Dispute{}, err
	}
	s.log.WithField("dispute_id", disputeID).
		WithField("admin_id", adminID).
		WithField("refunded", refund).
		Info("dispute resolved")
	return updated, nil
}

// ListDisputes returns disputes filtered by status. An empty status returns
// all.
func (s *Service) ListDisputes(ctx context.Context, status market.DisputeStatus, limit int) ([]market.Dispute, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListDisputes(ctx, status, limit)
}

// BuyerPurchases returns a buyer's order history.
func (s *Service) BuyerPurchases(ctx context.Context, buyerID string, limit int) ([]market.Purchase, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListPurchasesByBuyer(ctx, buyerID, limit)
}

// SellerPurchases returns a seller's order history.
func (s *Service) SellerPurchases(ctx context.Context, sellerID string, limit int) ([]market.Purchase, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.store.ListPurchasesBySeller(ctx, sellerID, limit)
}

func (s *Service) release(ctx context.Context, p market.Purchase) (market.Purchase, error) {
	payout := p.Price - p.Fee
	credited, err := s.users.AdjustPointsBalance(ctx, p.SellerID, payout)
	if err != nil {
		return market.Purchase{}, fmt.Errorf("pay seller: %w", err)
	}
	if _, err := s.wallet.CreateTransaction(ctx, wallet.Transaction{
		UserID:       p.SellerID,
		Type:         wallet.TxMarketSale,
		Amount:       payout,
		BalanceAfter: credited.PointsBalance,
		Reference:    p.ID,
		Description:  fmt.Sprintf("sale payout (fee %d)", p.Fee),
	}); err != nil {
		s.log.WithError(err).WithField("purchase_id", p.ID).Warn("sale transaction not recorded")
	}
	metrics.AddPointsCredited("market_sale", payout)

	p.Status = market.PurchaseCompleted
	p.CompletedAt = time.Now().UTC()
	updated, err := s.store.UpdatePurchase(ctx, p)
	if err != nil {
		return market.Purchase{}, err
	}
	s.notifier.Notify(ctx, p.SellerID, notification.CategoryMarket,
		"Escrow released", fmt.Sprintf("You received %d points for your sale.", payout), p.ID)
	return updated, nil
}

func (s *Service) refund(ctx context.Context, p market.Purchase) error {
	credited, err := s.users.AdjustPointsBalance(ctx, p.BuyerID, p.Price)
	if err != nil {
		return fmt.Errorf("refund buyer: %w", err)
	}
	if _, err := s.wallet.CreateTransaction(ctx, wallet.Transaction{
		UserID:       p.BuyerID,
		Type:         wallet.TxMarketRefund,
		Amount:       p.Price,
		BalanceAfter: credited.PointsBalance,
		Reference:    p.ID,
		Description:  "purchase refunded",
	}); err != nil {
		s.log.WithError(err).WithField("purchase_id", p.ID).Warn("refund transaction not recorded")
	}

	p.Status = market.PurchaseRefunded
	if _, err := s.store.UpdatePurchase(ctx, p); err != nil {
		return err
	}
	s.notifier.Notify(ctx, p.BuyerID, notification.CategoryMarket,
		"Purchase refunded", fmt.Sprintf("%d points were returned to your balance.", p.Price), p.ID)
	return nil
}
