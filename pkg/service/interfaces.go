package service

import (
	"context"
)

// Service interfaces for the canteen platform collaborators that incentives
// and journeys call out to. Having interfaces allows easier mocking for unit
// tests.

// CouponRequest asks the platform to hand a coupon to one customer. Code is
// empty when the shared coupon is granted as is.
type CouponRequest struct {
	IncentiveID    string `json:"incentiveId"`
	OrganizationID string `json:"organizationId"`
	UserID         string `json:"userId"`
	CouponID       string `json:"couponId"`
	Code           string `json:"code,omitempty"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// WalletCredit asks the platform to credit a customer's wallet. Amount is in
// minor currency units.
type WalletCredit struct {
	IncentiveID    string `json:"incentiveId"`
	OrganizationID string `json:"organizationId"`
	UserID         string `json:"userId"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type CouponIssuer interface {
	// IssueCoupon grants a coupon. Repeating a request with the same
	// idempotency key must not issue a second coupon.
	IssueCoupon(ctx context.Context, req CouponRequest) error
}

type WalletCreditor interface {
	// CreditWallet credits a wallet. Repeating a request with the same
	// idempotency key must not credit twice.
	CreditWallet(ctx context.Context, credit WalletCredit) error
}
