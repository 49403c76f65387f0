package incentive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type is the kind of reward an incentive hands out.
type Type string

const (
	TypeCoupon       Type = "COUPON"
	TypeWalletCredit Type = "WALLET_CREDIT"
)

// Incentive is a segment-targeted reward definition.
type Incentive struct {
	ID                string `yaml:"id" json:"id" validate:"required"`
	OrganizationID    string `yaml:"organization_id" json:"organizationId" validate:"required"`
	Name              string `yaml:"name" json:"name"`
	SegmentID         string `yaml:"segment_id" json:"segmentId" validate:"required"`
	Type              Type   `yaml:"type" json:"type" validate:"oneof=COUPON WALLET_CREDIT"`
	CouponID          string `yaml:"coupon_id,omitempty" json:"couponId,omitempty" validate:"required_if=Type COUPON"`
	PersonalizeCoupon bool   `yaml:"personalize_coupon,omitempty" json:"personalizeCoupon,omitempty"`
	CouponPrefix      string `yaml:"coupon_prefix,omitempty" json:"couponPrefix,omitempty"`
	// WalletAmount is in minor currency units.
	WalletAmount     int64     `yaml:"wallet_amount,omitempty" json:"walletAmount,omitempty" validate:"required_if=Type WALLET_CREDIT"`
	Currency         string    `yaml:"currency,omitempty" json:"currency,omitempty"`
	MaxGrantsPerUser int       `yaml:"max_grants_per_user,omitempty" json:"maxGrantsPerUser,omitempty" validate:"gte=0"`
	Active           bool      `yaml:"active" json:"active"`
	Schedule         string    `yaml:"schedule,omitempty" json:"schedule,omitempty"`
	CreatedAt        time.Time `yaml:"-" json:"createdAt"`
	UpdatedAt        time.Time `yaml:"-" json:"updatedAt"`
}

// GrantCap returns the per-user cap, defaulting to one grant.
func (i *Incentive) GrantCap() int {
	if i.MaxGrantsPerUser <= 0 {
		return 1
	}
	return i.MaxGrantsPerUser
}

// Grant is one issuance of an incentive to one user.
type Grant struct {
	ID             string     `json:"id"`
	IncentiveID    string     `json:"segmentIncentiveId"`
	OrganizationID string     `json:"organizationId"`
	UserID         string     `json:"userId"`
	CouponID       string     `json:"couponId,omitempty"`
	CouponCode     string     `json:"couponCode,omitempty"`
	WalletAmount   int64      `json:"walletAmount,omitempty"`
	Currency       string     `json:"currency,omitempty"`
	IdempotencyKey string     `json:"idempotencyKey"`
	RedeemedAt     *time.Time `json:"redeemedAt,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// IdempotencyKey derives the key of the ordinal-th grant of an incentive to a
// user. Retrying the same grant yields the same key.
func IdempotencyKey(incentiveID, userID string, ordinal int) string {
	sum := sha256.Sum256([]byte(incentiveID + "|" + userID + "|" + strconv.Itoa(ordinal)))
	return hex.EncodeToString(sum[:])
}

// CouponCode derives a personalised one-time code from an idempotency key.
func CouponCode(prefix, key string) string {
	code := strings.ToUpper(key[:12])
	if prefix == "" {
		return code
	}
	return fmt.Sprintf("%s-%s", strings.ToUpper(prefix), code)
}
