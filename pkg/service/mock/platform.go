package mock

import (
	"context"
	"sync"

	"github.com/AccelByte/extend-marketing-automation/pkg/service"
)

// CouponIssuer is a mock implementation of service.CouponIssuer for testing
type CouponIssuer struct {
	// IssueCouponFunc allows tests to customize the behavior
	IssueCouponFunc func(ctx context.Context, req service.CouponRequest) error

	// Error is returned when no func is configured
	Error error

	mu    sync.Mutex
	Calls []service.CouponRequest
}

// IssueCoupon records the request and returns the mocked result
func (m *CouponIssuer) IssueCoupon(ctx context.Context, req service.CouponRequest) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	m.mu.Unlock()

	if m.IssueCouponFunc != nil {
		return m.IssueCouponFunc(ctx, req)
	}
	return m.Error
}

// CallCount returns the number of IssueCoupon calls
func (m *CouponIssuer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// WalletCreditor is a mock implementation of service.WalletCreditor for testing
type WalletCreditor struct {
	CreditWalletFunc func(ctx context.Context, credit service.WalletCredit) error
	Error            error

	mu    sync.Mutex
	Calls []service.WalletCredit
}

// CreditWallet records the credit and returns the mocked result
func (m *WalletCreditor) CreditWallet(ctx context.Context, credit service.WalletCredit) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, credit)
	m.mu.Unlock()

	if m.CreditWalletFunc != nil {
		return m.CreditWalletFunc(ctx, credit)
	}
	return m.Error
}

// CallCount returns the number of CreditWallet calls
func (m *WalletCreditor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}
