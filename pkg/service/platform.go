package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCouponTopic = "platform.coupon.issue"
	DefaultWalletTopic = "platform.wallet.credit"
)

// PlatformCommands sends coupon and wallet commands to the ordering platform
// over a message bus. The message UUID is the idempotency key so the consumer
// can drop redeliveries.
type PlatformCommands struct {
	publisher message.Publisher
	cfg       PlatformCommandsConfig
}

type PlatformCommandsConfig struct {
	CouponTopic string
	WalletTopic string
}

var (
	_ CouponIssuer   = (*PlatformCommands)(nil)
	_ WalletCreditor = (*PlatformCommands)(nil)
)

func NewPlatformCommands(
	publisher message.Publisher,
	cfg PlatformCommandsConfig,
) *PlatformCommands {
	if cfg.CouponTopic == "" {
		cfg.CouponTopic = DefaultCouponTopic
	}
	if cfg.WalletTopic == "" {
		cfg.WalletTopic = DefaultWalletTopic
	}
	return &PlatformCommands{
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *PlatformCommands) IssueCoupon(ctx context.Context, req CouponRequest) error {
	if err := s.publish(ctx, s.cfg.CouponTopic, req.IdempotencyKey, req); err != nil {
		return fmt.Errorf("failed to issue coupon %s to user %s: %w", req.CouponID, req.UserID, err)
	}
	logrus.Debugf("issued coupon %s to user %s", req.CouponID, req.UserID)
	return nil
}

func (s *PlatformCommands) CreditWallet(ctx context.Context, credit WalletCredit) error {
	if credit.Amount <= 0 {
		return fmt.Errorf("wallet credit for user %s must be positive, got %d", credit.UserID, credit.Amount)
	}
	if err := s.publish(ctx, s.cfg.WalletTopic, credit.IdempotencyKey, credit); err != nil {
		return fmt.Errorf("failed to credit wallet of user %s: %w", credit.UserID, err)
	}
	logrus.Debugf("credited %d %s to user %s", credit.Amount, credit.Currency, credit.UserID)
	return nil
}

func (s *PlatformCommands) publish(ctx context.Context, topic, key string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := message.NewMessage(key, data)
	msg.SetContext(ctx)
	return s.publisher.Publish(topic, msg)
}
