// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package incentive

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/audience"
	"github.com/AccelByte/extend-marketing-automation/pkg/metrics"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Store is the persistence the engine needs.
type Store interface {
	GetIncentive(ctx context.Context, id string) (*Incentive, error)
	CountGrants(ctx context.Context, incentiveID, userID string) (int, error)
	CreateGrant(ctx context.Context, g *Grant) error
}

// AudienceResolver resolves a segment to its members.
type AudienceResolver interface {
	Resolve(ctx context.Context, segmentID string, opts audience.ResolveOptions) (*audience.Result, error)
}

// GrantContext describes one grant run.
type GrantContext struct {
	// TriggeredBy names the caller, e.g. "manual", "schedule" or a journey ID.
	TriggeredBy string
	// Fresh bypasses the audience cache.
	Fresh bool
}

// Result reports a grant run. Per-user failures are listed in Errors and do
// not abort the run.
type Result struct {
	IncentiveID string              `json:"incentiveId"`
	Granted     int                 `json:"granted"`
	Skipped     int                 `json:"skipped"`
	Errors      []service.ItemError `json:"errors,omitempty"`
}

type outcome int

const (
	outcomeGranted outcome = iota
	outcomeSkipped
	outcomeFailed
)

// Engine turns a segment's audience into capped, idempotent grants.
type Engine struct {
	store       Store
	audience    AudienceResolver
	locker      Locker
	coupons     service.CouponIssuer
	wallet      service.WalletCreditor
	concurrency int
	now         func() time.Time
}

// NewEngine creates an engine. concurrency bounds how many users are granted
// in parallel; values below one mean one.
func NewEngine(
	store Store,
	resolver AudienceResolver,
	locker Locker,
	coupons service.CouponIssuer,
	wallet service.WalletCreditor,
	concurrency int,
) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		store:       store,
		audience:    resolver,
		locker:      locker,
		coupons:     coupons,
		wallet:      wallet,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// GrantToSegment grants the incentive to every current member of its segment.
func (e *Engine) GrantToSegment(ctx context.Context, incentiveID string, gctx GrantContext) (*Result, error) {
	inc, err := e.store.GetIncentive(ctx, incentiveID)
	if err != nil {
		return nil, err
	}
	if !inc.Active {
		return nil, service.NewConflictError("incentive.grant", fmt.Sprintf("incentive %s is not active", incentiveID))
	}

	members, err := e.audience.Resolve(ctx, inc.SegmentID, audience.ResolveOptions{IncludeUserIDs: true, Fresh: gctx.Fresh})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve segment %s: %w", inc.SegmentID, err)
	}

	logrus.Infof("granting incentive %s to %d members of segment %s (triggered by %s)",
		inc.ID, len(members.UserIDs), inc.SegmentID, gctx.TriggeredBy)

	result := &Result{IncentiveID: inc.ID}
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, userID := range members.UserIDs {
		userID := userID
		g.Go(func() error {
			out, err := e.grantToUser(gCtx, inc, userID)

			mu.Lock()
			defer mu.Unlock()
			switch out {
			case outcomeGranted:
				result.Granted++
			case outcomeSkipped:
				result.Skipped++
			case outcomeFailed:
				logrus.Errorf("failed to grant incentive %s to user %s: %v", inc.ID, userID, err)
				result.Errors = append(result.Errors, service.ItemError{ID: userID, Err: err})
			}
			return nil
		})
	}
	_ = g.Wait()

	logrus.Infof("incentive %s: granted %d, skipped %d, failed %d",
		inc.ID, result.Granted, result.Skipped, len(result.Errors))
	return result, nil
}

// grantToUser holds the (incentive, user) lock across the cap check and the
// grant so concurrent runs cannot exceed the cap.
func (e *Engine) grantToUser(ctx context.Context, inc *Incentive, userID string) (outcome, error) {
	unlock, err := e.locker.Lock(ctx, inc.ID+":"+userID)
	if err != nil {
		e.count(inc, "error")
		return outcomeFailed, fmt.Errorf("failed to lock: %w", err)
	}
	defer unlock()

	existing, err := e.store.CountGrants(ctx, inc.ID, userID)
	if err != nil {
		e.count(inc, "error")
		return outcomeFailed, err
	}
	if existing >= inc.GrantCap() {
		logrus.Debugf("user %s reached the cap of %d for incentive %s", userID, inc.GrantCap(), inc.ID)
		e.count(inc, "skipped")
		return outcomeSkipped, nil
	}

	key := IdempotencyKey(inc.ID, userID, existing+1)
	now := e.now()
	grant := &Grant{
		IncentiveID:    inc.ID,
		OrganizationID: inc.OrganizationID,
		UserID:         userID,
		IdempotencyKey: key,
		CreatedAt:      now,
	}

	switch inc.Type {
	case TypeCoupon:
		grant.CouponID = inc.CouponID
		if inc.PersonalizeCoupon {
			grant.CouponCode = CouponCode(inc.CouponPrefix, key)
		}
		err = e.coupons.IssueCoupon(ctx, service.CouponRequest{
			IncentiveID:    inc.ID,
			OrganizationID: inc.OrganizationID,
			UserID:         userID,
			CouponID:       inc.CouponID,
			Code:           grant.CouponCode,
			IdempotencyKey: key,
		})
	case TypeWalletCredit:
		grant.WalletAmount = inc.WalletAmount
		grant.Currency = inc.Currency
		// wallet credit is unconditional, so it counts as redeemed at once
		grant.RedeemedAt = &now
		err = e.wallet.CreditWallet(ctx, service.WalletCredit{
			IncentiveID:    inc.ID,
			OrganizationID: inc.OrganizationID,
			UserID:         userID,
			Amount:         inc.WalletAmount,
			Currency:       inc.Currency,
			IdempotencyKey: key,
		})
	default:
		err = fmt.Errorf("unknown incentive type %q", inc.Type)
	}
	if err != nil {
		e.count(inc, "error")
		return outcomeFailed, service.NewDeliveryError("incentive.grant", err)
	}

	if err := e.store.CreateGrant(ctx, grant); err != nil {
		if service.IsConflict(err) {
			e.count(inc, "skipped")
			return outcomeSkipped, nil
		}
		e.count(inc, "error")
		return outcomeFailed, err
	}

	e.count(inc, "granted")
	return outcomeGranted, nil
}

func (e *Engine) count(inc *Incentive, result string) {
	metrics.Grants.WithLabelValues(string(inc.Type), result).Inc()
}
