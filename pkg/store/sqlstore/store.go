package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/AccelByte/extend-marketing-automation/pkg/audience"
	"github.com/AccelByte/extend-marketing-automation/pkg/incentive"
	"github.com/AccelByte/extend-marketing-automation/pkg/journey"
	"github.com/AccelByte/extend-marketing-automation/pkg/service"
	"github.com/AccelByte/extend-marketing-automation/pkg/store"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// Store is a store.Store backed by sqlx.
type Store struct {
	db  *sqlx.DB
	q   *queries
	seq atomic.Int64
}

var _ store.Store = (*Store)(nil)

// New wraps an open database. Call MigrateUp first.
func New(db *sqlx.DB) (*Store, error) {
	q, err := loadQueries()
	if err != nil {
		return nil, err
	}
	return &Store{db: db, q: q}, nil
}

// Connect opens the database at dbURL, applies migrations and returns the store.
func Connect(dbURL string) (*Store, error) {
	db, err := Open(dbURL)
	if err != nil {
		return nil, err
	}
	if err := MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return service.NewStoreError("store.ping", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// nextSeq orders log rows written in the same millisecond.
func (s *Store) nextSeq() int64 {
	for {
		last := s.seq.Load()
		next := time.Now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if s.seq.CompareAndSwap(last, next) {
			return next
		}
	}
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Segments

func (s *Store) GetSegment(ctx context.Context, id string) (*audience.Segment, error) {
	var row segmentRow
	if err := s.q.get(ctx, s.db, &row, "get-segment", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, service.NewNotFoundError("store.get_segment", "segment", id)
		}
		return nil, service.NewStoreError("store.get_segment", err)
	}
	seg, err := row.toSegment()
	if err != nil {
		return nil, service.NewStoreError("store.get_segment", err)
	}
	return &seg, nil
}

func (s *Store) ListSegments(ctx context.Context, organizationID string) ([]audience.Segment, error) {
	var rows []segmentRow
	if err := s.q.selectAll(ctx, s.db, &rows, "list-segments", organizationID, organizationID); err != nil {
		return nil, service.NewStoreError("store.list_segments", err)
	}
	out := make([]audience.Segment, 0, len(rows))
	for _, row := range rows {
		seg, err := row.toSegment()
		if err != nil {
			return nil, service.NewStoreError("store.list_segments", err)
		}
		out = append(out, seg)
	}
	return out, nil
}

func (s *Store) SaveSegment(ctx context.Context, seg *audience.Segment) error {
	rules, err := marshalJSON(seg.Rules)
	if err != nil {
		return service.NewStoreError("store.save_segment", err)
	}
	locations := "[]"
	if len(seg.LocationIDs) > 0 {
		if locations, err = marshalJSON(seg.LocationIDs); err != nil {
			return service.NewStoreError("store.save_segment", err)
		}
	}

	_, err = s.q.exec(ctx, s.db, "upsert-segment",
		seg.ID, seg.OrganizationID, seg.Name, rules, string(seg.Combination), locations,
		toMillis(seg.CreatedAt), toMillis(seg.UpdatedAt))
	if err != nil {
		return service.NewStoreError("store.save_segment", err)
	}
	return nil
}

func (s *Store) DeleteSegment(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "delete-segment", "segment", id)
}

func (s *Store) deleteByID(ctx context.Context, query, kind, id string) error {
	op := "store.delete_" + kind
	res, err := s.q.exec(ctx, s.db, query, id)
	if err != nil {
		return service.NewStoreError(op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return service.NewNotFoundError(op, kind, id)
	}
	return nil
}

// Journeys

func (s *Store) GetJourney(ctx context.Context, id string) (*journey.Journey, error) {
	var row journeyRow
	if err := s.q.get(ctx, s.db, &row, "get-journey", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, service.NewNotFoundError("store.get_journey", "journey", id)
		}
		return nil, service.NewStoreError("store.get_journey", err)
	}
	j, err := row.toJourney()
	if err != nil {
		return nil, service.NewStoreError("store.get_journey", err)
	}
	return &j, nil
}

func (s *Store) ListJourneys(ctx context.Context, f store.JourneyFilter) ([]journey.Journey, error) {
	var rows []journeyRow
	err := s.q.selectAll(ctx, s.db, &rows, "list-journeys",
		f.OrganizationID, f.OrganizationID,
		string(f.Status), string(f.Status),
		string(f.TriggerType), string(f.TriggerType),
		f.TriggerEvent, f.TriggerEvent)
	if err != nil {
		return nil, service.NewStoreError("store.list_journeys", err)
	}
	out := make([]journey.Journey, 0, len(rows))
	for _, row := range rows {
		j, err := row.toJourney()
		if err != nil {
			return nil, service.NewStoreError("store.list_journeys", err)
		}
		out = append(out, j)
	}
	return out, nil
}

func (s *Store) SaveJourney(ctx context.Context, j *journey.Journey) error {
	graph, err := marshalJSON(j.Graph)
	if err != nil {
		return service.NewStoreError("store.save_journey", err)
	}
	exitRules := "[]"
	if len(j.ExitRules) > 0 {
		if exitRules, err = marshalJSON(j.ExitRules); err != nil {
			return service.NewStoreError("store.save_journey", err)
		}
	}
	var goal sql.NullString
	if j.ConversionGoal != nil {
		encoded, err := marshalJSON(j.ConversionGoal)
		if err != nil {
			return service.NewStoreError("store.save_journey", err)
		}
		goal = sql.NullString{String: encoded, Valid: true}
	}

	_, err = s.q.exec(ctx, s.db, "upsert-journey",
		j.ID, j.OrganizationID, j.Name, string(j.Status), graph,
		string(j.TriggerType), j.TriggerEvent, j.SegmentID, j.Schedule,
		string(j.ReEntryPolicy), goal, exitRules, nullMillis(j.StartDate),
		toMillis(j.CreatedAt), toMillis(j.UpdatedAt))
	if err != nil {
		return service.NewStoreError("store.save_journey", err)
	}
	return nil
}

func (s *Store) DeleteJourney(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "delete-journey", "journey", id)
}

// Participants

func (s *Store) CreateParticipant(ctx context.Context, p journey.Participant, entered journey.LogEntry) error {
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		_, err := s.q.exec(ctx, tx, "insert-participant",
			p.ID, p.JourneyID, p.OrganizationID, p.UserID, string(p.Status), p.CurrentNodeID,
			toMillis(p.EnteredAt), toMillis(p.NextStepAt),
			nullMillis(p.ConvertedAt), nullMillis(p.ExitedAt), nullMillis(p.CompletedAt))
		if err != nil {
			return err
		}
		return s.insertLogs(ctx, tx, []journey.LogEntry{entered})
	})
	if err != nil {
		if isUniqueViolation(err) {
			return service.NewConflictError("store.create_participant",
				fmt.Sprintf("user %s already has an active run in journey %s", p.UserID, p.JourneyID))
		}
		return service.NewStoreError("store.create_participant", err)
	}
	return nil
}

func (s *Store) GetParticipant(ctx context.Context, id string) (*journey.Participant, error) {
	var row participantRow
	if err := s.q.get(ctx, s.db, &row, "get-participant", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, service.NewNotFoundError("store.get_participant", "participant", id)
		}
		return nil, service.NewStoreError("store.get_participant", err)
	}
	p := row.toParticipant()
	return &p, nil
}

func (s *Store) LatestParticipant(ctx context.Context, journeyID, userID string) (*journey.Participant, error) {
	var row participantRow
	if err := s.q.get(ctx, s.db, &row, "latest-participant", journeyID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, service.NewStoreError("store.latest_participant", err)
	}
	p := row.toParticipant()
	return &p, nil
}

// ClaimDue selects candidates and then claims each one with a conditional
// UPDATE. A row another worker claimed in between affects zero rows and is
// skipped.
func (s *Store) ClaimDue(ctx context.Context, now time.Time, workerID string, lease time.Duration, limit int) ([]journey.Participant, error) {
	nowMs := toMillis(now)

	var ids []string
	if err := s.q.selectAll(ctx, s.db, &ids, "select-due-participants", nowMs, nowMs, limit); err != nil {
		return nil, service.NewStoreError("store.claim_due", err)
	}

	claimed := make([]journey.Participant, 0, len(ids))
	for _, id := range ids {
		res, err := s.q.exec(ctx, s.db, "claim-participant", workerID, toMillis(now.Add(lease)), id, nowMs)
		if err != nil {
			return claimed, service.NewStoreError("store.claim_due", err)
		}
		if n, err := res.RowsAffected(); err != nil || n != 1 {
			continue
		}

		p, err := s.GetParticipant(ctx, id)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, *p)
	}
	return claimed, nil
}

func (s *Store) CompleteStep(ctx context.Context, p journey.Participant, logs []journey.LogEntry, workerID string) error {
	var lost bool
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := s.q.exec(ctx, tx, "complete-step",
			string(p.Status), p.CurrentNodeID, toMillis(p.NextStepAt),
			nullMillis(p.ConvertedAt), nullMillis(p.ExitedAt), nullMillis(p.CompletedAt),
			p.ID, workerID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			lost = true
			return errClaimLost
		}
		return s.insertLogs(ctx, tx, logs)
	})
	if lost {
		return service.NewConflictError("store.complete_step",
			fmt.Sprintf("participant %s is not claimed by %s", p.ID, workerID))
	}
	if err != nil {
		return service.NewStoreError("store.complete_step", err)
	}
	return nil
}

var errClaimLost = errors.New("claim lost")

func (s *Store) ReleaseClaim(ctx context.Context, participantID, workerID string) error {
	if _, err := s.q.exec(ctx, s.db, "release-claim", participantID, workerID); err != nil {
		return service.NewStoreError("store.release_claim", err)
	}
	return nil
}

func (s *Store) insertLogs(ctx context.Context, ext sqlx.ExtContext, logs []journey.LogEntry) error {
	for _, entry := range logs {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		var details sql.NullString
		if len(entry.Details) > 0 {
			encoded, err := marshalJSON(entry.Details)
			if err != nil {
				return err
			}
			details = sql.NullString{String: encoded, Valid: true}
		}
		_, err := s.q.exec(ctx, ext, "insert-log",
			entry.ID, s.nextSeq(), entry.JourneyID, entry.ParticipantID, entry.NodeID,
			string(entry.EventType), string(entry.Status), details, toMillis(entry.CreatedAt))
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) ListLogs(ctx context.Context, q store.LogQuery) ([]journey.LogEntry, error) {
	var rows []logRow
	err := s.q.selectAll(ctx, s.db, &rows, "list-logs",
		q.JourneyID, q.JourneyID,
		q.ParticipantID, q.ParticipantID,
		string(q.EventType), string(q.EventType),
		q.EffectiveLimit(), q.Offset)
	if err != nil {
		return nil, service.NewStoreError("store.list_logs", err)
	}
	out := make([]journey.LogEntry, 0, len(rows))
	for _, row := range rows {
		entry, err := row.toLogEntry()
		if err != nil {
			return nil, service.NewStoreError("store.list_logs", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *Store) CountParticipants(ctx context.Context, journeyID string) (map[journey.ParticipantStatus]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"count"`
	}
	if err := s.q.selectAll(ctx, s.db, &rows, "count-participants", journeyID); err != nil {
		return nil, service.NewStoreError("store.count_participants", err)
	}
	counts := make(map[journey.ParticipantStatus]int, len(rows))
	for _, row := range rows {
		counts[journey.ParticipantStatus(row.Status)] = row.Count
	}
	return counts, nil
}

// Incentives

func (s *Store) GetIncentive(ctx context.Context, id string) (*incentive.Incentive, error) {
	var row incentiveRow
	if err := s.q.get(ctx, s.db, &row, "get-incentive", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, service.NewNotFoundError("store.get_incentive", "incentive", id)
		}
		return nil, service.NewStoreError("store.get_incentive", err)
	}
	inc := row.toIncentive()
	return &inc, nil
}

func (s *Store) ListIncentives(ctx context.Context, organizationID string) ([]incentive.Incentive, error) {
	var rows []incentiveRow
	if err := s.q.selectAll(ctx, s.db, &rows, "list-incentives", organizationID, organizationID); err != nil {
		return nil, service.NewStoreError("store.list_incentives", err)
	}
	out := make([]incentive.Incentive, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toIncentive())
	}
	return out, nil
}

func (s *Store) SaveIncentive(ctx context.Context, inc *incentive.Incentive) error {
	_, err := s.q.exec(ctx, s.db, "upsert-incentive",
		inc.ID, inc.OrganizationID, inc.Name, inc.SegmentID, string(inc.Type), inc.CouponID,
		inc.PersonalizeCoupon, inc.CouponPrefix, inc.WalletAmount, inc.Currency,
		inc.MaxGrantsPerUser, inc.Active, inc.Schedule,
		toMillis(inc.CreatedAt), toMillis(inc.UpdatedAt))
	if err != nil {
		return service.NewStoreError("store.save_incentive", err)
	}
	return nil
}

func (s *Store) CountGrants(ctx context.Context, incentiveID, userID string) (int, error) {
	var count int
	if err := s.q.get(ctx, s.db, &count, "count-grants", incentiveID, userID); err != nil {
		return 0, service.NewStoreError("store.count_grants", err)
	}
	return count, nil
}

func (s *Store) CreateGrant(ctx context.Context, g *incentive.Grant) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	_, err := s.q.exec(ctx, s.db, "insert-grant",
		g.ID, g.IncentiveID, g.OrganizationID, g.UserID, g.CouponID, g.CouponCode,
		g.WalletAmount, g.Currency, g.IdempotencyKey, nullMillis(g.RedeemedAt), toMillis(g.CreatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return service.NewConflictError("store.create_grant",
				fmt.Sprintf("grant with idempotency key %s already exists", g.IdempotencyKey))
		}
		return service.NewStoreError("store.create_grant", err)
	}
	return nil
}

func (s *Store) ListGrants(ctx context.Context, incentiveID string) ([]incentive.Grant, error) {
	var rows []grantRow
	if err := s.q.selectAll(ctx, s.db, &rows, "list-grants", incentiveID); err != nil {
		return nil, service.NewStoreError("store.list_grants", err)
	}
	out := make([]incentive.Grant, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toGrant())
	}
	return out, nil
}
