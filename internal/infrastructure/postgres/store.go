// Package postgres implements the Party Store on top of pgx,
// following a transaction-per-operation discipline: every method either
// fully commits or fully rolls back, never leaving partial state.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/baechuer/waitline/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	pool                 *pgxpool.Pool
	maxSeats             int
	checkinExpirySeconds int
	serviceTimeSeconds   int
}

func New(pool *pgxpool.Pool, maxSeats, checkinExpirySeconds, serviceTimeSeconds int) *Store {
	return &Store{
		pool:                 pool,
		maxSeats:             maxSeats,
		checkinExpirySeconds: checkinExpirySeconds,
		serviceTimeSeconds:   serviceTimeSeconds,
	}
}

var _ domain.PartyStore = (*Store)(nil)

func (s *Store) GetByPartyID(ctx context.Context, partyID string) (domain.Party, error) {
	var p domain.Party
	var status string
	err := s.pool.QueryRow(ctx, `
		SELECT id, party_id, name, size, queued_at, status, checkin_expiration, seat_expiration
		FROM parties
		WHERE party_id = $1
	`, partyID).Scan(&p.ID, &p.PartyID, &p.Name, &p.Size, &p.QueuedAt, &status, &p.CheckinExpiration, &p.SeatExpiration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Party{}, domain.ErrPartyNotFound
		}
		return domain.Party{}, err
	}
	p.Status = domain.Status(status)
	return p, nil
}

// Create inserts a new queued party and, in the same transaction, computes
// its position as the row number in the (queued_at, party_id) ordering of
// all queued rows.
func (s *Store) Create(ctx context.Context, name string, size int) (domain.CreateResult, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.CreateResult{}, domain.ErrPartyCouldNotBeCreated
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var partyID string
	for attempt := 0; attempt < 5; attempt++ {
		candidate, err := newPartyID()
		if err != nil {
			return domain.CreateResult{}, domain.ErrPartyCouldNotBeCreated
		}

		// A savepoint per attempt keeps a unique violation from aborting tx.
		sp, err := tx.Begin(ctx)
		if err != nil {
			return domain.CreateResult{}, domain.ErrPartyCouldNotBeCreated
		}
		_, err = sp.Exec(ctx, `
			INSERT INTO parties (party_id, name, size, queued_at, status)
			VALUES ($1, $2, $3, NOW(), 'queued')
		`, candidate, name, size)
		if err == nil {
			if err := sp.Commit(ctx); err != nil {
				return domain.CreateResult{}, domain.ErrPartyCouldNotBeCreated
			}
			partyID = candidate
			break
		}
		_ = sp.Rollback(ctx)
		if isUniqueViolation(err) {
			continue // party_id collision, retry with a fresh one
		}
		return domain.CreateResult{}, domain.ErrPartyCouldNotBeCreated
	}
	if partyID == "" {
		return domain.CreateResult{}, domain.ErrPartyCouldNotBeCreated
	}

	var position int
	err = tx.QueryRow(ctx, `
		SELECT row_num FROM (
			SELECT party_id, ROW_NUMBER() OVER (ORDER BY queued_at, party_id) AS row_num
			FROM parties
			WHERE status = 'queued'
		) ranked
		WHERE party_id = $1
	`, partyID).Scan(&position)
	if err != nil {
		return domain.CreateResult{}, domain.ErrPartyCouldNotBeCreated
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CreateResult{}, domain.ErrPartyCouldNotBeCreated
	}

	return domain.CreateResult{PartyID: partyID, PositionInQueue: position}, nil
}

func (s *Store) DeleteByPartyID(ctx context.Context, partyID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM parties WHERE party_id = $1`, partyID)
	if err != nil {
		return domain.ErrPartyCouldNotBeDeleted
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPartyNotFound
	}
	return nil
}

// AvailableSeats returns MAX_SEATS - occupied, where occupied sums size over
// seated rows not yet expired plus all checking-in rows.
func (s *Store) AvailableSeats(ctx context.Context) (int, error) {
	var occupied int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(size), 0)
		FROM parties
		WHERE (status = 'seated' AND seat_expiration > NOW())
		   OR status = 'checking-in'
	`).Scan(&occupied)
	if err != nil {
		return 0, err
	}
	available := s.maxSeats - occupied
	if available < 0 {
		available = 0
	}
	return available, nil
}

func (s *Store) CurrentQueuePositions(ctx context.Context) ([]domain.QueuePosition, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT party_id, ROW_NUMBER() OVER (ORDER BY queued_at, party_id) AS row_num
		FROM parties
		WHERE status = 'queued'
		ORDER BY queued_at, party_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.QueuePosition
	for rows.Next() {
		var qp domain.QueuePosition
		if err := rows.Scan(&qp.PartyID, &qp.Row); err != nil {
			return nil, err
		}
		out = append(out, qp)
	}
	return out, rows.Err()
}

// PartiesToDequeue selects the longest FIFO prefix of queued rows whose
// cumulative size is <= available, via a monotonic running-sum window
// filtered by a simple <= predicate. Because the running sum
// never decreases along the ordering, this is exactly the "stop at first
// breach" policy the spec requires, with no post-processing loop needed.
func (s *Store) PartiesToDequeue(ctx context.Context, available int) ([]string, error) {
	if available <= 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT party_id FROM (
			SELECT party_id,
			       SUM(size) OVER (ORDER BY queued_at, party_id) AS running_total
			FROM parties
			WHERE status = 'queued'
		) ranked
		WHERE running_total <= $1
		ORDER BY running_total
	`, available)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetCheckingIn atomically flips the given ids to checking-in and returns
// the shared expiration. Re-running it on ids that already advanced has no
// effect beyond re-timing them, because it only touches existing rows
//; the Dequeue Service never passes already-advanced ids.
func (s *Store) SetCheckingIn(ctx context.Context, partyIDs []string) (time.Time, error) {
	if len(partyIDs) == 0 {
		return time.Time{}, nil
	}

	var expiration time.Time
	err := s.pool.QueryRow(ctx, `
		UPDATE parties
		SET status = 'checking-in',
		    checkin_expiration = NOW() + ($2 * INTERVAL '1 second')
		WHERE party_id = ANY($1)
		RETURNING checkin_expiration
	`, partyIDs, s.checkinExpirySeconds).Scan(&expiration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}
	return expiration, nil
}

func (s *Store) DeleteCheckinExpired(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM parties
		WHERE status = 'checking-in' AND checkin_expiration < NOW()
		RETURNING party_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetSeated only succeeds if the row is currently checking-in, guarding
// against early or late check-in attempts.
func (s *Store) SetSeated(ctx context.Context, partyID string, size int) (time.Time, error) {
	var expiration time.Time
	err := s.pool.QueryRow(ctx, `
		UPDATE parties
		SET status = 'seated',
		    seat_expiration = NOW() + ($2 * $3 * INTERVAL '1 second'),
		    checkin_expiration = NULL
		WHERE party_id = $1 AND status = 'checking-in'
		RETURNING seat_expiration
	`, partyID, s.serviceTimeSeconds, size).Scan(&expiration)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, domain.ErrPartyNotFound
		}
		return time.Time{}, err
	}
	return expiration, nil
}

func (s *Store) RemoveExpiredSeats(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM parties
		WHERE status = 'seated' AND seat_expiration < NOW()
		RETURNING party_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
