package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/visioninhope/BetM3/internal/domain"
)

// StateStore implements domain.StateStore. Each committed transition is
// written in a single transaction, so a crash never leaves half an operation
// behind.
type StateStore struct {
	pool *pgxpool.Pool
}

// NewStateStore creates a new StateStore backed by the given connection pool.
func NewStateStore(pool *pgxpool.Pool) *StateStore {
	return &StateStore{pool: pool}
}

// Commit implements domain.Committer.
func (s *StateStore) Commit(ctx context.Context, tr domain.Transition) error {
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		if tr.Params != nil {
			if err := upsertParams(ctx, tx, *tr.Params, tr.BetCounter); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(ctx,
				`UPDATE registry_params SET bet_counter = $1, updated_at = NOW() WHERE id = 1`,
				int64(tr.BetCounter)); err != nil {
				return fmt.Errorf("update bet counter: %w", err)
			}
		}
		if tr.Bet != nil {
			if err := upsertBet(ctx, tx, tr.Bet); err != nil {
				return err
			}
		}
		for _, t := range tr.Transfers {
			if err := applyTransfer(ctx, tx, t); err != nil {
				return err
			}
		}
		for _, ev := range tr.Events {
			if err := insertEvent(ctx, tx, tr, ev); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres: commit %s: %w", tr.Op, err)
	}
	return nil
}

// Seed writes the initial parameters and genesis balances. It is a no-op
// when the registry has already been initialised.
func (s *StateStore) Seed(ctx context.Context, params domain.Params, genesis map[common.Address]*big.Int) error {
	err := inTx(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM registry_params WHERE id = 1)`).Scan(&exists); err != nil {
			return fmt.Errorf("check params: %w", err)
		}
		if exists {
			return nil
		}
		if err := upsertParams(ctx, tx, params, 0); err != nil {
			return err
		}
		for addr, amt := range genesis {
			if _, err := tx.Exec(ctx,
				`INSERT INTO balances (address, amount) VALUES ($1, $2::numeric)
				 ON CONFLICT (address) DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW()`,
				addr.Hex(), amt.String()); err != nil {
				return fmt.Errorf("seed balance %s: %w", addr.Hex(), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("postgres: seed registry: %w", err)
	}
	return nil
}

// LoadSnapshot reads the complete registry. It returns domain.ErrNotFound
// when the registry has never been seeded.
func (s *StateStore) LoadSnapshot(ctx context.Context) (*domain.Snapshot, error) {
	snap := &domain.Snapshot{TakenAt: time.Now().UTC()}

	params, counter, err := s.loadParams(ctx)
	if err != nil {
		return nil, err
	}
	snap.Params = params
	snap.BetCounter = counter

	bets, err := s.loadBets(ctx)
	if err != nil {
		return nil, err
	}
	snap.Bets = bets

	balances, err := s.loadBalances(ctx)
	if err != nil {
		return nil, err
	}
	snap.Balances = balances
	return snap, nil
}

// ListUnarchived returns ids of settled bets not yet exported.
func (s *StateStore) ListUnarchived(ctx context.Context, limit int) ([]uint64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id FROM bets WHERE resolution_finalized AND archived_at IS NULL ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unarchived bets: %w", err)
	}
	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (uint64, error) {
		var id int64
		err := row.Scan(&id)
		return uint64(id), err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan unarchived bets: %w", err)
	}
	return ids, nil
}

// MarkArchived records that a bet has been exported.
func (s *StateStore) MarkArchived(ctx context.Context, betID uint64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE bets SET archived_at = NOW() WHERE id = $1`, int64(betID))
	if err != nil {
		return fmt.Errorf("postgres: mark bet %d archived: %w", betID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func upsertParams(ctx context.Context, tx pgx.Tx, p domain.Params, counter uint64) error {
	const query = `
		INSERT INTO registry_params (
			id, owner, custody, min_stake, default_duration_secs,
			resolution_period_secs, yield_rate_bps, max_duration_days,
			admin_requires_timeout, bet_counter, updated_at
		) VALUES (1, $1, $2, $3::numeric, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			custody = EXCLUDED.custody,
			min_stake = EXCLUDED.min_stake,
			default_duration_secs = EXCLUDED.default_duration_secs,
			resolution_period_secs = EXCLUDED.resolution_period_secs,
			yield_rate_bps = EXCLUDED.yield_rate_bps,
			max_duration_days = EXCLUDED.max_duration_days,
			admin_requires_timeout = EXCLUDED.admin_requires_timeout,
			bet_counter = EXCLUDED.bet_counter,
			updated_at = NOW()`

	minStake := "0"
	if p.MinStake != nil {
		minStake = p.MinStake.String()
	}
	_, err := tx.Exec(ctx, query,
		p.Owner.Hex(), p.Custody.Hex(), minStake,
		int64(p.DefaultDuration/time.Second), int64(p.ResolutionPeriod/time.Second),
		int64(p.YieldRateBps), int64(p.MaxDurationDays),
		p.AdminRequiresTimeout, int64(counter),
	)
	if err != nil {
		return fmt.Errorf("upsert params: %w", err)
	}
	return nil
}

func upsertBet(ctx context.Context, tx pgx.Tx, b *domain.Bet) error {
	const betQuery = `
		INSERT INTO bets (
			id, creator, condition, created_at, expiration, creator_prediction,
			total_stake_true, total_stake_false, resolved, winning_outcome,
			resolution_finalized, cancelled, finalized_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9, $10, $11, $12, $13, NOW())
		ON CONFLICT (id) DO UPDATE SET
			total_stake_true = EXCLUDED.total_stake_true,
			total_stake_false = EXCLUDED.total_stake_false,
			resolved = EXCLUDED.resolved,
			winning_outcome = EXCLUDED.winning_outcome,
			resolution_finalized = EXCLUDED.resolution_finalized,
			cancelled = EXCLUDED.cancelled,
			finalized_at = EXCLUDED.finalized_at,
			updated_at = NOW()`

	_, err := tx.Exec(ctx, betQuery,
		int64(b.ID), b.Creator.Hex(), b.Condition, b.CreatedAt, b.Expiration, b.CreatorPrediction,
		b.TotalStakeTrue.String(), b.TotalStakeFalse.String(),
		b.Resolved, b.WinningOutcome, b.ResolutionFinalized, b.Cancelled, b.FinalizedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert bet %d: %w", b.ID, err)
	}

	// Participants are immutable once recorded.
	for i, p := range b.Participants {
		if _, err := tx.Exec(ctx,
			`INSERT INTO bet_participants (bet_id, address, seq, stake, prediction, joined_at)
			 VALUES ($1, $2, $3, $4::numeric, $5, $6)
			 ON CONFLICT (bet_id, address) DO NOTHING`,
			int64(b.ID), p.Address.Hex(), i, p.Stake.String(), p.Prediction, p.JoinedAt); err != nil {
			return fmt.Errorf("insert participant %s on bet %d: %w", p.Address.Hex(), b.ID, err)
		}
	}
	for addr, outcome := range b.Votes {
		if _, err := tx.Exec(ctx,
			`INSERT INTO bet_votes (bet_id, address, outcome) VALUES ($1, $2, $3)
			 ON CONFLICT (bet_id, address) DO UPDATE SET outcome = EXCLUDED.outcome, updated_at = NOW()
			 WHERE bet_votes.outcome IS DISTINCT FROM EXCLUDED.outcome`,
			int64(b.ID), addr.Hex(), outcome); err != nil {
			return fmt.Errorf("upsert vote %s on bet %d: %w", addr.Hex(), b.ID, err)
		}
	}
	return nil
}

func applyTransfer(ctx context.Context, tx pgx.Tx, t domain.Transfer) error {
	const query = `
		INSERT INTO balances (address, amount) VALUES ($1, $2::numeric)
		ON CONFLICT (address) DO UPDATE SET amount = balances.amount + EXCLUDED.amount, updated_at = NOW()`

	if _, err := tx.Exec(ctx, query, t.From.Hex(), new(big.Int).Neg(t.Amount).String()); err != nil {
		return fmt.Errorf("debit %s: %w", t.From.Hex(), err)
	}
	if _, err := tx.Exec(ctx, query, t.To.Hex(), t.Amount.String()); err != nil {
		return fmt.Errorf("credit %s: %w", t.To.Hex(), err)
	}
	return nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, tr domain.Transition, ev domain.Event) error {
	payload, err := json.Marshal(ev.Data)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", ev.Type, err)
	}
	var betID *int64
	if ev.BetID != 0 {
		id := int64(ev.BetID)
		betID = &id
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO bet_events (bet_id, type, op, caller, at, payload) VALUES ($1, $2, $3, $4, $5, $6)`,
		betID, string(ev.Type), tr.Op, tr.Caller.Hex(), ev.At, payload); err != nil {
		return fmt.Errorf("insert %s event: %w", ev.Type, err)
	}
	return nil
}

func (s *StateStore) loadParams(ctx context.Context) (domain.Params, uint64, error) {
	var (
		p                      domain.Params
		owner, custody, minStr string
		durSecs, periodSecs    int64
		bps, maxDays, counter  int64
	)
	err := s.pool.QueryRow(ctx, `
		SELECT owner, custody, min_stake::text, default_duration_secs, resolution_period_secs,
		       yield_rate_bps, max_duration_days, admin_requires_timeout, bet_counter
		FROM registry_params WHERE id = 1`).Scan(
		&owner, &custody, &minStr, &durSecs, &periodSecs,
		&bps, &maxDays, &p.AdminRequiresTimeout, &counter,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Params{}, 0, domain.ErrNotFound
		}
		return domain.Params{}, 0, fmt.Errorf("postgres: load params: %w", err)
	}

	p.Owner = common.HexToAddress(owner)
	p.Custody = common.HexToAddress(custody)
	p.MinStake = parseAmount(minStr)
	p.DefaultDuration = time.Duration(durSecs) * time.Second
	p.ResolutionPeriod = time.Duration(periodSecs) * time.Second
	p.YieldRateBps = uint64(bps)
	p.MaxDurationDays = uint64(maxDays)
	return p, uint64(counter), nil
}

func (s *StateStore) loadBets(ctx context.Context) ([]*domain.Bet, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, creator, condition, created_at, expiration, creator_prediction,
		       total_stake_true::text, total_stake_false::text, resolved, winning_outcome,
		       resolution_finalized, cancelled, finalized_at
		FROM bets ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load bets: %w", err)
	}
	defer rows.Close()

	var bets []*domain.Bet
	byID := make(map[uint64]*domain.Bet)
	for rows.Next() {
		var (
			b                domain.Bet
			id               int64
			creator, yes, no string
		)
		if err := rows.Scan(&id, &creator, &b.Condition, &b.CreatedAt, &b.Expiration, &b.CreatorPrediction,
			&yes, &no, &b.Resolved, &b.WinningOutcome, &b.ResolutionFinalized, &b.Cancelled, &b.FinalizedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		b.ID = uint64(id)
		b.Creator = common.HexToAddress(creator)
		b.TotalStakeTrue = parseAmount(yes)
		b.TotalStakeFalse = parseAmount(no)
		b.Votes = make(map[common.Address]bool)
		bets = append(bets, &b)
		byID[b.ID] = &b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load bets rows: %w", err)
	}

	if err := s.loadParticipants(ctx, byID); err != nil {
		return nil, err
	}
	if err := s.loadVotes(ctx, byID); err != nil {
		return nil, err
	}
	return bets, nil
}

func (s *StateStore) loadParticipants(ctx context.Context, byID map[uint64]*domain.Bet) error {
	rows, err := s.pool.Query(ctx, `
		SELECT bet_id, address, stake::text, prediction, joined_at
		FROM bet_participants ORDER BY bet_id, seq`)
	if err != nil {
		return fmt.Errorf("postgres: load participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			betID       int64
			addr, stake string
			p           domain.Participant
		)
		if err := rows.Scan(&betID, &addr, &stake, &p.Prediction, &p.JoinedAt); err != nil {
			return fmt.Errorf("postgres: scan participant: %w", err)
		}
		b, ok := byID[uint64(betID)]
		if !ok {
			continue
		}
		p.Address = common.HexToAddress(addr)
		p.Stake = parseAmount(stake)
		b.Participants = append(b.Participants, p)
	}
	return rows.Err()
}

func (s *StateStore) loadVotes(ctx context.Context, byID map[uint64]*domain.Bet) error {
	rows, err := s.pool.Query(ctx, `SELECT bet_id, address, outcome FROM bet_votes`)
	if err != nil {
		return fmt.Errorf("postgres: load votes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			betID   int64
			addr    string
			outcome bool
		)
		if err := rows.Scan(&betID, &addr, &outcome); err != nil {
			return fmt.Errorf("postgres: scan vote: %w", err)
		}
		if b, ok := byID[uint64(betID)]; ok {
			b.Votes[common.HexToAddress(addr)] = outcome
		}
	}
	return rows.Err()
}

func (s *StateStore) loadBalances(ctx context.Context) (map[common.Address]*big.Int, error) {
	rows, err := s.pool.Query(ctx, `SELECT address, amount::text FROM balances`)
	if err != nil {
		return nil, fmt.Errorf("postgres: load balances: %w", err)
	}
	defer rows.Close()

	out := make(map[common.Address]*big.Int)
	for rows.Next() {
		var addr, amount string
		if err := rows.Scan(&addr, &amount); err != nil {
			return nil, fmt.Errorf("postgres: scan balance: %w", err)
		}
		out[common.HexToAddress(addr)] = parseAmount(amount)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: load balances rows: %w", err)
	}
	return out, nil
}

// parseAmount reads a NUMERIC(78,0) rendered as text. Malformed input
// yields zero.
func parseAmount(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return new(big.Int)
	}
	return v
}

var (
	_ domain.StateStore   = (*StateStore)(nil)
	_ domain.ArchiveIndex = (*StateStore)(nil)
)
