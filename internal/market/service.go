package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service is the transaction coordinator for the share-market ledger.
// It holds no state of its own between calls; every operation is a single
// serializable transaction against the store.
type Service struct {
	db       *pgxpool.Pool
	log      *slog.Logger
	perTxCap int64
}

func NewService(db *pgxpool.Pool, logger *slog.Logger, perTxCap int64) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if perTxCap <= 0 {
		perTxCap = DefaultPerTransactionCap
	}
	return &Service{db: db, log: logger, perTxCap: perTxCap}
}

// runSerializable runs fn in a serializable transaction, retrying
// serialization conflicts with exponential backoff. Business-rule failures
// abort immediately; only SQLSTATE 40001 is retried, and after the attempt
// budget is spent the conflict escapes as the retryable ErrTxConflict.
func (s *Service) runSerializable(ctx context.Context, fn func(pgx.Tx) error) error {
	const maxAttempts = 8
	retryDelay := 75 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		if attempt == maxAttempts-1 {
			return ErrTxConflict
		}
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < 1200*time.Millisecond {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

type companyRow struct {
	Name             string
	OwnerID          string
	PriceCents       int64
	AvailableShares  int64
	RegisteredShares int64
}

func lockCompany(ctx context.Context, tx pgx.Tx, name string) (companyRow, error) {
	var c companyRow
	err := tx.QueryRow(ctx, `
		SELECT name, owner_user_id, price_cents, available_shares, registered_shares
		FROM companies
		WHERE name = $1
		FOR UPDATE
	`, name).Scan(&c.Name, &c.OwnerID, &c.PriceCents, &c.AvailableShares, &c.RegisteredShares)
	if err == pgx.ErrNoRows {
		return c, fmt.Errorf("%w: %s", ErrCompanyNotFound, name)
	}
	return c, err
}

func lockCredits(ctx context.Context, tx pgx.Tx, userID string) (int64, error) {
	var credits int64
	err := tx.QueryRow(ctx, `
		SELECT credits_cents
		FROM users
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&credits)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return credits, err
}

// addCredits applies a delta so concurrent grants never lose updates.
func addCredits(ctx context.Context, tx pgx.Tx, userID string, deltaCents int64) error {
	cmd, err := tx.Exec(ctx, `
		UPDATE users
		SET credits_cents = credits_cents + $1
		WHERE user_id = $2
	`, deltaCents, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return nil
}

func addHolding(ctx context.Context, tx pgx.Tx, userID, company string, shares int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO holdings (user_id, company_name, shares)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, company_name) DO UPDATE
		SET shares = holdings.shares + EXCLUDED.shares
	`, userID, company, shares)
	return err
}

// reduceHolding debits shares from a holding, deleting the row when it
// reaches zero so an absent row stays equivalent to zero shares.
func reduceHolding(ctx context.Context, tx pgx.Tx, userID, company string, shares int64) error {
	var current int64
	err := tx.QueryRow(ctx, `
		SELECT shares
		FROM holdings
		WHERE user_id = $1 AND company_name = $2
		FOR UPDATE
	`, userID, company).Scan(&current)
	if err == pgx.ErrNoRows {
		return fmt.Errorf("%w: no holding in %s", ErrInsufficientShares, company)
	}
	if err != nil {
		return err
	}
	if current < shares {
		return fmt.Errorf("%w: holding %d, requested %d", ErrInsufficientShares, current, shares)
	}
	next := current - shares
	if next == 0 {
		_, err = tx.Exec(ctx, `
			DELETE FROM holdings
			WHERE user_id = $1 AND company_name = $2
		`, userID, company)
		return err
	}
	_, err = tx.Exec(ctx, `
		UPDATE holdings
		SET shares = $1
		WHERE user_id = $2 AND company_name = $3
	`, next, userID, company)
	return err
}

func recordTransaction(ctx context.Context, tx pgx.Tx, userID, company, kind string, shares, priceCents, totalCents int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO transactions (id, user_id, company_name, kind, shares, price_cents, total_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), userID, company, kind, shares, priceCents, totalCents)
	return err
}

// Buy purchases shares from the company pool at the current price. Credits
// move buyer -> owner, shares move pool -> buyer, and the price is bumped
// by the volume impact model, all in one atomic unit.
func (s *Service) Buy(ctx context.Context, userID, company string, shares int64) (BuyResult, error) {
	var out BuyResult
	userID, err := validateUserID(userID)
	if err != nil {
		return out, err
	}
	company, err = validateCompanyName(company)
	if err != nil {
		return out, err
	}
	if shares <= 0 {
		return out, fmt.Errorf("%w: shares must be > 0", ErrValidation)
	}
	if shares > s.perTxCap {
		return out, fmt.Errorf("%w: cannot buy more than %d shares per transaction", ErrValidation, s.perTxCap)
	}

	err = s.runSerializable(ctx, func(tx pgx.Tx) error {
		c, err := lockCompany(ctx, tx, company)
		if err != nil {
			return err
		}
		if shares > c.AvailableShares {
			return fmt.Errorf("%w: only %d shares available", ErrInsufficientShares, c.AvailableShares)
		}
		cost := shares * c.PriceCents

		credits, err := lockCredits(ctx, tx, userID)
		if err != nil {
			return err
		}
		if credits < cost {
			return fmt.Errorf("%w: cost %s, balance %s", ErrInsufficientCredits, FormatCredits(cost), FormatCredits(credits))
		}

		newPrice, err := NextPrice(c.PriceCents, shares, c.AvailableShares, SideBuy)
		if err != nil {
			return err
		}

		if err := addCredits(ctx, tx, userID, -cost); err != nil {
			return err
		}
		if err := addCredits(ctx, tx, c.OwnerID, cost); err != nil {
			return err
		}
		if err := addHolding(ctx, tx, userID, company, shares); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE companies
			SET price_cents = $1,
			    available_shares = available_shares - $2,
			    updated_at = now()
			WHERE name = $3
		`, newPrice, shares, company); err != nil {
			return err
		}
		if err := recordTransaction(ctx, tx, userID, company, SideBuy, shares, c.PriceCents, cost); err != nil {
			return err
		}

		out.NewPriceCents = newPrice
		out.TotalCostCents = cost
		return nil
	})
	if err != nil {
		return BuyResult{}, err
	}
	s.log.Info("buy executed", "user", userID, "company", company, "shares", shares, "cost_cents", out.TotalCostCents, "new_price_cents", out.NewPriceCents)
	return out, nil
}

// Sell returns shares to the company pool at the current price; the company
// owner funds the proceeds, mirroring Buy so value is conserved between the
// two parties.
func (s *Service) Sell(ctx context.Context, userID, company string, shares int64) (SellResult, error) {
	var out SellResult
	userID, err := validateUserID(userID)
	if err != nil {
		return out, err
	}
	company, err = validateCompanyName(company)
	if err != nil {
		return out, err
	}
	if shares <= 0 {
		return out, fmt.Errorf("%w: shares must be > 0", ErrValidation)
	}

	err = s.runSerializable(ctx, func(tx pgx.Tx) error {
		c, err := lockCompany(ctx, tx, company)
		if err != nil {
			return err
		}
		proceeds := shares * c.PriceCents

		// Pool denominator is the pre-trade pool; if every share is
		// held by users there is nothing to price against.
		newPrice, err := NextPrice(c.PriceCents, shares, c.AvailableShares, SideSell)
		if err != nil {
			return err
		}

		ownerCredits, err := lockCredits(ctx, tx, c.OwnerID)
		if err != nil {
			return err
		}
		if ownerCredits < proceeds {
			return fmt.Errorf("%w: owner balance %s cannot cover proceeds %s", ErrInsufficientCredits, FormatCredits(ownerCredits), FormatCredits(proceeds))
		}

		if err := reduceHolding(ctx, tx, userID, company, shares); err != nil {
			return err
		}
		if err := addCredits(ctx, tx, userID, proceeds); err != nil {
			return err
		}
		if err := addCredits(ctx, tx, c.OwnerID, -proceeds); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE companies
			SET price_cents = $1,
			    available_shares = available_shares + $2,
			    updated_at = now()
			WHERE name = $3
		`, newPrice, shares, company); err != nil {
			return err
		}
		if err := recordTransaction(ctx, tx, userID, company, SideSell, shares, c.PriceCents, proceeds); err != nil {
			return err
		}

		out.NewPriceCents = newPrice
		out.TotalProceedsCents = proceeds
		return nil
	})
	if err != nil {
		return SellResult{}, err
	}
	s.log.Info("sell executed", "user", userID, "company", company, "shares", shares, "proceeds_cents", out.TotalProceedsCents, "new_price_cents", out.NewPriceCents)
	return out, nil
}

// GrantCredits increments a user's balance, creating the user row on first
// grant.
func (s *Service) GrantCredits(ctx context.Context, userID string, amountCents int64) error {
	userID, err := validateUserID(userID)
	if err != nil {
		return err
	}
	if amountCents <= 0 {
		return fmt.Errorf("%w: amount must be > 0", ErrValidation)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO users (user_id, credits_cents)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET credits_cents = users.credits_cents + EXCLUDED.credits_cents
	`, userID, amountCents)
	if err != nil {
		return err
	}
	s.log.Info("credits granted", "user", userID, "amount_cents", amountCents)
	return nil
}

func (s *Service) EnsureUser(ctx context.Context, userID string) error {
	userID, err := validateUserID(userID)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO users (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, userID)
	return err
}

// LinkIdentity binds an external nation id to a user, once. Rebinding an
// already-linked user or reusing a nation id fails with ErrAlreadyExists.
func (s *Service) LinkIdentity(ctx context.Context, userID, nationID string) error {
	userID, err := validateUserID(userID)
	if err != nil {
		return err
	}
	nationID = strings.TrimSpace(nationID)
	if nationID == "" {
		return fmt.Errorf("%w: nation id is required", ErrValidation)
	}
	cmd, err := s.db.Exec(ctx, `
		INSERT INTO users (user_id, nation_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET nation_id = EXCLUDED.nation_id
		WHERE users.nation_id IS NULL
	`, userID, nationID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: nation %s is linked to another user", ErrAlreadyExists, nationID)
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: user %s already linked", ErrAlreadyExists, userID)
	}
	return nil
}

func (s *Service) RegisterCompany(ctx context.Context, name, ownerID string, priceCents, totalShares int64) error {
	name, err := validateCompanyName(name)
	if err != nil {
		return err
	}
	ownerID, err = validateUserID(ownerID)
	if err != nil {
		return err
	}
	if priceCents <= 0 {
		return fmt.Errorf("%w: share price must be > 0", ErrValidation)
	}
	if totalShares <= 0 {
		return fmt.Errorf("%w: total shares must be > 0", ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO users (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`, ownerID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO companies (name, owner_user_id, price_cents, available_shares, registered_shares)
		VALUES ($1, $2, $3, $4, $4)
	`, name, ownerID, priceCents, totalShares); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: company %s", ErrAlreadyExists, name)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	s.log.Info("company registered", "company", name, "owner", ownerID, "price_cents", priceCents, "shares", totalShares)
	return nil
}

// EditCompany is the administrative override for price and pool size.
// Holdings are untouched, so the pool may not exceed the registered total.
func (s *Service) EditCompany(ctx context.Context, name string, newPriceCents, newAvailableShares int64) error {
	name, err := validateCompanyName(name)
	if err != nil {
		return err
	}
	if newPriceCents <= 0 {
		return fmt.Errorf("%w: share price must be > 0", ErrValidation)
	}
	if newAvailableShares < 0 {
		return fmt.Errorf("%w: available shares must be >= 0", ErrValidation)
	}

	return s.runSerializable(ctx, func(tx pgx.Tx) error {
		c, err := lockCompany(ctx, tx, name)
		if err != nil {
			return err
		}
		if newAvailableShares > c.RegisteredShares {
			return fmt.Errorf("%w: available shares %d exceed registered %d", ErrValidation, newAvailableShares, c.RegisteredShares)
		}
		_, err = tx.Exec(ctx, `
			UPDATE companies
			SET price_cents = $1,
			    available_shares = $2,
			    updated_at = now()
			WHERE name = $3
		`, newPriceCents, newAvailableShares, name)
		return err
	})
}

// RemoveCompany cascades deletion of holdings, price history and open
// trades before the company row itself.
func (s *Service) RemoveCompany(ctx context.Context, name string) error {
	name, err := validateCompanyName(name)
	if err != nil {
		return err
	}
	err = s.runSerializable(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM holdings WHERE company_name = $1`, name); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM price_history WHERE company_name = $1`, name); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM trades WHERE company_name = $1`, name); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, `DELETE FROM companies WHERE name = $1`, name)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", ErrCompanyNotFound, name)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("company removed", "company", name)
	return nil
}

// SampleCompanyPrices snapshots every company's current price into
// price_history. Timestamps are truncated to the second and conflicting
// rows are skipped, so re-invocation at the same instant is a no-op.
func (s *Service) SampleCompanyPrices(ctx context.Context) (int64, error) {
	cmd, err := s.db.Exec(ctx, `
		INSERT INTO price_history (company_name, sampled_at, price_cents)
		SELECT name, date_trunc('second', now()), price_cents
		FROM companies
		ON CONFLICT (company_name, sampled_at) DO NOTHING
	`)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "40001"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
