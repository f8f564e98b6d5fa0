package market

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

func (s *Service) GetBalance(ctx context.Context, userID string) (int64, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return 0, err
	}
	var credits int64
	err = s.db.QueryRow(ctx, `
		SELECT credits_cents
		FROM users
		WHERE user_id = $1
	`, userID).Scan(&credits)
	if err == pgx.ErrNoRows {
		return 0, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return credits, err
}

// GetHolding reports a user's share count in a company. An absent holding
// row, or a company that has been removed, reads as zero rather than an
// error.
func (s *Service) GetHolding(ctx context.Context, userID, company string) (int64, error) {
	userID, err := validateUserID(userID)
	if err != nil {
		return 0, err
	}
	company, err = validateCompanyName(company)
	if err != nil {
		return 0, err
	}
	var shares int64
	err = s.db.QueryRow(ctx, `
		SELECT shares
		FROM holdings
		WHERE user_id = $1 AND company_name = $2
	`, userID, company).Scan(&shares)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return shares, err
}

func (s *Service) ListCompanies(ctx context.Context) ([]CompanyView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT name, owner_user_id, price_cents, available_shares, registered_shares
		FROM companies
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CompanyView
	for rows.Next() {
		var c CompanyView
		if err := rows.Scan(&c.Name, &c.OwnerID, &c.PriceCents, &c.AvailableShares, &c.RegisteredShares); err != nil {
			return nil, err
		}
		c.DistributedShares = c.RegisteredShares - c.AvailableShares
		c.ValuationCents = c.RegisteredShares * c.PriceCents
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Service) GetCompany(ctx context.Context, name string) (CompanyView, error) {
	var c CompanyView
	name, err := validateCompanyName(name)
	if err != nil {
		return c, err
	}
	err = s.db.QueryRow(ctx, `
		SELECT name, owner_user_id, price_cents, available_shares, registered_shares
		FROM companies
		WHERE name = $1
	`, name).Scan(&c.Name, &c.OwnerID, &c.PriceCents, &c.AvailableShares, &c.RegisteredShares)
	if err == pgx.ErrNoRows {
		return c, fmt.Errorf("%w: %s", ErrCompanyNotFound, name)
	}
	if err != nil {
		return c, err
	}
	c.DistributedShares = c.RegisteredShares - c.AvailableShares
	c.ValuationCents = c.RegisteredShares * c.PriceCents
	return c, nil
}

// GetPriceHistory returns sampled prices within the period window
// (1h, 12h, 1d, 3d or 7d), oldest first.
func (s *Service) GetPriceHistory(ctx context.Context, company, period string) ([]PricePoint, error) {
	company, err := validateCompanyName(company)
	if err != nil {
		return nil, err
	}
	window, err := historyWindow(period)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT sampled_at, price_cents
		FROM price_history
		WHERE company_name = $1 AND sampled_at >= now() - $2::interval
		ORDER BY sampled_at
	`, company, window)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PricePoint
	for rows.Next() {
		var p PricePoint
		if err := rows.Scan(&p.SampledAt, &p.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Service) RecentTransactions(ctx context.Context, limit int) ([]TransactionRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, company_name, kind, shares, price_cents, total_cents, created_at
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TransactionRecord
	for rows.Next() {
		var t TransactionRecord
		if err := rows.Scan(&t.ID, &t.UserID, &t.CompanyName, &t.Kind, &t.Shares, &t.PriceCents, &t.TotalCents, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
