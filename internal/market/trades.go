package market

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// PostTrade creates a standing sell offer. The seller's holding is checked
// at post time but not reserved; fills re-verify it. A seller may therefore
// post overlapping trades that jointly exceed their holding, and the excess
// simply fails at fill time.
func (s *Service) PostTrade(ctx context.Context, in PostTradeInput) (int64, error) {
	var tradeID int64
	sellerID, err := validateUserID(in.SellerID)
	if err != nil {
		return 0, err
	}
	company, err := validateCompanyName(in.CompanyName)
	if err != nil {
		return 0, err
	}
	if in.Shares <= 0 {
		return 0, fmt.Errorf("%w: shares must be > 0", ErrValidation)
	}
	if in.PricePerShareCents <= 0 {
		return 0, fmt.Errorf("%w: price per share must be > 0", ErrValidation)
	}

	err = s.runSerializable(ctx, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM companies WHERE name = $1)
		`, company).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", ErrCompanyNotFound, company)
		}

		var held int64
		err := tx.QueryRow(ctx, `
			SELECT shares
			FROM holdings
			WHERE user_id = $1 AND company_name = $2
		`, sellerID, company).Scan(&held)
		if err != nil && err != pgx.ErrNoRows {
			return err
		}
		if held < in.Shares {
			return fmt.Errorf("%w: holding %d, offered %d", ErrInsufficientShares, held, in.Shares)
		}

		var restricted any
		if in.RestrictedTo != "" {
			restricted = in.RestrictedTo
		}
		return tx.QueryRow(ctx, `
			INSERT INTO trades (seller_user_id, company_name, shares_available, price_per_share_cents, restricted_to)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, sellerID, company, in.Shares, in.PricePerShareCents, restricted).Scan(&tradeID)
	})
	if err != nil {
		return 0, err
	}
	s.log.Info("trade posted", "trade_id", tradeID, "seller", sellerID, "company", company, "shares", in.Shares, "price_cents", in.PricePerShareCents)
	return tradeID, nil
}

// FillTrade buys shares from a posted offer at its fixed price. Credits
// move buyer -> seller and shares seller -> buyer atomically; the trade row
// shrinks by the filled amount and is deleted when it reaches zero. The
// seller's live holding is re-verified here because posting does not
// reserve shares.
func (s *Service) FillTrade(ctx context.Context, tradeID int64, buyerID string, shares int64) (FillResult, error) {
	var out FillResult
	buyerID, err := validateUserID(buyerID)
	if err != nil {
		return out, err
	}
	if shares <= 0 {
		return out, fmt.Errorf("%w: shares must be > 0", ErrValidation)
	}

	err = s.runSerializable(ctx, func(tx pgx.Tx) error {
		var sellerID, company string
		var available, priceCents int64
		var restricted *string
		err := tx.QueryRow(ctx, `
			SELECT seller_user_id, company_name, shares_available, price_per_share_cents, restricted_to
			FROM trades
			WHERE id = $1
			FOR UPDATE
		`, tradeID).Scan(&sellerID, &company, &available, &priceCents, &restricted)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: id %d", ErrTradeNotFound, tradeID)
		}
		if err != nil {
			return err
		}
		if restricted != nil && *restricted != buyerID {
			return fmt.Errorf("%w: trade is restricted to another user", ErrUnauthorized)
		}
		if shares > available {
			return fmt.Errorf("%w: only %d shares left on trade", ErrInsufficientShares, available)
		}
		total := shares * priceCents

		credits, err := lockCredits(ctx, tx, buyerID)
		if err != nil {
			return err
		}
		if credits < total {
			return fmt.Errorf("%w: cost %s, balance %s", ErrInsufficientCredits, FormatCredits(total), FormatCredits(credits))
		}

		// Transfers the shares seller -> buyer; fails if the seller's
		// holding has dropped below the offer since posting.
		if err := reduceHolding(ctx, tx, sellerID, company, shares); err != nil {
			return err
		}
		if err := addHolding(ctx, tx, buyerID, company, shares); err != nil {
			return err
		}
		if err := addCredits(ctx, tx, buyerID, -total); err != nil {
			return err
		}
		if err := addCredits(ctx, tx, sellerID, total); err != nil {
			return err
		}

		remaining := available - shares
		if remaining == 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM trades WHERE id = $1`, tradeID); err != nil {
				return err
			}
		} else {
			if _, err := tx.Exec(ctx, `
				UPDATE trades
				SET shares_available = $1
				WHERE id = $2
			`, remaining, tradeID); err != nil {
				return err
			}
		}
		if err := recordTransaction(ctx, tx, buyerID, company, "fill", shares, priceCents, total); err != nil {
			return err
		}

		out.TotalPriceCents = total
		out.SharesBought = shares
		out.RemainingShares = remaining
		out.TradeClosed = remaining == 0
		return nil
	})
	if err != nil {
		return FillResult{}, err
	}
	s.log.Info("trade filled", "trade_id", tradeID, "buyer", buyerID, "shares", shares, "total_cents", out.TotalPriceCents, "closed", out.TradeClosed)
	return out, nil
}

// CancelTrade deletes an open offer; only the seller may cancel.
func (s *Service) CancelTrade(ctx context.Context, tradeID int64, requesterID string) error {
	requesterID, err := validateUserID(requesterID)
	if err != nil {
		return err
	}
	err = s.runSerializable(ctx, func(tx pgx.Tx) error {
		var sellerID string
		err := tx.QueryRow(ctx, `
			SELECT seller_user_id
			FROM trades
			WHERE id = $1
			FOR UPDATE
		`, tradeID).Scan(&sellerID)
		if err == pgx.ErrNoRows {
			return fmt.Errorf("%w: id %d", ErrTradeNotFound, tradeID)
		}
		if err != nil {
			return err
		}
		if sellerID != requesterID {
			return fmt.Errorf("%w: only the seller may cancel", ErrUnauthorized)
		}
		_, err = tx.Exec(ctx, `DELETE FROM trades WHERE id = $1`, tradeID)
		return err
	})
	if err != nil {
		return err
	}
	s.log.Info("trade cancelled", "trade_id", tradeID, "requester", requesterID)
	return nil
}

func (s *Service) ListOpenTrades(ctx context.Context) ([]TradeView, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, seller_user_id, company_name, shares_available, price_per_share_cents, COALESCE(restricted_to, ''), created_at
		FROM trades
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeView
	for rows.Next() {
		var t TradeView
		if err := rows.Scan(&t.ID, &t.SellerID, &t.CompanyName, &t.SharesAvailable, &t.PricePerShareCents, &t.RestrictedTo, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
