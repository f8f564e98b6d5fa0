package market

import "time"

type CompanyView struct {
	Name             string `json:"name"`
	OwnerID          string `json:"owner_id"`
	PriceCents       int64  `json:"price_cents"`
	AvailableShares  int64  `json:"available_shares"`
	RegisteredShares int64  `json:"registered_shares"`
	// DistributedShares counts shares held by users rather than the pool.
	DistributedShares int64 `json:"distributed_shares"`
	ValuationCents    int64 `json:"valuation_cents"`
}

type PricePoint struct {
	SampledAt  time.Time `json:"sampled_at"`
	PriceCents int64     `json:"price_cents"`
}

type TradeView struct {
	ID                 int64     `json:"id"`
	SellerID           string    `json:"seller_id"`
	CompanyName        string    `json:"company_name"`
	SharesAvailable    int64     `json:"shares_available"`
	PricePerShareCents int64     `json:"price_per_share_cents"`
	RestrictedTo       string    `json:"restricted_to,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

type BuyResult struct {
	NewPriceCents  int64 `json:"new_price_cents"`
	TotalCostCents int64 `json:"total_cost_cents"`
}

type SellResult struct {
	NewPriceCents      int64 `json:"new_price_cents"`
	TotalProceedsCents int64 `json:"total_proceeds_cents"`
}

type PostTradeInput struct {
	SellerID           string
	CompanyName        string
	Shares             int64
	PricePerShareCents int64
	// RestrictedTo limits the trade to one recipient; empty means open.
	RestrictedTo string
}

type FillResult struct {
	TotalPriceCents int64 `json:"total_price_cents"`
	SharesBought    int64 `json:"shares_bought"`
	RemainingShares int64 `json:"remaining_shares"`
	TradeClosed     bool  `json:"trade_closed"`
}

type TransactionRecord struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CompanyName string    `json:"company_name"`
	Kind        string    `json:"kind"`
	Shares      int64     `json:"shares"`
	PriceCents  int64     `json:"price_cents"`
	TotalCents  int64     `json:"total_cents"`
	CreatedAt   time.Time `json:"created_at"`
}
