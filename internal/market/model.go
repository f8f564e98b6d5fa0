package market

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// All credit amounts and share prices are stored as integer cents.
	MinPriceCents = int64(1)

	DefaultPerTransactionCap = int64(50)

	MaxCompanyNameLen = 64
)

var (
	ErrValidation          = errors.New("invalid input")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInsufficientShares  = errors.New("insufficient shares")
	ErrCompanyNotFound     = errors.New("company not found")
	ErrTradeNotFound       = errors.New("trade not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNoLiquidity         = errors.New("no liquidity: share pool is empty")
	ErrInvalidPriceState   = errors.New("price floor breached: operator intervention required")
	ErrTxConflict          = errors.New("transaction conflict, retry")
)

func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// FormatCredits renders integer cents as a fixed two-digit amount for
// presentation boundaries. Storage and arithmetic stay in cents.
func FormatCredits(cents int64) string {
	return CentsToDecimal(cents).StringFixed(2)
}

// ParseCredits converts a decimal amount string to cents. Sub-cent
// precision is rejected rather than silently rounded.
func ParseCredits(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not a number", ErrValidation, s)
	}
	cents := d.Shift(2)
	if !cents.IsInteger() {
		return 0, fmt.Errorf("%w: amount %q has sub-cent precision", ErrValidation, s)
	}
	return cents.IntPart(), nil
}

func validateCompanyName(name string) (string, error) {
	clean := strings.TrimSpace(name)
	if clean == "" {
		return "", fmt.Errorf("%w: company name is required", ErrValidation)
	}
	if len(clean) > MaxCompanyNameLen {
		return "", fmt.Errorf("%w: company name too long (max %d chars)", ErrValidation, MaxCompanyNameLen)
	}
	return clean, nil
}

func validateUserID(id string) (string, error) {
	clean := strings.TrimSpace(id)
	if clean == "" {
		return "", fmt.Errorf("%w: user id is required", ErrValidation)
	}
	return clean, nil
}

// historyWindow maps a chart period token to the lookback window for
// price-history queries.
func historyWindow(period string) (time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(period)) {
	case "1h":
		return time.Hour, nil
	case "12h":
		return 12 * time.Hour, nil
	case "1d":
		return 24 * time.Hour, nil
	case "3d":
		return 3 * 24 * time.Hour, nil
	case "7d":
		return 7 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("%w: period must be one of 1h, 12h, 1d, 3d, 7d", ErrValidation)
	}
}
