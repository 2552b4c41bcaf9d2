package history

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"tokendash/pkg/models"

	"github.com/shopspring/decimal"
)

var (
	ErrEmptyAmount    = errors.New("amount is empty")
	ErrInvalidAmount  = errors.New("amount is not a valid number")
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrTooPrecise     = errors.New("amount has more fractional digits than the token supports")
)

// FormatUnits renders raw as a fixed-point decimal string scaled down by
// 10^decimals, with trailing zeros trimmed.
func FormatUnits(raw *big.Int, decimals int) string {
	if raw == nil {
		return "0"
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).String()
}

// UnitsToFloat is FormatUnits as a float64, for charts.
func UnitsToFloat(raw *big.Int, decimals int) float64 {
	if raw == nil {
		return 0
	}
	return decimal.NewFromBigInt(raw, -int32(decimals)).InexactFloat64()
}

// ParseUnits converts a decimal amount into raw token units.
func ParseUnits(amount string, decimals int) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, ErrEmptyAmount
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.IsInteger() {
		return nil, ErrTooPrecise
	}
	return scaled.BigInt(), nil
}

// Format turns a transfer event into a history record observed at now.
func Format(ev models.TransferEvent, dir models.Direction, decimals int, now time.Time) models.TransactionRecord {
	return models.TransactionRecord{
		ID:         ev.TransactionHash,
		From:       ev.From,
		To:         ev.To,
		Amount:     FormatUnits(ev.RawAmount, decimals),
		ObservedAt: now,
		Direction:  dir,
	}
}

// Reduce filters a backfill scan down to records involving account and
// returns them most-recent-first, which is the reverse of scan order.
func Reduce(events []models.TransferEvent, account string, decimals int, now time.Time) []models.TransactionRecord {
	records := make([]models.TransactionRecord, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		ok, dir := Match(events[i], account)
		if !ok {
			continue
		}
		records = append(records, Format(events[i], dir, decimals, now))
	}
	return records
}
