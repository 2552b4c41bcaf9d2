package history

import (
	"math/big"
	"testing"
	"time"

	"tokendash/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	addrA = "0xAAAaaAaAAaaAAaaAAaAaaaAaaAAaAaAAaAAaaAAA"
	addrB = "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"
	addrC = "0xcCcCCcCCCCcCCCCcCCccCCCCcCCCccccCCcCCccC"
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name     string
		ev       models.TransferEvent
		account  string
		relevant bool
		dir      models.Direction
	}{
		{"outbound", models.TransferEvent{From: addrA, To: addrB}, addrA, true, models.Outbound},
		{"inbound", models.TransferEvent{From: addrB, To: addrA}, addrA, true, models.Inbound},
		{"self transfer is outbound", models.TransferEvent{From: addrA, To: addrA}, addrA, true, models.Outbound},
		{"case insensitive from", models.TransferEvent{From: "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", To: addrB}, addrA, true, models.Outbound},
		{"case insensitive to", models.TransferEvent{From: addrB, To: "0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"}, "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", true, models.Inbound},
		{"unrelated", models.TransferEvent{From: addrB, To: addrC}, addrA, false, models.Inbound},
		{"no account", models.TransferEvent{From: addrA, To: addrB}, "", false, models.Inbound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			relevant, dir := Match(tt.ev, tt.account)
			assert.Equal(t, tt.relevant, relevant)
			if tt.relevant {
				assert.Equal(t, tt.dir, dir)
			}
		})
	}
}

func TestFormatUnits(t *testing.T) {
	tests := []struct {
		raw      *big.Int
		decimals int
		expected string
	}{
		{ether(1), 18, "1"},
		{big.NewInt(1_500_000), 6, "1.5"},
		{big.NewInt(1), 18, "0.000000000000000001"},
		{big.NewInt(0), 18, "0"},
		{big.NewInt(42), 0, "42"},
		{nil, 18, "0"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, FormatUnits(tt.raw, tt.decimals), "FormatUnits(%v, %d)", tt.raw, tt.decimals)
	}
}

func TestParseUnits(t *testing.T) {
	got, err := ParseUnits("1", 18)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Cmp(ether(1)))

	got, err = ParseUnits(" 2.5 ", 6)
	require.NoError(t, err)
	assert.Equal(t, int64(2_500_000), got.Int64())

	_, err = ParseUnits("", 18)
	assert.ErrorIs(t, err, ErrEmptyAmount)

	_, err = ParseUnits("abc", 18)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = ParseUnits("-1", 18)
	assert.ErrorIs(t, err, ErrNegativeAmount)

	_, err = ParseUnits("0.001", 2)
	assert.ErrorIs(t, err, ErrTooPrecise)
}

func TestFormat(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ev := models.TransferEvent{TransactionHash: "0x01", From: addrA, To: addrB, RawAmount: ether(1)}

	rec := Format(ev, models.Outbound, 18, now)

	assert.Equal(t, "0x01", rec.ID)
	assert.Equal(t, addrA, rec.From)
	assert.Equal(t, addrB, rec.To)
	assert.Equal(t, "1", rec.Amount)
	assert.Equal(t, now, rec.ObservedAt)
	assert.Equal(t, models.Outbound, rec.Direction)
	assert.Equal(t, addrB, rec.Counterparty())
}

func TestReduce_ReversesScanOrder(t *testing.T) {
	events := []models.TransferEvent{
		{TransactionHash: "0x01", From: addrA, To: addrB, RawAmount: ether(5)},
		{TransactionHash: "0x02", From: addrB, To: addrC, RawAmount: ether(9)},
		{TransactionHash: "0x03", From: addrC, To: addrA, RawAmount: ether(2)},
	}

	records := Reduce(events, addrA, 18, time.Now())

	require.Len(t, records, 2)
	assert.Equal(t, "0x03", records[0].ID)
	assert.Equal(t, models.Inbound, records[0].Direction)
	assert.Equal(t, "2", records[0].Amount)
	assert.Equal(t, "0x01", records[1].ID)
	assert.Equal(t, models.Outbound, records[1].Direction)
	assert.Equal(t, "5", records[1].Amount)
}

func TestReduce_NoAccount(t *testing.T) {
	events := []models.TransferEvent{{TransactionHash: "0x01", From: addrA, To: addrB, RawAmount: ether(1)}}
	assert.Empty(t, Reduce(events, "", 18, time.Now()))
}

func TestStore_ReplaceAllKeepsOrder(t *testing.T) {
	s := NewStore()
	s.Prepend(models.TransactionRecord{ID: "old"})

	in := []models.TransactionRecord{{ID: "c"}, {ID: "b"}, {ID: "a"}, {ID: "b"}}
	s.ReplaceAll(in)

	assert.Equal(t, in, s.All())
	assert.Equal(t, 4, s.Len())
}

func TestStore_PrependIsIdempotent(t *testing.T) {
	s := NewStore()
	s.ReplaceAll([]models.TransactionRecord{{ID: "a"}})

	assert.True(t, s.Prepend(models.TransactionRecord{ID: "b"}))
	assert.Equal(t, 2, s.Len())

	assert.False(t, s.Prepend(models.TransactionRecord{ID: "b", Amount: "other"}))
	assert.Equal(t, 2, s.Len())

	all := s.All()
	assert.Equal(t, "b", all[0].ID)
	assert.Empty(t, all[0].Amount)
	assert.Equal(t, "a", all[1].ID)
}

func TestStore_PrependAfterReplaceSeesNewIDs(t *testing.T) {
	s := NewStore()
	s.Prepend(models.TransactionRecord{ID: "x"})
	s.ReplaceAll([]models.TransactionRecord{{ID: "y"}})

	assert.True(t, s.Prepend(models.TransactionRecord{ID: "x"}))
	assert.False(t, s.Prepend(models.TransactionRecord{ID: "y"}))
}

func TestStore_AllReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Prepend(models.TransactionRecord{ID: "a"})

	snap := s.All()
	snap[0].ID = "mutated"

	assert.Equal(t, "a", s.All()[0].ID)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore()
	s.Prepend(models.TransactionRecord{ID: "a"})
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Prepend(models.TransactionRecord{ID: "a"}))
}
