package fix

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradewire/fix/codec"
)

func TestNewOrderSingle(t *testing.T) {
	body, err := NewOrderSingle(NewOrderSingleParams{
		ClOrdID:      "ord-1",
		Symbol:       "MSFT",
		Side:         SideBuy,
		OrderQty:     decimal.NewFromInt(7000),
		Price:        decimal.RequireFromString("101.25"),
		TimeInForce:  TimeInForceDay,
		TransactTime: time.Date(2018, 9, 20, 18, 14, 19, 492_000_000, time.UTC),
	})
	require.NoError(t, err)

	want := map[codec.Tag]string{
		codec.TagClOrdID:      "ord-1",
		codec.TagSymbol:       "MSFT",
		codec.TagSide:         "1",
		codec.TagOrderQty:     "7000",
		codec.TagOrdType:      "2",
		codec.TagPrice:        "101.25",
		codec.TagTimeInForce:  "0",
		codec.TagTransactTime: "20180920-18:14:19.492",
	}
	require.Len(t, body, len(want))
	for _, f := range body {
		assert.Equal(t, want[f.Tag()], f.ValueString(), "tag %d", f.Tag())
	}
}

func TestNewOrderSingleMarketOmitsPrice(t *testing.T) {
	body, err := NewOrderSingle(NewOrderSingleParams{
		Symbol:   "MSFT",
		Side:     SideSell,
		OrdType:  OrdTypeMarket,
		OrderQty: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	for _, f := range body {
		assert.NotEqual(t, codec.TagPrice, f.Tag())
	}
}

func TestNewOrderSingleGeneratesClOrdID(t *testing.T) {
	params := NewOrderSingleParams{
		Symbol:   "MSFT",
		Side:     SideBuy,
		OrderQty: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(90),
	}

	first, err := NewOrderSingle(params)
	require.NoError(t, err)
	second, err := NewOrderSingle(params)
	require.NoError(t, err)

	firstID := fieldValue(t, first, codec.TagClOrdID)
	secondID := fieldValue(t, second, codec.TagClOrdID)
	assert.NotEmpty(t, firstID)
	assert.NotEqual(t, firstID, secondID)
}

func TestNewOrderSingleValidation(t *testing.T) {
	valid := NewOrderSingleParams{
		Symbol:   "MSFT",
		Side:     SideBuy,
		OrderQty: decimal.NewFromInt(1),
		Price:    decimal.NewFromInt(90),
	}

	t.Run("missing symbol", func(t *testing.T) {
		p := valid
		p.Symbol = ""
		_, err := NewOrderSingle(p)
		assert.ErrorIs(t, err, ErrInvalidParam)
	})

	t.Run("bad side", func(t *testing.T) {
		p := valid
		p.Side = "9"
		_, err := NewOrderSingle(p)
		assert.ErrorIs(t, err, ErrInvalidParam)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		p := valid
		p.OrderQty = decimal.Zero
		_, err := NewOrderSingle(p)
		assert.ErrorIs(t, err, ErrInvalidParam)
	})

	t.Run("limit without price", func(t *testing.T) {
		p := valid
		p.Price = decimal.Zero
		_, err := NewOrderSingle(p)
		assert.ErrorIs(t, err, ErrInvalidParam)
	})
}

func fieldValue(t *testing.T, fields []codec.Field, tag codec.Tag) string {
	t.Helper()

	for _, f := range fields {
		if f.Tag() == tag {
			return f.ValueString()
		}
	}
	t.Fatalf("tag %d not found", tag)
	return ""
}
