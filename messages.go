package fix

import (
	"time"

	"github.com/rs/xid"
	"github.com/shopspring/decimal"

	"github.com/tradewire/fix/codec"
)

// NewOrderSingleParams carries the application-level inputs for a
// NewOrderSingle(D) body. ClOrdID is generated when left empty.
type NewOrderSingleParams struct {
	ClOrdID      string
	Symbol       string
	Side         string
	OrdType      string
	OrderQty     decimal.Decimal
	Price        decimal.Decimal
	TimeInForce  string
	TransactTime time.Time
}

// NewOrderSingle builds the body fields of a NewOrderSingle(D) message. The
// session adds the header and sequencing when the body is sent.
func NewOrderSingle(p NewOrderSingleParams) ([]codec.Field, error) {
	if len(p.Symbol) == 0 {
		return nil, ErrInvalidParam
	}
	if p.Side != SideBuy && p.Side != SideSell {
		return nil, ErrInvalidParam
	}
	if p.OrderQty.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidParam
	}
	if p.OrdType == "" {
		p.OrdType = OrdTypeLimit
	}
	if p.OrdType == OrdTypeLimit && p.Price.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidParam
	}
	if p.ClOrdID == "" {
		p.ClOrdID = xid.New().String()
	}
	if p.TransactTime.IsZero() {
		p.TransactTime = time.Now()
	}

	fields := make([]codec.Field, 0, 8)
	appendString := func(tag codec.Tag, value string) error {
		f, err := codec.StringField(tag, value)
		if err != nil {
			return err
		}
		fields = append(fields, f)
		return nil
	}

	if err := appendString(codec.TagClOrdID, p.ClOrdID); err != nil {
		return nil, err
	}
	if err := appendString(codec.TagSymbol, p.Symbol); err != nil {
		return nil, err
	}
	if err := appendString(codec.TagSide, p.Side); err != nil {
		return nil, err
	}
	qty, err := codec.DecimalField(codec.TagOrderQty, p.OrderQty)
	if err != nil {
		return nil, err
	}
	fields = append(fields, qty)
	if err := appendString(codec.TagOrdType, p.OrdType); err != nil {
		return nil, err
	}
	if p.OrdType == OrdTypeLimit {
		price, err := codec.DecimalField(codec.TagPrice, p.Price)
		if err != nil {
			return nil, err
		}
		fields = append(fields, price)
	}
	if p.TimeInForce != "" {
		if err := appendString(codec.TagTimeInForce, p.TimeInForce); err != nil {
			return nil, err
		}
	}
	ts, err := codec.NewField(codec.TagTransactTime,
		p.TransactTime.UTC().AppendFormat(nil, codec.UTCTimestampFormat))
	if err != nil {
		return nil, err
	}
	fields = append(fields, ts)

	return fields, nil
}

func logonBody(heartBtInt time.Duration, resetSeqNum bool) []codec.Field {
	fields := []codec.Field{
		codec.EncryptMethodField(0),
		codec.HeartBtIntField(heartBtInt),
	}
	if resetSeqNum {
		fields = append(fields, codec.ResetSeqNumFlagField(true))
	}
	return fields
}

func heartbeatBody(testReqID string) []codec.Field {
	if testReqID == "" {
		return nil
	}
	return []codec.Field{codec.TestReqIDField(testReqID)}
}

// newTestRequestBody generates a fresh TestReqID so the answering Heartbeat
// can be correlated.
func newTestRequestBody() (string, []codec.Field) {
	id := xid.New().String()
	return id, []codec.Field{codec.TestReqIDField(id)}
}

func resendRequestBody(begin, end uint64) []codec.Field {
	return []codec.Field{
		codec.BeginSeqNoField(begin),
		codec.EndSeqNoField(end),
	}
}

func logoutBody(text string) []codec.Field {
	if text == "" {
		return nil
	}
	return []codec.Field{codec.TextField(text)}
}

func rejectBody(refSeq uint64, reason int, text string) []codec.Field {
	fields := []codec.Field{
		codec.RefSeqNumField(refSeq),
		codec.SessionRejectReasonField(reason),
	}
	if text != "" {
		fields = append(fields, codec.TextField(text))
	}
	return fields
}
