// Package codec implements the FIX wire format: a typed field model, a
// message builder with a required-field contract, a framing decoder and a
// deterministic encoder. The codec is pure computation over in-memory
// buffers; it performs no I/O and keeps no state between calls.
package codec

import (
	"bytes"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Tag identifies a FIX field. Tags are always positive.
type Tag int

// Session-level and common order-entry tags.
const (
	TagBeginSeqNo          Tag = 7
	TagBeginString         Tag = 8
	TagBodyLength          Tag = 9
	TagCheckSum            Tag = 10
	TagClOrdID             Tag = 11
	TagEndSeqNo            Tag = 16
	TagMsgSeqNum           Tag = 34
	TagMsgType             Tag = 35
	TagNewSeqNo            Tag = 36
	TagOrderQty            Tag = 38
	TagOrdType             Tag = 40
	TagPossDupFlag         Tag = 43
	TagPrice               Tag = 44
	TagRefSeqNum           Tag = 45
	TagSenderCompID        Tag = 49
	TagSenderSubID         Tag = 50
	TagSendingTime         Tag = 52
	TagSide                Tag = 54
	TagSymbol              Tag = 55
	TagTargetCompID        Tag = 56
	TagTargetSubID         Tag = 57
	TagText                Tag = 58
	TagTimeInForce         Tag = 59
	TagTransactTime        Tag = 60
	TagEncryptMethod       Tag = 98
	TagHeartBtInt          Tag = 108
	TagTestReqID           Tag = 112
	TagOnBehalfOfCompID    Tag = 115
	TagOrigSendingTime     Tag = 122
	TagGapFillFlag         Tag = 123
	TagDeliverToCompID     Tag = 128
	TagDeliverToSubID      Tag = 129
	TagResetSeqNumFlag     Tag = 141
	TagRefTagID            Tag = 371
	TagRefMsgType          Tag = 372
	TagSessionRejectReason Tag = 373
)

// UTCTimestampFormat is the FIX UTCTimestamp layout with millisecond
// precision used for SendingTime(52) and TransactTime(60).
const UTCTimestampFormat = "20060102-15:04:05.000"

// BeginString identifies the FIX protocol version carried in tag 8.
type BeginString string

const (
	BeginStringFIX40  BeginString = "FIX.4.0"
	BeginStringFIX41  BeginString = "FIX.4.1"
	BeginStringFIX42  BeginString = "FIX.4.2"
	BeginStringFIX43  BeginString = "FIX.4.3"
	BeginStringFIX44  BeginString = "FIX.4.4"
	BeginStringFIXT11 BeginString = "FIXT.1.1"
)

// ParseBeginString validates a raw tag 8 value against the recognized
// protocol version strings.
func ParseBeginString(value []byte) (BeginString, error) {
	switch bs := BeginString(value); bs {
	case BeginStringFIX40, BeginStringFIX41, BeginStringFIX42,
		BeginStringFIX43, BeginStringFIX44, BeginStringFIXT11:
		return bs, nil
	default:
		return "", ErrUnsupportedVersion
	}
}

// Valid reports whether the version is one of the recognized protocol
// version strings.
func (bs BeginString) Valid() bool {
	_, err := ParseBeginString([]byte(bs))
	return err == nil
}

// MsgType identifies the kind of message carried in tag 35.
type MsgType string

// Session-level message types. Business types (NewOrderSingle, Execution
// Report, ...) decode as well but are handed to the application instead of
// being interpreted by the session layer.
const (
	MsgTypeHeartbeat     MsgType = "0"
	MsgTypeTestRequest   MsgType = "1"
	MsgTypeResendRequest MsgType = "2"
	MsgTypeReject        MsgType = "3"
	MsgTypeSequenceReset MsgType = "4"
	MsgTypeLogout        MsgType = "5"
	MsgTypeLogon         MsgType = "A"

	MsgTypeNewOrderSingle     MsgType = "D"
	MsgTypeExecutionReport    MsgType = "8"
	MsgTypeOrderCancelRequest MsgType = "F"
)

// ParseMsgType validates a raw tag 35 value. FIX message types are one or
// two ASCII alphanumeric characters.
func ParseMsgType(value []byte) (MsgType, error) {
	if len(value) == 0 || len(value) > 2 {
		return "", ErrInvalidValue
	}
	for _, b := range value {
		if !isAlphanumeric(b) {
			return "", ErrInvalidValue
		}
	}
	return MsgType(value), nil
}

// IsSessionLevel reports whether the message type belongs to the session
// protocol (logon, liveness, sequencing) rather than the business layer.
func (mt MsgType) IsSessionLevel() bool {
	switch mt {
	case MsgTypeHeartbeat, MsgTypeTestRequest, MsgTypeResendRequest,
		MsgTypeReject, MsgTypeSequenceReset, MsgTypeLogout, MsgTypeLogon:
		return true
	}
	return false
}

func isAlphanumeric(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z'
}

// Field is one tag/value pair. Well-known session fields are constructed
// through the typed constructors below, which validate the value against the
// field's domain; NewField builds a custom field and validates only the tag.
type Field struct {
	tag   Tag
	value []byte
}

// NewField creates a custom field. The tag must be positive and must not
// collide with the framing tags 8 (BeginString), 9 (BodyLength) or
// 10 (CheckSum), which only the encoder may produce. The value content is
// not validated.
func NewField(tag Tag, value []byte) (Field, error) {
	if tag <= 0 {
		return Field{}, ErrInvalidTag
	}
	if tag == TagBeginString || tag == TagBodyLength || tag == TagCheckSum {
		return Field{}, ErrIncompatibleField
	}
	return Field{tag: tag, value: append([]byte(nil), value...)}, nil
}

// StringField creates a custom field from a string value.
func StringField(tag Tag, value string) (Field, error) {
	return NewField(tag, []byte(value))
}

// MsgSeqNumField creates a MsgSeqNum(34) field.
func MsgSeqNumField(seq uint64) Field {
	return Field{tag: TagMsgSeqNum, value: strconv.AppendUint(nil, seq, 10)}
}

// SenderCompIDField creates a SenderCompID(49) field.
func SenderCompIDField(id string) Field {
	return Field{tag: TagSenderCompID, value: []byte(id)}
}

// TargetCompIDField creates a TargetCompID(56) field.
func TargetCompIDField(id string) Field {
	return Field{tag: TagTargetCompID, value: []byte(id)}
}

// SendingTimeField creates a SendingTime(52) field in UTC.
func SendingTimeField(t time.Time) Field {
	return Field{tag: TagSendingTime, value: t.UTC().AppendFormat(nil, UTCTimestampFormat)}
}

// PossDupFlagField creates a PossDupFlag(43) field.
func PossDupFlagField(possDup bool) Field {
	return Field{tag: TagPossDupFlag, value: boolValue(possDup)}
}

// HeartBtIntField creates a HeartBtInt(108) field, in whole seconds.
func HeartBtIntField(interval time.Duration) Field {
	return Field{tag: TagHeartBtInt, value: strconv.AppendInt(nil, int64(interval/time.Second), 10)}
}

// TestReqIDField creates a TestReqID(112) field.
func TestReqIDField(id string) Field {
	return Field{tag: TagTestReqID, value: []byte(id)}
}

// BeginSeqNoField creates a BeginSeqNo(7) field.
func BeginSeqNoField(seq uint64) Field {
	return Field{tag: TagBeginSeqNo, value: strconv.AppendUint(nil, seq, 10)}
}

// EndSeqNoField creates an EndSeqNo(16) field. Zero means "to infinity".
func EndSeqNoField(seq uint64) Field {
	return Field{tag: TagEndSeqNo, value: strconv.AppendUint(nil, seq, 10)}
}

// NewSeqNoField creates a NewSeqNo(36) field.
func NewSeqNoField(seq uint64) Field {
	return Field{tag: TagNewSeqNo, value: strconv.AppendUint(nil, seq, 10)}
}

// GapFillFlagField creates a GapFillFlag(123) field.
func GapFillFlagField(gapFill bool) Field {
	return Field{tag: TagGapFillFlag, value: boolValue(gapFill)}
}

// ResetSeqNumFlagField creates a ResetSeqNumFlag(141) field.
func ResetSeqNumFlagField(reset bool) Field {
	return Field{tag: TagResetSeqNumFlag, value: boolValue(reset)}
}

// EncryptMethodField creates an EncryptMethod(98) field. Only method 0
// (none) is used by this engine.
func EncryptMethodField(method int) Field {
	return Field{tag: TagEncryptMethod, value: strconv.AppendInt(nil, int64(method), 10)}
}

// TextField creates a Text(58) field.
func TextField(text string) Field {
	return Field{tag: TagText, value: []byte(text)}
}

// RefSeqNumField creates a RefSeqNum(45) field.
func RefSeqNumField(seq uint64) Field {
	return Field{tag: TagRefSeqNum, value: strconv.AppendUint(nil, seq, 10)}
}

// SessionRejectReasonField creates a SessionRejectReason(373) field.
func SessionRejectReasonField(reason int) Field {
	return Field{tag: TagSessionRejectReason, value: strconv.AppendInt(nil, int64(reason), 10)}
}

// DecimalField creates a custom field from a decimal value, rendered without
// exponent notation.
func DecimalField(tag Tag, d decimal.Decimal) (Field, error) {
	return NewField(tag, []byte(d.String()))
}

func boolValue(v bool) []byte {
	if v {
		return []byte{'Y'}
	}
	return []byte{'N'}
}

// Tag returns the field's tag.
func (f Field) Tag() Tag { return f.tag }

// Value returns a copy of the raw field value.
func (f Field) Value() []byte { return append([]byte(nil), f.value...) }

// ValueString returns the raw field value as a string.
func (f Field) ValueString() string { return string(f.value) }

// String renders the field as "tag=value" for logging and debugging.
func (f Field) String() string {
	return strconv.Itoa(int(f.tag)) + "=" + string(f.value)
}

// Uint64 parses the value as an unsigned FIX integer.
func (f Field) Uint64() (uint64, error) {
	v, err := strconv.ParseUint(string(f.value), 10, 64)
	if err != nil {
		return 0, ErrInvalidValue
	}
	return v, nil
}

// Int parses the value as a signed FIX integer.
func (f Field) Int() (int, error) {
	v, err := strconv.Atoi(string(f.value))
	if err != nil {
		return 0, ErrInvalidValue
	}
	return v, nil
}

// Bool parses the value as a FIX boolean ("Y" or "N").
func (f Field) Bool() (bool, error) {
	if len(f.value) == 1 {
		switch f.value[0] {
		case 'Y':
			return true, nil
		case 'N':
			return false, nil
		}
	}
	return false, ErrInvalidValue
}

// Decimal parses the value as a decimal number.
func (f Field) Decimal() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(string(f.value))
	if err != nil {
		return decimal.Decimal{}, ErrInvalidValue
	}
	return d, nil
}

// Time parses the value as a FIX UTCTimestamp, with or without milliseconds.
func (f Field) Time() (time.Time, error) {
	s := string(f.value)
	if t, err := time.Parse(UTCTimestampFormat, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("20060102-15:04:05", s)
	if err != nil {
		return time.Time{}, ErrInvalidValue
	}
	return t, nil
}

// Equal reports field equality by (tag, value).
func (f Field) Equal(other Field) bool {
	return f.tag == other.tag && bytes.Equal(f.value, other.value)
}

// headerTags is the set of session header tags the decoder routes into the
// message header; every other tag accumulates into the body in arrival order.
var headerTags = map[Tag]struct{}{
	TagMsgSeqNum:        {},
	TagPossDupFlag:      {},
	TagSenderCompID:     {},
	TagSenderSubID:      {},
	TagSendingTime:      {},
	TagTargetCompID:     {},
	TagTargetSubID:      {},
	TagOnBehalfOfCompID: {},
	TagOrigSendingTime:  {},
	TagDeliverToCompID:  {},
	TagDeliverToSubID:   {},
}

// IsHeaderTag reports whether the tag is placed in the message header.
func IsHeaderTag(tag Tag) bool {
	_, ok := headerTags[tag]
	return ok
}
