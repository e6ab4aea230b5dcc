package codec

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewField(t *testing.T) {
	f, err := NewField(TagSymbol, []byte("MSFT"))
	require.NoError(t, err)
	assert.Equal(t, TagSymbol, f.Tag())
	assert.Equal(t, "MSFT", f.ValueString())
	assert.Equal(t, "55=MSFT", f.String())

	_, err = NewField(Tag(0), []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidTag)
	_, err = NewField(Tag(-7), []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidTag)

	for _, tag := range []Tag{TagBeginString, TagBodyLength, TagCheckSum} {
		_, err = NewField(tag, []byte("x"))
		assert.ErrorIs(t, err, ErrIncompatibleField)
	}
}

func TestNewFieldCopiesValue(t *testing.T) {
	value := []byte("MSFT")
	f, err := NewField(TagSymbol, value)
	require.NoError(t, err)

	value[0] = 'X'
	assert.Equal(t, "MSFT", f.ValueString())

	out := f.Value()
	out[0] = 'X'
	assert.Equal(t, "MSFT", f.ValueString())
}

func TestFieldAccessors(t *testing.T) {
	t.Run("uint64", func(t *testing.T) {
		v, err := MsgSeqNumField(1080).Uint64()
		require.NoError(t, err)
		assert.Equal(t, uint64(1080), v)

		_, err = SenderCompIDField("abc").Uint64()
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("bool", func(t *testing.T) {
		v, err := PossDupFlagField(true).Bool()
		require.NoError(t, err)
		assert.True(t, v)

		v, err = GapFillFlagField(false).Bool()
		require.NoError(t, err)
		assert.False(t, v)

		bad, err := StringField(TagPossDupFlag, "yes")
		require.NoError(t, err)
		_, err = bad.Bool()
		assert.ErrorIs(t, err, ErrInvalidValue)
	})

	t.Run("decimal", func(t *testing.T) {
		price, err := DecimalField(TagPrice, decimal.RequireFromString("101.25"))
		require.NoError(t, err)
		assert.Equal(t, "44=101.25", price.String())

		d, err := price.Decimal()
		require.NoError(t, err)
		assert.True(t, d.Equal(decimal.RequireFromString("101.25")))
	})

	t.Run("time", func(t *testing.T) {
		ts := time.Date(2018, 9, 20, 18, 14, 19, 508_000_000, time.UTC)
		f := SendingTimeField(ts)
		assert.Equal(t, "52=20180920-18:14:19.508", f.String())

		parsed, err := f.Time()
		require.NoError(t, err)
		assert.True(t, ts.Equal(parsed))

		// Second-precision timestamps appear in the wild as well.
		coarse, err := StringField(TagSendingTime, "20180920-18:14:19")
		require.NoError(t, err)
		parsed, err = coarse.Time()
		require.NoError(t, err)
		assert.Equal(t, 0, parsed.Nanosecond())
	})
}

func TestTypedFieldRendering(t *testing.T) {
	assert.Equal(t, "108=30", HeartBtIntField(30*time.Second).String())
	assert.Equal(t, "112=ping-1", TestReqIDField("ping-1").String())
	assert.Equal(t, "7=12", BeginSeqNoField(12).String())
	assert.Equal(t, "16=0", EndSeqNoField(0).String())
	assert.Equal(t, "36=20", NewSeqNoField(20).String())
	assert.Equal(t, "123=Y", GapFillFlagField(true).String())
	assert.Equal(t, "141=N", ResetSeqNumFlagField(false).String())
	assert.Equal(t, "98=0", EncryptMethodField(0).String())
	assert.Equal(t, "58=bye", TextField("bye").String())
	assert.Equal(t, "45=17", RefSeqNumField(17).String())
	assert.Equal(t, "373=5", SessionRejectReasonField(5).String())
}

func TestFieldEqual(t *testing.T) {
	a := MsgSeqNumField(5)
	b := MsgSeqNumField(5)
	c := MsgSeqNumField(6)

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(BeginSeqNoField(5)))
}

func TestParseBeginString(t *testing.T) {
	bs, err := ParseBeginString([]byte("FIX.4.4"))
	require.NoError(t, err)
	assert.Equal(t, BeginStringFIX44, bs)
	assert.True(t, bs.Valid())

	_, err = ParseBeginString([]byte("FIX.5.0"))
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
	assert.False(t, BeginString("").Valid())
}

func TestParseMsgType(t *testing.T) {
	for _, raw := range []string{"0", "A", "D", "8", "AE", "ZZ"} {
		mt, err := ParseMsgType([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, MsgType(raw), mt)
	}

	for _, raw := range []string{"", "ABC", "A=", "\x01"} {
		_, err := ParseMsgType([]byte(raw))
		assert.ErrorIs(t, err, ErrInvalidValue, "raw %q", raw)
	}

	assert.True(t, MsgTypeLogon.IsSessionLevel())
	assert.True(t, MsgTypeSequenceReset.IsSessionLevel())
	assert.False(t, MsgTypeNewOrderSingle.IsSessionLevel())
}

func TestIsHeaderTag(t *testing.T) {
	for _, tag := range []Tag{TagMsgSeqNum, TagSenderCompID, TagTargetCompID,
		TagSendingTime, TagPossDupFlag, TagOrigSendingTime} {
		assert.True(t, IsHeaderTag(tag), "tag %d", tag)
	}
	for _, tag := range []Tag{TagBeginString, TagMsgType, TagCheckSum,
		TagSymbol, TagHeartBtInt, TagTestReqID} {
		assert.False(t, IsHeaderTag(tag), "tag %d", tag)
	}
}
