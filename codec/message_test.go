package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderEmptyLogoutFails(t *testing.T) {
	_, err := NewBuilder(BeginStringFIX44, MsgTypeLogout).Build()

	var missing *MissingRequiredFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, TagMsgSeqNum, missing.Tag)
}

func TestBuilderMissingRequiredNamesFirstUnmet(t *testing.T) {
	_, err := NewBuilder(BeginStringFIX44, MsgTypeHeartbeat).
		Header(MsgSeqNumField(1)).
		Header(SenderCompIDField("A")).
		Build()

	var missing *MissingRequiredFieldError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, TagSendingTime, missing.Tag)
}

func TestBuilderCompleteSucceeds(t *testing.T) {
	msg, err := NewBuilder(BeginStringFIX44, MsgTypeLogon).
		Header(MsgSeqNumField(1)).
		Header(SenderCompIDField("A")).
		Header(SendingTimeField(testSendingTime(t))).
		Header(TargetCompIDField("B")).
		Field(EncryptMethodField(0)).
		Field(HeartBtIntField(30 * time.Second)).
		Build()
	require.NoError(t, err)

	assert.Equal(t, MsgTypeLogon, msg.MsgType())
	hbInt, ok := msg.Get(TagHeartBtInt)
	require.True(t, ok)
	assert.Equal(t, "30", hbInt.ValueString())
}

func TestBuilderRejectsFramingTags(t *testing.T) {
	f := Field{tag: TagCheckSum, value: []byte("000")}
	b := NewBuilder(BeginStringFIX44, MsgTypeHeartbeat).Field(f)
	assert.ErrorIs(t, b.Err(), ErrIncompatibleField)

	_, err := b.Build()
	assert.ErrorIs(t, err, ErrIncompatibleField)
}

func TestBuilderPlacement(t *testing.T) {
	t.Run("body tag in header", func(t *testing.T) {
		symbol, err := StringField(TagSymbol, "MSFT")
		require.NoError(t, err)

		b := NewBuilder(BeginStringFIX44, MsgTypeNewOrderSingle).Header(symbol)
		assert.ErrorIs(t, b.Err(), ErrNotHeaderField)
	})

	t.Run("header tag in body", func(t *testing.T) {
		b := NewBuilder(BeginStringFIX44, MsgTypeHeartbeat).Field(MsgSeqNumField(1))
		assert.ErrorIs(t, b.Err(), ErrNotBodyField)
	})
}

func TestBuilderDuplicateRequiredField(t *testing.T) {
	b := NewBuilder(BeginStringFIX44, MsgTypeHeartbeat).
		Header(MsgSeqNumField(1)).
		Header(MsgSeqNumField(2))

	var duplicate *DuplicateRequiredFieldError
	require.ErrorAs(t, b.Err(), &duplicate)
	assert.Equal(t, TagMsgSeqNum, duplicate.Tag)
}

func TestBuilderOptionalHeaderLastWriteWins(t *testing.T) {
	msg, err := NewBuilder(BeginStringFIX44, MsgTypeHeartbeat).
		Header(MsgSeqNumField(1)).
		Header(SenderCompIDField("A")).
		Header(SendingTimeField(testSendingTime(t))).
		Header(TargetCompIDField("B")).
		Header(PossDupFlagField(false)).
		Header(PossDupFlagField(true)).
		Build()
	require.NoError(t, err)

	assert.True(t, msg.PossDup())
	assert.Len(t, msg.Header(), 5)
}

func TestBuilderLatchesFirstError(t *testing.T) {
	symbol, err := StringField(TagSymbol, "MSFT")
	require.NoError(t, err)

	// The placement error comes first; later valid calls must not mask it.
	b := NewBuilder(BeginStringFIX44, MsgTypeHeartbeat).
		Header(symbol).
		Header(MsgSeqNumField(1)).
		Header(MsgSeqNumField(1))

	assert.ErrorIs(t, b.Err(), ErrNotHeaderField)
	_, err = b.Build()
	assert.ErrorIs(t, err, ErrNotHeaderField)
}

func TestBuilderSpentAfterBuild(t *testing.T) {
	b := NewBuilder(BeginStringFIX44, MsgTypeHeartbeat).
		Header(MsgSeqNumField(1)).
		Header(SenderCompIDField("A")).
		Header(SendingTimeField(testSendingTime(t))).
		Header(TargetCompIDField("B"))

	first, err := b.Build()
	require.NoError(t, err)
	require.NotNil(t, first)

	_, err = b.Build()
	assert.ErrorIs(t, err, ErrBuilderSpent)
}

func TestBuilderUnsupportedVersion(t *testing.T) {
	_, err := NewBuilder(BeginString("FIX.9.9"), MsgTypeHeartbeat).
		Header(MsgSeqNumField(1)).
		Header(SenderCompIDField("A")).
		Header(SendingTimeField(testSendingTime(t))).
		Header(TargetCompIDField("B")).
		Build()
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestMessageGetSearchesHeaderThenBody(t *testing.T) {
	msg, _, err := Decode([]byte(logonFrame))
	require.NoError(t, err)

	_, ok := msg.Get(Tag(9999))
	assert.False(t, ok)

	seq, ok := msg.Get(TagMsgSeqNum)
	require.True(t, ok)
	assert.Equal(t, "1080", seq.ValueString())
}
