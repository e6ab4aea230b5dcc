package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// logonFrame is a captured FIX.4.4 Logon with order fields attached, used as
// the canonical round-trip vector.
const logonFrame = "8=FIX.4.4\x019=148\x0135=A\x0134=1080\x0149=TESTBUY1\x01" +
	"52=20180920-18:14:19.508\x0156=TESTSELL1\x0111=636730640278898634\x01" +
	"15=USD\x0121=2\x0138=7000\x0140=1\x0154=1\x0155=MSFT\x01" +
	"60=20180920-18:14:19.492\x0110=089\x01"

func TestDecodeLogonFrame(t *testing.T) {
	msg, consumed, err := Decode([]byte(logonFrame))
	require.NoError(t, err)
	assert.Equal(t, len(logonFrame), consumed)

	assert.Equal(t, BeginStringFIX44, msg.BeginString())
	assert.Equal(t, MsgTypeLogon, msg.MsgType())

	seq, err := msg.SeqNum()
	require.NoError(t, err)
	assert.Equal(t, uint64(1080), seq)

	sender, ok := msg.Get(TagSenderCompID)
	require.True(t, ok)
	assert.Equal(t, "TESTBUY1", sender.ValueString())

	target, ok := msg.Get(TagTargetCompID)
	require.True(t, ok)
	assert.Equal(t, "TESTSELL1", target.ValueString())

	symbol, ok := msg.Get(TagSymbol)
	require.True(t, ok)
	assert.Equal(t, "MSFT", symbol.ValueString())

	assert.Len(t, msg.Header(), 4)
	assert.Len(t, msg.Body(), 8)
	assert.False(t, msg.PossDup())
}

func TestDecodeReEncodeByteIdentical(t *testing.T) {
	msg, consumed, err := Decode([]byte(logonFrame))
	require.NoError(t, err)
	require.Equal(t, len(logonFrame), consumed)

	assert.Equal(t, []byte(logonFrame), Encode(msg))
}

func TestDecodeStreamTwoMessages(t *testing.T) {
	heartbeat := buildTestMessage(t, MsgTypeHeartbeat, 2)
	stream := append([]byte(logonFrame), Encode(heartbeat)...)

	first, consumed, err := Decode(stream)
	require.NoError(t, err)
	assert.Equal(t, MsgTypeLogon, first.MsgType())

	second, rest, err := Decode(stream[consumed:])
	require.NoError(t, err)
	assert.Equal(t, len(stream)-consumed, rest)
	assert.Equal(t, MsgTypeHeartbeat, second.MsgType())
	assert.True(t, heartbeat.Equal(second))
}

func TestDecodeIncomplete(t *testing.T) {
	full := []byte(logonFrame)

	t.Run("mid field", func(t *testing.T) {
		_, consumed, err := Decode(full[:5])
		assert.Equal(t, 0, consumed)
		var incomplete *IncompleteError
		require.ErrorAs(t, err, &incomplete)
		assert.Equal(t, 1, incomplete.Needed)
	})

	t.Run("needed hint after body length", func(t *testing.T) {
		// One byte short of a full frame.
		_, consumed, err := Decode(full[:len(full)-1])
		assert.Equal(t, 0, consumed)
		var incomplete *IncompleteError
		require.ErrorAs(t, err, &incomplete)
		assert.Equal(t, 1, incomplete.Needed)
	})

	t.Run("hint spans missing body", func(t *testing.T) {
		// Cut right after "35=A"'s SOH; the hint must cover the rest of
		// the declared body plus the checksum field.
		cut := len("8=FIX.4.4\x019=148\x0135=A\x01")
		_, consumed, err := Decode(full[:cut])
		assert.Equal(t, 0, consumed)
		var incomplete *IncompleteError
		require.ErrorAs(t, err, &incomplete)
		assert.Equal(t, len(full)-cut, incomplete.Needed)
	})

	t.Run("empty buffer", func(t *testing.T) {
		_, consumed, err := Decode(nil)
		assert.Equal(t, 0, consumed)
		var incomplete *IncompleteError
		assert.ErrorAs(t, err, &incomplete)
	})
}

func TestDecodeFramingErrors(t *testing.T) {
	t.Run("first tag not begin string", func(t *testing.T) {
		_, consumed, err := Decode([]byte("35=A\x018=FIX.4.4\x01"))
		assert.ErrorIs(t, err, ErrInvalidFraming)
		assert.Equal(t, len("35=A\x01"), consumed)
	})

	t.Run("second tag not body length", func(t *testing.T) {
		_, _, err := Decode([]byte("8=FIX.4.4\x0135=A\x01"))
		assert.ErrorIs(t, err, ErrInvalidFraming)
	})

	t.Run("body length not numeric", func(t *testing.T) {
		_, _, err := Decode([]byte("8=FIX.4.4\x019=abc\x0135=A\x01"))
		assert.ErrorIs(t, err, ErrInvalidFraming)
	})

	t.Run("missing equals sign", func(t *testing.T) {
		_, _, err := Decode([]byte("8FIX.4.4\x01"))
		assert.ErrorIs(t, err, ErrInvalidFraming)
	})

	t.Run("begin string repeated inside frame", func(t *testing.T) {
		raw := []byte("8=FIX.4.4\x019=20\x0135=0\x018=FIX.4.2\x0134=1\x0110=000\x01")
		_, _, err := Decode(raw)
		assert.ErrorIs(t, err, ErrInvalidFraming)
	})

	t.Run("checksum not three digits", func(t *testing.T) {
		raw := []byte("8=FIX.4.4\x019=5\x0135=0\x0110=89\x01")
		_, _, err := Decode(raw)
		assert.ErrorIs(t, err, ErrInvalidFraming)
	})
}

func TestDecodeBodyLengthCap(t *testing.T) {
	t.Run("absurd declaration is framing error not short read", func(t *testing.T) {
		raw := []byte("8=FIX.4.4\x019=999999999\x0135=A\x01")
		_, consumed, err := Decode(raw)
		assert.ErrorIs(t, err, ErrInvalidFraming)
		assert.Greater(t, consumed, 0)
	})

	t.Run("cap is configurable", func(t *testing.T) {
		prev := MaxBodyLength
		MaxBodyLength = 100
		defer func() { MaxBodyLength = prev }()

		_, _, err := Decode([]byte(logonFrame))
		assert.ErrorIs(t, err, ErrInvalidFraming)
	})
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	bad := []byte("8=FIX.9.9" + logonFrame[len("8=FIX.4.4"):])

	_, consumed, err := Decode(bad)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
	assert.Equal(t, len(bad), consumed, "consumed span reported for resync")
}

func TestDecodeBodyLengthMismatch(t *testing.T) {
	// Declared 147 against a measured body of 148 bytes.
	bad := []byte("8=FIX.4.4\x019=147\x01" + logonFrame[len("8=FIX.4.4\x019=148\x01"):])

	_, consumed, err := Decode(bad)
	var lengthErr *BodyLengthError
	require.ErrorAs(t, err, &lengthErr)
	assert.Equal(t, 147, lengthErr.Declared)
	assert.Equal(t, 148, lengthErr.Measured)
	assert.Equal(t, len(bad), consumed)
}

func TestDecodeChecksumMismatch(t *testing.T) {
	bad := []byte(logonFrame[:len(logonFrame)-4] + "088\x01")

	_, consumed, err := Decode(bad)
	var checksumErr *ChecksumError
	require.ErrorAs(t, err, &checksumErr)
	assert.Equal(t, uint8(89), checksumErr.Calculated)
	assert.Equal(t, uint8(88), checksumErr.Declared)
	assert.Equal(t, len(bad), consumed)
}

func TestDecodeValidationOrder(t *testing.T) {
	// Wrong version, wrong length and wrong checksum at once; the version
	// check must win.
	bad := []byte("8=FIX.9.9\x019=3\x0135=A\x0134=1\x0110=999\x01")
	_, _, err := Decode(bad)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)

	// Valid version, wrong length and wrong checksum; length must win.
	bad = []byte("8=FIX.4.4\x019=3\x0135=A\x0134=1\x0110=999\x01")
	var lengthErr *BodyLengthError
	_, _, err = Decode(bad)
	assert.ErrorAs(t, err, &lengthErr)
}

func TestDecodeBusinessMsgTypePassesThrough(t *testing.T) {
	order := buildTestMessage(t, MsgTypeNewOrderSingle, 7)
	msg, _, err := Decode(Encode(order))
	require.NoError(t, err)
	assert.Equal(t, MsgTypeNewOrderSingle, msg.MsgType())
	assert.False(t, msg.MsgType().IsSessionLevel())

	// Unknown two-character types decode too; rejecting them is a session
	// concern, not a framing concern.
	exotic := buildTestMessage(t, MsgType("ZZ"), 8)
	msg, _, err = Decode(Encode(exotic))
	require.NoError(t, err)
	assert.Equal(t, MsgType("ZZ"), msg.MsgType())
}

func TestDecodeDeterministic(t *testing.T) {
	buf := []byte(logonFrame)
	first, firstConsumed, err := Decode(buf)
	require.NoError(t, err)
	second, secondConsumed, err := Decode(buf)
	require.NoError(t, err)

	assert.Equal(t, firstConsumed, secondConsumed)
	assert.True(t, first.Equal(second))
}

func buildTestMessage(t *testing.T, msgType MsgType, seq uint64) *Message {
	t.Helper()

	b := NewBuilder(BeginStringFIX44, msgType).
		Header(MsgSeqNumField(seq)).
		Header(SenderCompIDField("TESTBUY1")).
		Header(SendingTimeField(testSendingTime(t))).
		Header(TargetCompIDField("TESTSELL1"))
	msg, err := b.Build()
	require.NoError(t, err)
	return msg
}
