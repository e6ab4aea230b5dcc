package codec

import (
	"strconv"
)

// Encode renders m to the wire. BeginString(8) and BodyLength(9) lead the
// frame, MsgType(35) follows, then the header fields, then the body fields,
// each in the order the message carries them, and CheckSum(10) closes it.
// BodyLength and CheckSum are computed here, never taken from the message,
// so an encoded frame always passes Decode's validation.
func Encode(m *Message) []byte {
	body := make([]byte, 0, 64)
	body = appendField(body, TagMsgType, []byte(m.msgType))
	for _, f := range m.header {
		body = appendField(body, f.tag, f.value)
	}
	for _, f := range m.body {
		body = appendField(body, f.tag, f.value)
	}

	out := make([]byte, 0, len(body)+32)
	out = appendField(out, TagBeginString, []byte(m.beginString))
	out = appendField(out, TagBodyLength, []byte(strconv.Itoa(len(body))))
	out = append(out, body...)

	// CheckSum covers every byte written so far and is always rendered as
	// exactly three digits.
	sum := checksum(out)
	out = append(out, '1', '0', '=')
	out = append(out, '0'+sum/100, '0'+sum/10%10, '0'+sum%10)
	out = append(out, SOH)
	return out
}

func appendField(dst []byte, tag Tag, value []byte) []byte {
	dst = strconv.AppendInt(dst, int64(tag), 10)
	dst = append(dst, '=')
	dst = append(dst, value...)
	return append(dst, SOH)
}

// checksum is the FIX trailer hash, the byte sum modulo 256 of everything
// preceding the CheckSum field.
func checksum(b []byte) uint8 {
	var sum uint8
	for _, c := range b {
		sum += c
	}
	return sum
}
