package codec

import (
	"bytes"
	"errors"
	"strconv"
)

// SOH is the single-byte field delimiter of the FIX wire format.
const SOH byte = 0x01

// checksumFieldLen is the wire length of a trailer field "10=NNN" + SOH.
const checksumFieldLen = 7

// MaxBodyLength caps the BodyLength(9) a frame may declare. A larger
// declaration is rejected as invalid framing instead of making the caller
// buffer for bytes that will never arrive.
var MaxBodyLength = 1 << 20

var (
	errIncompleteField = errors.New("field runs past end of buffer")
	errMalformedField  = errors.New("malformed field")
)

// scanner reads tag=value pairs out of a raw buffer. It keeps no state
// beyond a cursor, so decoding the same buffer twice yields identical
// results.
type scanner struct {
	buf []byte
	pos int
}

// field lexes the next tag=value pair. The returned value aliases the
// underlying buffer and must be copied before it outlives the call.
func (s *scanner) field() (Tag, []byte, error) {
	start := s.pos
	i := s.pos
	for i < len(s.buf) && s.buf[i] >= '0' && s.buf[i] <= '9' {
		i++
	}
	if i >= len(s.buf) {
		return 0, nil, errIncompleteField
	}
	if i == start || s.buf[i] != '=' {
		return 0, nil, errMalformedField
	}
	tag, err := strconv.Atoi(string(s.buf[start:i]))
	if err != nil || tag <= 0 {
		return 0, nil, errMalformedField
	}

	valueStart := i + 1
	j := valueStart
	for j < len(s.buf) && s.buf[j] != SOH {
		j++
	}
	if j >= len(s.buf) {
		return 0, nil, errIncompleteField
	}
	s.pos = j + 1
	return Tag(tag), s.buf[valueStart:j], nil
}

// resync returns the byte count through the next SOH, or the whole buffer
// when none is left. Used to report a consumable span on malformed input.
func (s *scanner) resync() int {
	if idx := bytes.IndexByte(s.buf[s.pos:], SOH); idx >= 0 {
		return s.pos + idx + 1
	}
	return len(s.buf)
}

type rawField struct {
	tag   Tag
	value []byte
}

// Decode parses the first complete FIX message out of buf.
//
// It returns the decoded message and the number of bytes consumed; bytes
// beyond consumed belong to the next message and stay with the caller. On a
// validation failure the consumed span is still reported so the caller can
// resynchronize the stream. When the buffer ends before a complete message
// (no CheckSum field yet), Decode returns an IncompleteError with a hint of
// how many more bytes are needed; the caller buffers and retries. Decode
// keeps no state between calls.
func Decode(buf []byte) (*Message, int, error) {
	s := &scanner{buf: buf}

	// BeginString(8) must be the first field.
	tag, beginValue, err := s.field()
	if err != nil {
		if errors.Is(err, errIncompleteField) {
			return nil, 0, &IncompleteError{Needed: 1}
		}
		return nil, s.resync(), ErrInvalidFraming
	}
	if tag != TagBeginString {
		return nil, s.pos, ErrInvalidFraming
	}

	// BodyLength(9) must be the second field.
	tag, lengthValue, err := s.field()
	if err != nil {
		if errors.Is(err, errIncompleteField) {
			return nil, 0, &IncompleteError{Needed: 1}
		}
		return nil, s.resync(), ErrInvalidFraming
	}
	if tag != TagBodyLength {
		return nil, s.pos, ErrInvalidFraming
	}
	bodyLen, err := strconv.Atoi(string(lengthValue))
	if err != nil || bodyLen < 0 || bodyLen > MaxBodyLength {
		return nil, s.pos, ErrInvalidFraming
	}

	// The declared body span starts right after BodyLength's trailing SOH
	// and ends right before the CheckSum tag.
	bodyStart := s.pos
	expectTotal := bodyStart + bodyLen + checksumFieldLen

	incomplete := func() *IncompleteError {
		needed := expectTotal - len(buf)
		if needed < 1 {
			needed = 1
		}
		return &IncompleteError{Needed: needed}
	}
	frameSpan := func() int {
		if expectTotal <= len(buf) {
			return expectTotal
		}
		return len(buf)
	}

	// MsgType(35) must be the third field.
	tag, typeValue, err := s.field()
	if err != nil {
		if errors.Is(err, errIncompleteField) {
			return nil, 0, incomplete()
		}
		return nil, frameSpan(), ErrInvalidFraming
	}
	if tag != TagMsgType {
		return nil, frameSpan(), ErrInvalidFraming
	}
	rawMsgType := append([]byte(nil), typeValue...)

	// Remaining fields in arrival order, until CheckSum(10) terminates the
	// frame. The framing tags must not reappear inside the message.
	var fields []rawField
	var checksumTagPos int
	var checksumValue []byte
	for {
		fieldStart := s.pos
		tag, value, err := s.field()
		if err != nil {
			if errors.Is(err, errIncompleteField) {
				return nil, 0, incomplete()
			}
			return nil, frameSpan(), ErrInvalidFraming
		}
		if tag == TagCheckSum {
			if len(value) != 3 || !allDigits(value) {
				return nil, frameSpan(), ErrInvalidFraming
			}
			checksumTagPos = fieldStart
			checksumValue = value
			break
		}
		if tag == TagBeginString || tag == TagBodyLength || tag == TagMsgType {
			return nil, frameSpan(), ErrInvalidFraming
		}
		fields = append(fields, rawField{tag: tag, value: append([]byte(nil), value...)})
	}
	consumed := s.pos

	// Frame is complete; validate in order: version, body length, checksum.
	beginString, err := ParseBeginString(beginValue)
	if err != nil {
		return nil, consumed, err
	}

	measured := checksumTagPos - bodyStart
	if measured != bodyLen {
		return nil, consumed, &BodyLengthError{Declared: bodyLen, Measured: measured}
	}

	declared, _ := strconv.Atoi(string(checksumValue))
	calculated := checksum(buf[:checksumTagPos])
	if declared > 255 || calculated != uint8(declared) {
		return nil, consumed, &ChecksumError{Calculated: calculated, Declared: uint8(declared)}
	}

	msgType, err := ParseMsgType(rawMsgType)
	if err != nil {
		return nil, consumed, err
	}

	msg := &Message{beginString: beginString, msgType: msgType}
	for _, f := range fields {
		if IsHeaderTag(f.tag) {
			msg.header = append(msg.header, Field(f))
			continue
		}
		msg.body = append(msg.body, Field(f))
	}
	return msg, consumed, nil
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
