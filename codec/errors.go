package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFraming is returned when a buffer does not follow the FIX
	// field layout: BeginString(8) first, BodyLength(9) second, MsgType(35)
	// third and CheckSum(10) last with a 3-digit value.
	ErrInvalidFraming = errors.New("message does not follow FIX framing")

	// ErrUnsupportedVersion is returned when BeginString is not a recognized
	// protocol version string.
	ErrUnsupportedVersion = errors.New("unsupported FIX version")

	// ErrIncompatibleField is returned when a message carries a field whose
	// tag is reserved for framing (BeginString, BodyLength, CheckSum).
	// These fields are computed by the encoder and never user-supplied.
	ErrIncompatibleField = errors.New("field tag is reserved for framing")

	ErrInvalidTag     = errors.New("field tag must be a positive integer")
	ErrInvalidValue   = errors.New("field value is not valid for its tag")
	ErrBuilderSpent   = errors.New("message builder has already been consumed")
	ErrNotHeaderField = errors.New("field tag does not belong in the message header")
	ErrNotBodyField   = errors.New("header field supplied as a body field")
)

// IncompleteError signals that the buffer ends before a complete message.
// Needed is a lower-bound hint on how many more bytes are required; the
// caller should read more input and call Decode again with the grown buffer.
type IncompleteError struct {
	Needed int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("incomplete message: need at least %d more bytes", e.Needed)
}

// BodyLengthError reports a mismatch between the declared BodyLength(9) and
// the measured byte span of the message body.
type BodyLengthError struct {
	Declared int
	Measured int
}

func (e *BodyLengthError) Error() string {
	return fmt.Sprintf("declared body length %d but measured %d bytes", e.Declared, e.Measured)
}

// ChecksumError reports a mismatch between the declared CheckSum(10) and the
// modulo-256 byte sum computed over the message.
type ChecksumError struct {
	Calculated uint8
	Declared   uint8
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("calculated checksum %03d does not match declared %03d", e.Calculated, e.Declared)
}

// MissingRequiredFieldError is returned by Builder.Build when a field that is
// required for the message's BeginString/MsgType pair was never supplied.
// Tag names the first unmet requirement.
type MissingRequiredFieldError struct {
	Tag Tag
}

func (e *MissingRequiredFieldError) Error() string {
	return fmt.Sprintf("missing required field %d", e.Tag)
}

// DuplicateRequiredFieldError is returned when a required field that already
// has a value is supplied a second time. Required fields reject overwrites to
// catch programmer error early; non-required header fields are last-write-wins.
type DuplicateRequiredFieldError struct {
	Tag Tag
}

func (e *DuplicateRequiredFieldError) Error() string {
	return fmt.Sprintf("required field %d supplied twice", e.Tag)
}
