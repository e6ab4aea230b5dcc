package codec

// Message is an immutable FIX message: a protocol version, a message type
// and ordered header and body field groups. BodyLength(9) and CheckSum(10)
// are never stored; the encoder computes them at encode time. Messages are
// produced by Builder.Build or by Decode and must not be mutated afterwards.
type Message struct {
	beginString BeginString
	msgType     MsgType
	header      []Field
	body        []Field
}

// BeginString returns the protocol version of the message.
func (m *Message) BeginString() BeginString { return m.beginString }

// MsgType returns the message type.
func (m *Message) MsgType() MsgType { return m.msgType }

// Header returns a copy of the header fields in placement order.
func (m *Message) Header() []Field {
	return append([]Field(nil), m.header...)
}

// Body returns a copy of the body fields in the order they were supplied.
func (m *Message) Body() []Field {
	return append([]Field(nil), m.body...)
}

// Get returns the first field with the given tag, searching the header and
// then the body.
func (m *Message) Get(tag Tag) (Field, bool) {
	for _, f := range m.header {
		if f.tag == tag {
			return f, true
		}
	}
	for _, f := range m.body {
		if f.tag == tag {
			return f, true
		}
	}
	return Field{}, false
}

// SeqNum returns the MsgSeqNum(34) header value.
func (m *Message) SeqNum() (uint64, error) {
	f, ok := m.Get(TagMsgSeqNum)
	if !ok {
		return 0, &MissingRequiredFieldError{Tag: TagMsgSeqNum}
	}
	return f.Uint64()
}

// PossDup reports whether PossDupFlag(43) is present and set.
func (m *Message) PossDup() bool {
	f, ok := m.Get(TagPossDupFlag)
	if !ok {
		return false
	}
	v, err := f.Bool()
	return err == nil && v
}

// Equal reports field-for-field message equality.
func (m *Message) Equal(other *Message) bool {
	if m.beginString != other.beginString || m.msgType != other.msgType {
		return false
	}
	if len(m.header) != len(other.header) || len(m.body) != len(other.body) {
		return false
	}
	for i, f := range m.header {
		if !f.Equal(other.header[i]) {
			return false
		}
	}
	for i, f := range m.body {
		if !f.Equal(other.body[i]) {
			return false
		}
	}
	return true
}

// requiredHeaderTags lists, in validation order, the header fields every
// sequenced message must carry beyond the constructor-supplied BeginString
// and MsgType. The same minimal session set applies to business message
// types; callers needing stricter per-type tables validate above the codec.
var requiredHeaderTags = []Tag{
	TagMsgSeqNum,
	TagSenderCompID,
	TagSendingTime,
	TagTargetCompID,
}

func isRequiredHeaderTag(tag Tag) bool {
	for _, t := range requiredHeaderTags {
		if t == tag {
			return true
		}
	}
	return false
}

// Builder accumulates header and body fields for a message bound to a fixed
// BeginString/MsgType pair. Fields are appended with Header and Field, which
// chain; the first error is latched and surfaced by Build. A builder is
// single use: once Build succeeds it is spent.
type Builder struct {
	msg   Message
	err   error
	spent bool
}

// NewBuilder creates an empty builder bound to the given version and
// message type.
func NewBuilder(beginString BeginString, msgType MsgType) *Builder {
	return &Builder{
		msg: Message{
			beginString: beginString,
			msgType:     msgType,
		},
	}
}

// Header appends a field to the message header. Only session header tags are
// accepted; supplying a required field twice latches a
// DuplicateRequiredFieldError, while non-required header fields are
// last-write-wins.
func (b *Builder) Header(f Field) *Builder {
	if b.err != nil || b.spent {
		return b
	}
	if f.tag == TagBeginString || f.tag == TagBodyLength || f.tag == TagCheckSum || f.tag == TagMsgType {
		b.err = ErrIncompatibleField
		return b
	}
	if !IsHeaderTag(f.tag) {
		b.err = ErrNotHeaderField
		return b
	}
	for i, existing := range b.msg.header {
		if existing.tag != f.tag {
			continue
		}
		if isRequiredHeaderTag(f.tag) {
			b.err = &DuplicateRequiredFieldError{Tag: f.tag}
			return b
		}
		b.msg.header[i] = f
		return b
	}
	b.msg.header = append(b.msg.header, f)
	return b
}

// Field appends a field to the message body. Body order is preserved as
// supplied and repeated tags are allowed (FIX repeating groups); header
// tags must go through Header instead.
func (b *Builder) Field(f Field) *Builder {
	if b.err != nil || b.spent {
		return b
	}
	if f.tag == TagBeginString || f.tag == TagBodyLength || f.tag == TagCheckSum || f.tag == TagMsgType {
		b.err = ErrIncompatibleField
		return b
	}
	if IsHeaderTag(f.tag) {
		b.err = ErrNotBodyField
		return b
	}
	b.msg.body = append(b.msg.body, f)
	return b
}

// Err returns the latched construction error, if any, without consuming the
// builder.
func (b *Builder) Err() error { return b.err }

// Build validates the accumulated fields and returns the immutable message.
// It fails with the latched construction error, with ErrUnsupportedVersion
// for an unrecognized BeginString, or with MissingRequiredFieldError naming
// the first unmet required field. A successful Build spends the builder.
func (b *Builder) Build() (*Message, error) {
	if b.spent {
		return nil, ErrBuilderSpent
	}
	if b.err != nil {
		return nil, b.err
	}
	if !b.msg.beginString.Valid() {
		return nil, ErrUnsupportedVersion
	}
	if _, err := ParseMsgType([]byte(b.msg.msgType)); err != nil {
		return nil, err
	}
	for _, tag := range requiredHeaderTags {
		if _, ok := b.msg.Get(tag); !ok {
			return nil, &MissingRequiredFieldError{Tag: tag}
		}
	}
	b.spent = true
	return &b.msg, nil
}
