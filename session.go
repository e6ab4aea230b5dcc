// Package fix implements a FIX session engine: per-session state machines
// driven by a serialized event loop, durable sequence and message stores,
// and heartbeat supervision, on top of the wire codec in the codec
// subpackage.
package fix

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/tradewire/fix/codec"
)

// State is the connection state of a session.
type State int32

const (
	Disconnected State = iota
	LogonSent
	LogonReceived
	Active
	PendingLogout
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case LogonSent:
		return "logon_sent"
	case LogonReceived:
		return "logon_received"
	case Active:
		return "active"
	case PendingLogout:
		return "pending_logout"
	}
	return "unknown"
}

// SessionID is the logical identity of a session. Sequence numbers and
// retained messages belong to this identity, not to any single connection.
type SessionID struct {
	BeginString  codec.BeginString
	SenderCompID string
	TargetCompID string
}

// Key renders the identity as a stable string, used as the store namespace
// and the engine map key.
func (id SessionID) Key() string {
	return string(id.BeginString) + ":" + id.SenderCompID + "->" + id.TargetCompID
}

// Valid reports whether the identity is complete enough to run a session.
func (id SessionID) Valid() bool {
	return id.BeginString.Valid() && len(id.SenderCompID) > 0 && len(id.TargetCompID) > 0
}

type sessionCmdType int

const (
	cmdReceive sessionCmdType = iota
	cmdLogon
	cmdLogout
	cmdSendApp
	cmdReset
)

// sessionCmd is the unified command envelope for the session loop. A single
// channel keeps event ordering deterministic.
type sessionCmd struct {
	typ     sessionCmdType
	chunk   []byte
	msgType codec.MsgType
	body    []codec.Field
	resp    chan error
}

// SessionOption configures optional session behavior.
type SessionOption func(*Session)

// WithHeartBtInt overrides the heartbeat interval proposed at logon.
func WithHeartBtInt(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.heartBtInt = d
		}
	}
}

// WithLogoutTimeout overrides how long a pending logout waits for the
// counterparty's confirmation.
func WithLogoutTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.logoutTimeout = d
		}
	}
}

// WithClock substitutes the time source, used by tests to drive heartbeat
// escalation deterministically.
func WithClock(c Clock) SessionOption {
	return func(s *Session) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithReceiver sets the application receiver for inbound messages.
func WithReceiver(r Receiver) SessionOption {
	return func(s *Session) {
		if r != nil {
			s.receiver = r
		}
	}
}

// WithResetOnLogon makes Logon carry ResetSeqNumFlag(141)=Y: both sides drop
// retained messages and restart their sequence counters at 1.
func WithResetOnLogon() SessionOption {
	return func(s *Session) {
		s.resetOnLogon = true
	}
}

// Session is one FIX session: a state machine owning the sequence counters,
// the inbound reassembly buffer and the timer supervision for a single
// counterparty relationship. All state lives on the Start loop goroutine;
// the exported methods only enqueue commands, so no lock is ever taken on
// the hot path.
type Session struct {
	id            SessionID
	store         MessageStore
	transport     Transport
	receiver      Receiver
	clock         Clock
	heartBtInt    time.Duration
	logoutTimeout time.Duration
	resetOnLogon  bool

	state            atomic.Int32
	isShutdown       atomic.Bool
	cmdChan          chan sessionCmd
	done             chan struct{}
	shutdownComplete chan struct{}

	// Everything below is owned by the Start loop.
	rxBuf          []byte
	expectedIn     uint64
	parked         map[uint64]*codec.Message
	resendPending  bool
	resendThrough  uint64
	logonAhead     uint64
	testReqID      string
	testReqAt      time.Time
	lastInbound    time.Time
	lastOutbound   time.Time
	logoutAt       time.Time
}

// NewSession creates a session bound to a store and a transport. The session
// does not process anything until Start is called.
func NewSession(id SessionID, store MessageStore, transport Transport, opts ...SessionOption) (*Session, error) {
	if !id.Valid() || store == nil || transport == nil {
		return nil, ErrInvalidParam
	}

	s := &Session{
		id:               id,
		store:            store,
		transport:        transport,
		receiver:         NewDiscardReceiver(),
		clock:            SystemClock(),
		heartBtInt:       DefaultHeartBtInt,
		logoutTimeout:    DefaultLogoutTimeout,
		cmdChan:          make(chan sessionCmd, 4096),
		done:             make(chan struct{}),
		shutdownComplete: make(chan struct{}),
		parked:           make(map[uint64]*codec.Message),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ID returns the session identity.
func (s *Session) ID() SessionID {
	return s.id
}

// State returns the current connection state. Safe to call from any
// goroutine.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(next State) {
	prev := State(s.state.Swap(int32(next)))
	if prev != next {
		logger.Debug("session state changed", "session", s.id.Key(), "from", prev.String(), "to", next.String())
	}
}

// Receive hands raw transport bytes to the session. Chunks may split or
// concatenate messages arbitrarily; the session reassembles frames itself.
func (s *Session) Receive(ctx context.Context, chunk []byte) error {
	if s.isShutdown.Load() {
		return ErrShutdown
	}
	if len(chunk) == 0 {
		return nil
	}

	buf := append([]byte(nil), chunk...)
	select {
	case s.cmdChan <- sessionCmd{typ: cmdReceive, chunk: buf}:
		return nil
	case <-ctx.Done():
		return ErrTimeout
	}
}

// Logon initiates the logon handshake. The session must be Disconnected.
func (s *Session) Logon(ctx context.Context) error {
	return s.roundTrip(ctx, sessionCmd{typ: cmdLogon})
}

// Logout initiates the logout handshake from the Active state.
func (s *Session) Logout(ctx context.Context) error {
	return s.roundTrip(ctx, sessionCmd{typ: cmdLogout})
}

// Send sequences, records and transmits an application message built from
// the given body fields. The session must be Active.
func (s *Session) Send(ctx context.Context, msgType codec.MsgType, body []codec.Field) error {
	return s.roundTrip(ctx, sessionCmd{typ: cmdSendApp, msgType: msgType, body: body})
}

// ResetSeqNums drops retained messages and returns both sequence counters
// to 1, the out-of-band sequence reset used at the start of a trading day.
func (s *Session) ResetSeqNums(ctx context.Context) error {
	return s.roundTrip(ctx, sessionCmd{typ: cmdReset})
}

func (s *Session) roundTrip(ctx context.Context, cmd sessionCmd) error {
	if s.isShutdown.Load() {
		return ErrShutdown
	}

	resp := make(chan error, 1)
	cmd.resp = resp

	select {
	case s.cmdChan <- cmd:
	case <-ctx.Done():
		return ErrTimeout
	}

	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ErrTimeout
	}
}

// Start runs the session loop, processing transport bytes, caller commands
// and timer ticks one at a time in arrival order. It returns nil after
// Shutdown once all pending commands are drained.
func (s *Session) Start() error {
	expected, err := s.store.ExpectedInboundSeq()
	if err != nil {
		return err
	}
	s.expectedIn = expected

	now := s.clock.Now()
	s.lastInbound = now
	s.lastOutbound = now

	ticker := s.clock.NewTicker(s.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return s.drain()
		case now := <-ticker.C():
			s.handleTick(now)
		case cmd := <-s.cmdChan:
			s.handleCommand(cmd)
		}
	}
}

// Shutdown signals the session loop to stop and waits for pending commands
// to drain. Returns ctx.Err() if the context expires first.
func (s *Session) Shutdown(ctx context.Context) error {
	if s.isShutdown.CompareAndSwap(false, true) {
		close(s.done)
	}

	select {
	case <-s.shutdownComplete:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// drain processes all remaining commands in the channel before returning.
func (s *Session) drain() error {
	defer close(s.shutdownComplete)

	for {
		select {
		case cmd := <-s.cmdChan:
			s.handleCommand(cmd)
		default:
			return nil
		}
	}
}

func (s *Session) tickInterval() time.Duration {
	d := s.heartBtInt / 4
	if d < time.Second {
		d = time.Second
	}
	return d
}

func (s *Session) handleCommand(cmd sessionCmd) {
	switch cmd.typ {
	case cmdReceive:
		s.handleChunk(cmd.chunk)
		s.respond(cmd, nil)
	case cmdLogon:
		s.respond(cmd, s.initiateLogon())
	case cmdLogout:
		s.respond(cmd, s.initiateLogout())
	case cmdSendApp:
		s.respond(cmd, s.sendApp(cmd.msgType, cmd.body))
	case cmdReset:
		s.respond(cmd, s.resetSeqNums())
	}
}

func (s *Session) respond(cmd sessionCmd, err error) {
	if cmd.resp != nil {
		select {
		case cmd.resp <- err:
		default:
		}
	}
}

func (s *Session) initiateLogon() error {
	if s.State() != Disconnected {
		return ErrInvalidParam
	}
	if s.resetOnLogon {
		if err := s.resetSeqNums(); err != nil {
			return err
		}
	}
	if err := s.send(codec.MsgTypeLogon, logonBody(s.heartBtInt, s.resetOnLogon)); err != nil {
		return err
	}
	s.setState(LogonSent)
	return nil
}

func (s *Session) initiateLogout() error {
	switch s.State() {
	case Disconnected:
		return nil
	case PendingLogout:
		return nil
	}

	if err := s.send(codec.MsgTypeLogout, nil); err != nil {
		return err
	}
	s.logoutAt = s.clock.Now()
	s.setState(PendingLogout)
	return nil
}

func (s *Session) sendApp(msgType codec.MsgType, body []codec.Field) error {
	if s.State() != Active {
		return ErrNotActive
	}
	return s.send(msgType, body)
}

func (s *Session) resetSeqNums() error {
	if err := s.store.Reset(); err != nil {
		return err
	}
	s.expectedIn = 1
	s.parked = make(map[uint64]*codec.Message)
	s.resendPending = false
	s.resendThrough = 0
	s.logonAhead = 0
	return nil
}

// send sequences, builds, records and transmits one outbound message. The
// frame is recorded in the store before it reaches the wire so a sequence
// number is never observable without its message being retrievable for
// resend.
func (s *Session) send(msgType codec.MsgType, body []codec.Field, header ...codec.Field) error {
	seq, err := s.store.NextOutboundSeq()
	if err != nil {
		return err
	}

	b := codec.NewBuilder(s.id.BeginString, msgType).
		Header(codec.MsgSeqNumField(seq)).
		Header(codec.SenderCompIDField(s.id.SenderCompID)).
		Header(codec.SendingTimeField(s.clock.Now())).
		Header(codec.TargetCompIDField(s.id.TargetCompID))
	for _, f := range header {
		b = b.Header(f)
	}
	for _, f := range body {
		b = b.Field(f)
	}
	msg, err := b.Build()
	if err != nil {
		return err
	}

	frame := codec.Encode(msg)
	if err := s.store.Record(seq, frame); err != nil {
		logger.Error("failed to record outbound message", "session", s.id.Key(), "seq", seq, "error", err)
		s.disconnect("store record failed")
		return err
	}

	if err := s.transport.Send(frame); err != nil {
		logger.Error("transport send failed", "session", s.id.Key(), "seq", seq, "error", err)
		return err
	}
	s.lastOutbound = s.clock.Now()
	return nil
}

// handleChunk appends transport bytes to the reassembly buffer and decodes
// as many complete frames as it holds.
func (s *Session) handleChunk(chunk []byte) {
	s.rxBuf = append(s.rxBuf, chunk...)

	for len(s.rxBuf) > 0 {
		msg, consumed, err := codec.Decode(s.rxBuf)
		if err != nil {
			var incomplete *codec.IncompleteError
			if errors.As(err, &incomplete) {
				return
			}
			if consumed == 0 {
				logger.Error("unrecoverable framing error, dropping buffer", "session", s.id.Key(), "error", err)
				s.rxBuf = nil
				return
			}
			logger.Warn("dropping garbled frame", "session", s.id.Key(), "bytes", consumed, "error", err)
			s.rxBuf = s.rxBuf[consumed:]
			continue
		}
		s.rxBuf = s.rxBuf[consumed:]

		s.lastInbound = s.clock.Now()
		s.testReqID = ""
		s.handleMessage(msg)

		if s.State() == Disconnected {
			s.rxBuf = nil
			return
		}
	}
}

func (s *Session) handleMessage(msg *codec.Message) {
	if msg.BeginString() != s.id.BeginString {
		s.sendLogoutAndDisconnect("incompatible begin string")
		return
	}
	if !s.compIDsMatch(msg) {
		seq, _ := msg.SeqNum()
		_ = s.send(codec.MsgTypeReject, rejectBody(seq, RejectReasonCompIDProblem, "comp id mismatch"))
		s.sendLogoutAndDisconnect("comp id mismatch")
		return
	}

	// A Logon carrying ResetSeqNumFlag restarts both counters before its
	// own sequence number is judged. An initiator that requested the reset
	// itself already did so and must not wind back past its sent Logon.
	if msg.MsgType() == codec.MsgTypeLogon && resetSeqNumFlag(msg) {
		if !(s.State() == LogonSent && s.resetOnLogon) {
			if err := s.resetSeqNums(); err != nil {
				logger.Error("failed to reset counters on logon", "session", s.id.Key(), "error", err)
				s.disconnect("counter reset failed")
				return
			}
		}
	}

	// SequenceReset in reset mode rewrites the inbound counter regardless
	// of its own sequence number. Gap fill mode is sequenced normally.
	if msg.MsgType() == codec.MsgTypeSequenceReset && !gapFillFlag(msg) {
		s.applySequenceReset(msg)
		return
	}

	seq, err := msg.SeqNum()
	if err != nil {
		_ = s.send(codec.MsgTypeReject, rejectBody(s.expectedIn, RejectReasonRequiredTagMissing, "MsgSeqNum missing"))
		return
	}

	switch {
	case seq == s.expectedIn:
		s.advanceExpected(seq + 1)
		s.apply(msg)
		s.drainParked()
	case seq > s.expectedIn:
		// A Logon above the expected seq still completes the handshake
		// first, so the counterparty's next inbound frame is our Logon
		// reply, not a ResendRequest. The parked copy is skipped when the
		// gap fills.
		if msg.MsgType() == codec.MsgTypeLogon && s.State() != Active {
			s.apply(msg)
			if s.State() == Disconnected {
				return
			}
			s.logonAhead = seq
		}
		s.parked[seq] = msg
		s.requestResend(seq - 1)
	case msg.PossDup():
		// Acknowledged duplicate, already processed. Not redelivered.
	default:
		s.sendLogoutAndDisconnect("MsgSeqNum too low")
	}
}

func (s *Session) compIDsMatch(msg *codec.Message) bool {
	sender, ok := msg.Get(codec.TagSenderCompID)
	if !ok || sender.ValueString() != s.id.TargetCompID {
		return false
	}
	target, ok := msg.Get(codec.TagTargetCompID)
	if !ok || target.ValueString() != s.id.SenderCompID {
		return false
	}
	return true
}

func (s *Session) advanceExpected(seq uint64) {
	s.expectedIn = seq
	if err := s.store.SetExpectedInboundSeq(seq); err != nil {
		logger.Error("failed to persist inbound counter", "session", s.id.Key(), "seq", seq, "error", err)
	}
}

// requestResend asks the counterparty to retransmit [expectedIn, upTo]. A
// request already in flight that still covers the current gap suppresses a
// new one, so a single gap produces exactly one ResendRequest.
func (s *Session) requestResend(upTo uint64) {
	if s.resendPending && s.expectedIn <= s.resendThrough {
		return
	}
	s.resendPending = true
	s.resendThrough = upTo
	if err := s.send(codec.MsgTypeResendRequest, resendRequestBody(s.expectedIn, upTo)); err != nil {
		logger.Error("failed to send resend request", "session", s.id.Key(), "error", err)
	}
}

// drainParked delivers parked out-of-order messages that have become
// contiguous with the expected counter, and re-arms gap recovery when
// another gap remains behind them.
func (s *Session) drainParked() {
	for {
		msg, ok := s.parked[s.expectedIn]
		if !ok {
			break
		}
		seq := s.expectedIn
		delete(s.parked, seq)
		s.advanceExpected(seq + 1)
		if seq == s.logonAhead {
			// Already applied when it arrived ahead of sequence.
			s.logonAhead = 0
			continue
		}
		s.apply(msg)
	}

	if len(s.parked) == 0 {
		s.resendPending = false
		s.resendThrough = 0
		return
	}

	lowest := uint64(0)
	for seq := range s.parked {
		if lowest == 0 || seq < lowest {
			lowest = seq
		}
	}
	s.requestResend(lowest - 1)
}

func (s *Session) apply(msg *codec.Message) {
	switch msg.MsgType() {
	case codec.MsgTypeLogon:
		s.applyLogon(msg)
	case codec.MsgTypeHeartbeat:
		// Liveness was recorded on receipt; nothing else to do.
	case codec.MsgTypeTestRequest:
		var body []codec.Field
		if f, ok := msg.Get(codec.TagTestReqID); ok {
			body = heartbeatBody(f.ValueString())
		}
		_ = s.send(codec.MsgTypeHeartbeat, body)
	case codec.MsgTypeResendRequest:
		s.serveResend(msg)
	case codec.MsgTypeSequenceReset:
		s.applyGapFill(msg)
	case codec.MsgTypeLogout:
		s.applyLogout()
	case codec.MsgTypeReject:
		s.applyReject(msg)
	default:
		if s.State() != Active {
			seq, _ := msg.SeqNum()
			_ = s.send(codec.MsgTypeReject, rejectBody(seq, RejectReasonInvalidMsgType, "message before logon complete"))
			s.sendLogoutAndDisconnect("message before logon complete")
			return
		}
		s.receiver.Deliver(msg)
	}
}

func (s *Session) applyLogon(msg *codec.Message) {
	switch s.State() {
	case LogonSent:
		// Initiator path: the counterparty accepted.
		s.adoptHeartBtInt(msg)
		s.setState(Active)
		logger.Info("session active", "session", s.id.Key(), "heartbt_int", s.heartBtInt.String())
	case Disconnected:
		// Acceptor path: an inbound Logon opens the session.
		s.setState(LogonReceived)
		s.adoptHeartBtInt(msg)
		if err := s.send(codec.MsgTypeLogon, logonBody(s.heartBtInt, resetSeqNumFlag(msg))); err != nil {
			s.disconnect("logon response failed")
			return
		}
		s.setState(Active)
		logger.Info("session active", "session", s.id.Key(), "heartbt_int", s.heartBtInt.String())
	default:
		s.sendLogoutAndDisconnect("logon on established session")
	}
}

// adoptHeartBtInt takes the counterparty's HeartBtInt(108) when present; the
// initiator proposes the interval and the acceptor echoes it back.
func (s *Session) adoptHeartBtInt(msg *codec.Message) {
	f, ok := msg.Get(codec.TagHeartBtInt)
	if !ok {
		return
	}
	secs, err := f.Int()
	if err != nil || secs <= 0 {
		return
	}
	s.heartBtInt = time.Duration(secs) * time.Second
}

func (s *Session) applyLogout() {
	if s.State() == PendingLogout {
		// We initiated; this is the confirmation.
		s.disconnect("logout complete")
		return
	}
	_ = s.send(codec.MsgTypeLogout, nil)
	s.disconnect("logout requested by counterparty")
}

func (s *Session) applyReject(msg *codec.Message) {
	refSeq := uint64(0)
	if f, ok := msg.Get(codec.TagRefSeqNum); ok {
		refSeq, _ = f.Uint64()
	}
	text := ""
	if f, ok := msg.Get(codec.TagText); ok {
		text = f.ValueString()
	}
	logger.Warn("session-level reject received", "session", s.id.Key(), "ref_seq", refSeq, "text", text)
	s.receiver.Deliver(msg)
}

// applySequenceReset handles reset mode: the counter jumps forward to
// NewSeqNo and everything in between is abandoned.
func (s *Session) applySequenceReset(msg *codec.Message) {
	f, ok := msg.Get(codec.TagNewSeqNo)
	if !ok {
		_ = s.send(codec.MsgTypeReject, rejectBody(s.expectedIn, RejectReasonRequiredTagMissing, "NewSeqNo missing"))
		return
	}
	newSeq, err := f.Uint64()
	if err != nil || newSeq < s.expectedIn {
		_ = s.send(codec.MsgTypeReject, rejectBody(s.expectedIn, RejectReasonValueIncorrect, "NewSeqNo too low"))
		return
	}
	s.advanceExpected(newSeq)
	s.drainParked()
}

// applyGapFill handles gap fill mode, arriving in sequence during a resend
// to stand in for admin messages that are not retransmitted.
func (s *Session) applyGapFill(msg *codec.Message) {
	f, ok := msg.Get(codec.TagNewSeqNo)
	if !ok {
		return
	}
	newSeq, err := f.Uint64()
	if err != nil || newSeq < s.expectedIn {
		return
	}
	s.advanceExpected(newSeq)
}

// serveResend retransmits the requested range. Stored business messages go
// out again flagged PossDup; admin messages and unretained gaps are folded
// into SequenceReset gap fills.
func (s *Session) serveResend(msg *codec.Message) {
	beginF, okBegin := msg.Get(codec.TagBeginSeqNo)
	endF, okEnd := msg.Get(codec.TagEndSeqNo)
	if !okBegin || !okEnd {
		seq, _ := msg.SeqNum()
		_ = s.send(codec.MsgTypeReject, rejectBody(seq, RejectReasonRequiredTagMissing, "resend range missing"))
		return
	}
	begin, errBegin := beginF.Uint64()
	end, errEnd := endF.Uint64()
	if errBegin != nil || errEnd != nil || begin == 0 || (end != 0 && end < begin) {
		seq, _ := msg.SeqNum()
		_ = s.send(codec.MsgTypeReject, rejectBody(seq, RejectReasonValueIncorrect, "invalid resend range"))
		return
	}

	stored, err := s.store.FetchRange(begin, end)
	if err != nil {
		logger.Error("failed to fetch resend range", "session", s.id.Key(), "begin", begin, "end", end, "error", err)
		// Never fabricate content. A bounded range the store cannot read
		// is answered with a gap fill over the whole of it.
		if end != 0 {
			s.sendGapFill(begin, end+1)
		}
		return
	}

	cursor := begin
	flushGap := func(through uint64) {
		if cursor > through {
			return
		}
		s.sendGapFill(cursor, through+1)
		cursor = through + 1
	}

	for _, sm := range stored {
		decoded, _, err := codec.Decode(sm.Payload)
		if err != nil {
			logger.Error("stored message failed to decode", "session", s.id.Key(), "seq", sm.Seq, "error", err)
			continue
		}
		if decoded.MsgType().IsSessionLevel() {
			// Covered by the surrounding gap fill.
			continue
		}
		flushGap(sm.Seq - 1)
		s.resendStored(decoded, sm.Seq)
		cursor = sm.Seq + 1
	}

	last := end
	if last == 0 && len(stored) > 0 {
		last = stored[len(stored)-1].Seq
	}
	flushGap(last)
}

// sendGapFill emits SequenceReset-GapFill covering [seq, newSeq). Resent
// frames reuse their original sequence numbers, so this bypasses the normal
// sequencing in send.
func (s *Session) sendGapFill(seq, newSeq uint64) {
	msg, err := codec.NewBuilder(s.id.BeginString, codec.MsgTypeSequenceReset).
		Header(codec.MsgSeqNumField(seq)).
		Header(codec.SenderCompIDField(s.id.SenderCompID)).
		Header(codec.SendingTimeField(s.clock.Now())).
		Header(codec.TargetCompIDField(s.id.TargetCompID)).
		Header(codec.PossDupFlagField(true)).
		Field(codec.GapFillFlagField(true)).
		Field(codec.NewSeqNoField(newSeq)).
		Build()
	if err != nil {
		logger.Error("failed to build gap fill", "session", s.id.Key(), "seq", seq, "error", err)
		return
	}
	if err := s.transport.Send(codec.Encode(msg)); err != nil {
		logger.Error("transport send failed", "session", s.id.Key(), "seq", seq, "error", err)
		return
	}
	s.lastOutbound = s.clock.Now()
}

// resendStored retransmits one retained business message with PossDupFlag
// set and the original SendingTime preserved in OrigSendingTime(122).
func (s *Session) resendStored(orig *codec.Message, seq uint64) {
	b := codec.NewBuilder(orig.BeginString(), orig.MsgType())

	var origSendingTime []byte
	for _, f := range orig.Header() {
		switch f.Tag() {
		case codec.TagSendingTime:
			origSendingTime = f.Value()
		case codec.TagPossDupFlag, codec.TagOrigSendingTime:
			// Replaced below.
		default:
			b = b.Header(f)
		}
	}
	b = b.Header(codec.SendingTimeField(s.clock.Now())).
		Header(codec.PossDupFlagField(true))
	if len(origSendingTime) > 0 {
		if f, err := codec.NewField(codec.TagOrigSendingTime, origSendingTime); err == nil {
			b = b.Header(f)
		}
	}
	for _, f := range orig.Body() {
		b = b.Field(f)
	}

	msg, err := b.Build()
	if err != nil {
		logger.Error("failed to rebuild stored message", "session", s.id.Key(), "seq", seq, "error", err)
		return
	}
	if err := s.transport.Send(codec.Encode(msg)); err != nil {
		logger.Error("transport send failed", "session", s.id.Key(), "seq", seq, "error", err)
		return
	}
	s.lastOutbound = s.clock.Now()
}

func (s *Session) sendLogoutAndDisconnect(text string) {
	_ = s.send(codec.MsgTypeLogout, logoutBody(text))
	s.disconnect(text)
}

// disconnect closes the connection-scoped state. Sequence counters and the
// store survive for the next connection of the same session identity.
func (s *Session) disconnect(reason string) {
	s.setState(Disconnected)
	s.rxBuf = nil
	s.parked = make(map[uint64]*codec.Message)
	s.resendPending = false
	s.resendThrough = 0
	s.logonAhead = 0
	s.testReqID = ""
	s.logoutAt = time.Time{}
	logger.Info("session disconnected", "session", s.id.Key(), "reason", reason)
}

// handleTick runs the timer supervision: heartbeat emission, TestRequest
// escalation and logout timeout. Ticks never bypass the loop, so every
// transition they cause is serialized with message processing.
func (s *Session) handleTick(now time.Time) {
	switch s.State() {
	case PendingLogout:
		if !s.logoutAt.IsZero() && now.Sub(s.logoutAt) >= s.logoutTimeout {
			s.disconnect("logout confirmation timeout")
		}
		return
	case Active:
	default:
		return
	}

	if s.testReqID != "" {
		grace := time.Duration(float64(s.heartBtInt) * testRequestGrace)
		if now.Sub(s.testReqAt) >= grace {
			s.disconnect("test request unanswered")
		}
		return
	}

	if now.Sub(s.lastInbound) >= s.heartBtInt {
		id, body := newTestRequestBody()
		if err := s.send(codec.MsgTypeTestRequest, body); err == nil {
			s.testReqID = id
			s.testReqAt = now
		}
		return
	}

	if now.Sub(s.lastOutbound) >= s.heartBtInt {
		_ = s.send(codec.MsgTypeHeartbeat, nil)
	}
}

func gapFillFlag(msg *codec.Message) bool {
	f, ok := msg.Get(codec.TagGapFillFlag)
	if !ok {
		return false
	}
	v, err := f.Bool()
	return err == nil && v
}

func resetSeqNumFlag(msg *codec.Message) bool {
	f, ok := msg.Get(codec.TagResetSeqNumFlag)
	if !ok {
		return false
	}
	v, err := f.Bool()
	return err == nil && v
}
