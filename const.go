package fix

import "time"

const (
	// EngineVersion is the current version of the session engine
	EngineVersion = "v1.0.0"

	// DefaultHeartBtInt is the heartbeat interval used when the session
	// config does not override it
	DefaultHeartBtInt = 30 * time.Second

	// DefaultLogoutTimeout bounds how long a session waits for the
	// counterparty's Logout confirmation before dropping the connection
	DefaultLogoutTimeout = 10 * time.Second
)

// testRequestGrace scales the heartbeat interval into the silent period
// tolerated after a TestRequest before the counterparty is presumed dead.
const testRequestGrace = 1.2

// FIX order-entry field values used by the message helpers.
const (
	SideBuy  = "1"
	SideSell = "2"

	OrdTypeMarket = "1"
	OrdTypeLimit  = "2"

	TimeInForceDay = "0"
	TimeInForceIOC = "3"
	TimeInForceFOK = "4"
)

// SessionRejectReason(373) values emitted by the session layer.
const (
	RejectReasonInvalidTagNumber   = 0
	RejectReasonRequiredTagMissing = 1
	RejectReasonValueIncorrect     = 5
	RejectReasonCompIDProblem      = 9
	RejectReasonInvalidMsgType     = 11
)
