package fix

import "errors"

var (
	ErrInvalidParam       = errors.New("the param is invalid")
	ErrTimeout            = errors.New("timeout")
	ErrShutdown           = errors.New("session is shutting down")
	ErrNotFound           = errors.New("not found")
	ErrSessionExists      = errors.New("session already exists")
	ErrNotActive          = errors.New("session is not active")
	ErrSeqAlreadyRecorded = errors.New("sequence number already recorded with a different payload")
	ErrStoreClosed        = errors.New("message store is closed")
)
