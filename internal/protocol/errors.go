package protocol

import "errors"

// Validation failures shared by packets and messages.
var (
	ErrTooShort         = errors.New("too short")
	ErrUnknownType      = errors.New("unknown type")
	ErrLengthMismatch   = errors.New("length mismatch")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrPayloadTooLarge  = errors.New("payload too large")
)
