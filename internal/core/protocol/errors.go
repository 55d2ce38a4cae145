package protocol

import "errors"

// Codec errors
var (
	ErrUnknownCodec          = errors.New("unknown codec")
	ErrEmptyEvent            = errors.New("message has no event name")
	ErrSerializationFailed   = errors.New("message serialization failed")
	ErrDeserializationFailed = errors.New("message deserialization failed")
)
