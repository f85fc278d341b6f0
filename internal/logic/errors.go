package logic

import "errors"

// ErrUnknownStrategy is returned when a strategy preset name is not recognised.
var ErrUnknownStrategy = errors.New("unknown bid strategy")

// ErrInvalidPolicy is returned when an admission policy knob has an invalid value.
var ErrInvalidPolicy = errors.New("invalid admission policy")
