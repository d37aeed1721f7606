package lib

import (
	"errors"
	"fmt"
)

var (
	ErrValidation               = errors.New("validation error")
	ErrViewTypeImmutable        = fmt.Errorf("%w: stream view type cannot change while the stream stays enabled", ErrValidation)
	ErrImmutableChange          = fmt.Errorf("%w: change requires replacing the table", ErrValidation)
	ErrRegionImmutable          = fmt.Errorf("%w: region cannot change after the first deploy", ErrValidation)
	ErrDestructiveActionBlocked = errors.New("destructive action blocked by deletion policy")
	ErrStreamArnUnavailable     = errors.New("stream arn unavailable")
)

func validationErr(format string, v ...interface{}) error {
	err := fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, v...))
	Logger.Println("error:", err)
	return err
}
