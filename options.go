package rowstream

import (
	"fmt"

	"github.com/rs/zerolog"
)

// ReleaseHook is an option that can be passed to NewReader or NewWriter
//
// and is invoked exactly once when the reader/writer reaches its terminal state -
// on every exit path (success, error or cancellation)
//
// typically used to return a pooled session
type ReleaseHook func()

type settings struct {
	marks      Watermarks
	release    ReleaseHook
	translator ErrorTranslator
	log        zerolog.Logger
}

func newSettings(options ...any) (*settings, error) {
	result := &settings{
		marks:      Watermarks{Low: defaultLowWatermark, High: defaultHighWatermark},
		translator: defaultErrorTranslator,
		log:        zerolog.Nop(),
	}
	if err := result.addOptions(options...); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *settings) addOptions(options ...any) error {
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case Watermarks:
				if option.Low < 0 || option.High <= option.Low {
					return UsageError("low watermark must be non-negative and less than high")
				}
				s.marks = option
			case ReleaseHook:
				s.release = option
			case func():
				s.release = option
			case ErrorTranslator:
				s.translator = option
			case zerolog.Logger:
				s.log = option
			default:
				return UsageError(fmt.Sprintf("unknown option type: %T", o))
			}
		}
	}
	return nil
}

func drainOptions(options ...any) (Limiter, error) {
	limiter := Limiter(&nullLimiter{})
	for _, o := range options {
		if o != nil {
			switch option := o.(type) {
			case Limiter:
				limiter = option
			default:
				return nil, UsageError(fmt.Sprintf("unknown option type: %T", o))
			}
		}
	}
	return limiter, nil
}
