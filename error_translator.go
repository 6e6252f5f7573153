package rowstream

// ErrorTranslator is an option that can be passed to NewReader or NewWriter
//
// and is called with any ProtocolError about to be surfaced so that it can be
// translated (or wrapped)
//
// Is particularly useful for translating driver-specific errors to your own errors
type ErrorTranslator interface {
	// Translate translates the passed error
	Translate(err error) error
}

// ErrorTranslatorFunc is a func adapter for ErrorTranslator
type ErrorTranslatorFunc func(err error) error

var _ ErrorTranslator = (ErrorTranslatorFunc)(nil)

func (f ErrorTranslatorFunc) Translate(err error) error {
	return f(err)
}

var defaultErrorTranslator ErrorTranslator = &defErrorTranslator{}

type defErrorTranslator struct{}

func (e *defErrorTranslator) Translate(err error) error {
	return err
}
