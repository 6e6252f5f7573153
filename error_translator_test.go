package rowstream

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorTranslatorFunc(t *testing.T) {
	wrapped := errors.New("wrapped")
	tr := ErrorTranslatorFunc(func(err error) error {
		return wrapped
	})
	require.Equal(t, wrapped, tr.Translate(errors.New("original")))
}

func TestDefaultErrorTranslator(t *testing.T) {
	err := errors.New("fooey")
	require.Equal(t, err, defaultErrorTranslator.Translate(err))
	require.NoError(t, defaultErrorTranslator.Translate(nil))
}
