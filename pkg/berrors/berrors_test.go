package berrors

import (
	stdErrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigInvalidErrorIncludesField(t *testing.T) {
	t.Parallel()

	underlying := fmt.Errorf("missing key")
	err := NewConfigInvalid("column.age", "cast", "unsupported cast", underlying)

	var configErr *ConfigInvalidError
	require.ErrorAs(t, err, &configErr)
	require.Equal(t, "cast", configErr.Field)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "column.age")
}

func TestUnknownTypeErrorNamesKindAndName(t *testing.T) {
	t.Parallel()

	err := NewUnknownType("extractor", "soap")
	var unknownErr *UnknownTypeError
	require.ErrorAs(t, err, &unknownErr)
	require.Equal(t, "extractor", unknownErr.Kind)
	require.Equal(t, "soap", unknownErr.Name)
	require.Contains(t, err.Error(), "soap")
}

func TestUnknownTypeErrorMissingDiscriminator(t *testing.T) {
	t.Parallel()

	err := NewUnknownType("input", "")
	require.Contains(t, err.Error(), "missing its type discriminator")
}

func TestClassAlreadyBoundError(t *testing.T) {
	t.Parallel()

	err := NewClassAlreadyBound("output", "csv")
	var boundErr *ClassAlreadyBoundError
	require.ErrorAs(t, err, &boundErr)
	require.Contains(t, err.Error(), "csv")
	require.Contains(t, err.Error(), "output")
}

func TestUndefinedReferenceError(t *testing.T) {
	t.Parallel()

	err := NewUndefinedReference("task.reader_orders", "selector", "by_id")
	var refErr *UndefinedReferenceError
	require.ErrorAs(t, err, &refErr)
	require.Contains(t, err.Error(), "task.reader_orders")
	require.Contains(t, err.Error(), "by_id")
}

func TestChangedAfterFirstRunError(t *testing.T) {
	t.Parallel()

	err := NewChangedAfterFirstRun("inputs")
	require.Contains(t, err.Error(), "inputs")
	require.Contains(t, err.Error(), "first run")
}

func TestExtractionFailureUnwraps(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("bad path expression")
	err := NewExtractionFailure("$.cart[0].id", underlying)

	var extractErr *ExtractionFailure
	require.ErrorAs(t, err, &extractErr)
	require.True(t, stdErrors.Is(err, underlying))
	require.Contains(t, err.Error(), "$.cart[0].id")
}

func TestCastFailureUnwraps(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("invalid syntax")
	err := NewCastFailure("age", "integer", "abc", underlying)

	var castErr *CastFailure
	require.ErrorAs(t, err, &castErr)
	require.Equal(t, "age", castErr.Column)
	require.Equal(t, "abc", castErr.Value)
	require.True(t, stdErrors.Is(err, underlying))
}

func TestInputErrorUnwraps(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("connection refused")
	err := NewInputError("orders_http", underlying)

	var inputErr *InputError
	require.ErrorAs(t, err, &inputErr)
	require.Equal(t, "orders_http", inputErr.Input)
	require.True(t, stdErrors.Is(err, underlying))
}

func TestOutputErrorUnwraps(t *testing.T) {
	t.Parallel()

	underlying := stdErrors.New("disk full")
	err := NewOutputError("orders_csv", underlying)

	var outputErr *OutputError
	require.ErrorAs(t, err, &outputErr)
	require.Equal(t, "orders_csv", outputErr.Output)
	require.True(t, stdErrors.Is(err, underlying))
}
