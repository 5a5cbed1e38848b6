package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ilia-khaustov/batchout-go/pkg/berrors"
)

type dummyInput struct{ name string }

func TestBindAndCreate(t *testing.T) {
	t.Parallel()

	r := New()
	err := r.Bind(KindInput, "const", func(f Fragment) (any, error) {
		return &dummyInput{name: f["name"].(string)}, nil
	})
	require.NoError(t, err)

	inst, err := r.Create(KindInput, Fragment{"type": "const", "name": "orders"})
	require.NoError(t, err)
	require.Equal(t, "orders", inst.(*dummyInput).name)
}

func TestBindDuplicateIsError(t *testing.T) {
	t.Parallel()

	r := New()
	ctor := func(f Fragment) (any, error) { return &dummyInput{}, nil }
	require.NoError(t, r.Bind(KindInput, "const", ctor))

	err := r.Bind(KindInput, "const", ctor)
	var boundErr *berrors.ClassAlreadyBoundError
	require.ErrorAs(t, err, &boundErr)
	require.Contains(t, err.Error(), "const")
}

func TestCreateMissingTypeIsError(t *testing.T) {
	t.Parallel()

	r := New()
	_, err := r.Create(KindInput, Fragment{})
	var unknownErr *berrors.UnknownTypeError
	require.ErrorAs(t, err, &unknownErr)
}

func TestCreateUnknownTypeIsError(t *testing.T) {
	t.Parallel()

	r := New()
	_, err := r.Create(KindInput, Fragment{"type": "ghost"})
	var unknownErr *berrors.UnknownTypeError
	require.ErrorAs(t, err, &unknownErr)
}

func TestCreateAppliesEnvSubstitution(t *testing.T) {
	t.Setenv("BATCHOUT_REGISTRY_TEST_NAME", "from-env")

	r := New()
	require.NoError(t, r.Bind(KindInput, "const", func(f Fragment) (any, error) {
		return &dummyInput{name: f["name"].(string)}, nil
	}))

	inst, err := r.Create(KindInput, Fragment{
		"type":     "const",
		"from_env": map[string]any{"name": "BATCHOUT_REGISTRY_TEST_NAME"},
	})
	require.NoError(t, err)
	require.Equal(t, "from-env", inst.(*dummyInput).name)
}
