package plugin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticFact(name string, global bool, value any) Fact {
	return FactFunc{
		FactName: name,
		IsGlobal: global,
		Fn: func(_ context.Context, _ *FactContext) (any, error) {
			return value, nil
		},
	}
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.RegisterFact(staticFact("fileMetadata", false, 1))
	r.RegisterOperator(OperatorFunc{
		OpName: "equal",
		Fn: func(a, b any) (bool, error) {
			return a == b, nil
		},
	})

	f, err := r.Fact("fileMetadata")
	require.NoError(t, err)
	assert.Equal(t, "fileMetadata", f.Name())

	op, err := r.Operator("equal")
	require.NoError(t, err)
	ok, err := op.Apply("x", "x")
	require.NoError(t, err)
	assert.True(t, ok)

	facts, operators := r.Count()
	assert.Equal(t, 1, facts)
	assert.Equal(t, 1, operators)
}

func TestRegistryUnknownLookups(t *testing.T) {
	r := NewRegistry()

	_, err := r.Fact("nope")
	assert.ErrorContains(t, err, `fact "nope" is not registered`)

	_, err = r.Operator("nope")
	assert.ErrorContains(t, err, `operator "nope" is not registered`)

	_, ok := r.ErrorAction("core:nope")
	assert.False(t, ok)
}

func TestRegistryLaterRegistrationWins(t *testing.T) {
	r := NewRegistry()
	r.RegisterFact(staticFact("dup", false, "first"))
	r.RegisterFact(staticFact("dup", false, "second"))

	f, err := r.Fact("dup")
	require.NoError(t, err)
	v, err := f.Evaluate(context.Background(), &FactContext{})
	require.NoError(t, err)
	assert.Equal(t, "second", v)
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	r.RegisterFact(staticFact("zeta", false, nil))
	r.RegisterFact(staticFact("alpha", false, nil))

	assert.Equal(t, []string{"alpha", "zeta"}, r.FactNames())
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	r.RegisterFact(staticFact("f", false, nil))
	r.RegisterErrorAction("core:skipUnit", func(_ context.Context, _ *FactContext, _ error) (any, error) {
		return nil, nil
	})
	r.Clear()

	facts, operators := r.Count()
	assert.Zero(t, facts)
	assert.Zero(t, operators)
	_, ok := r.ErrorAction("core:skipUnit")
	assert.False(t, ok)
}

func TestRegistryInitBarrier(t *testing.T) {
	r := NewRegistry()
	r.Go("slow", func(_ context.Context, r *Registry) error {
		time.Sleep(20 * time.Millisecond)
		r.RegisterFact(staticFact("late", false, nil))
		return nil
	})

	require.NoError(t, r.Wait(context.Background()))

	_, err := r.Fact("late")
	assert.NoError(t, err, "facts registered by initializers are visible after Wait")
}

func TestRegistryInitBarrierFailure(t *testing.T) {
	r := NewRegistry()
	r.Go("broken", func(_ context.Context, _ *Registry) error {
		return errors.New("dial failed")
	})

	err := r.Wait(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "plugin broken")
	assert.ErrorContains(t, err, "dial failed")
}

func TestRegistryWaitRespectsContext(t *testing.T) {
	r := NewRegistry()
	r.Go("hung", func(_ context.Context, _ *Registry) error {
		time.Sleep(5 * time.Second)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, r.Wait(ctx), context.DeadlineExceeded)
}

func TestIsGlobalFact(t *testing.T) {
	assert.True(t, IsGlobalFact(staticFact("repo", true, nil)))
	assert.False(t, IsGlobalFact(staticFact("file", false, nil)))
}
