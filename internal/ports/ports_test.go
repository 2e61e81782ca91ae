package ports

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portscope/portscope/internal/errors"
)

func TestValidateDeduplicatesPreservingOrder(t *testing.T) {
	got, err := Validate([]int{80, 443, 80})
	require.NoError(t, err)
	assert.Equal(t, []int{80, 443}, got)

	got, err = Validate([]int{443, 22, 443, 22, 80})
	require.NoError(t, err)
	assert.Equal(t, []int{443, 22, 80}, got)
}

func TestValidateRejectsDisallowedPort(t *testing.T) {
	_, err := Validate([]int{9999})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodePortsInvalid))

	_, err = Validate([]int{80, 443, 31337})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodePortsInvalid))
}

func TestValidateRejectsEmptySet(t *testing.T) {
	_, err := Validate(nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodePortsInvalid))

	_, err = Validate([]int{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodePortsInvalid))
}

func TestValidateRejectsOversizedSet(t *testing.T) {
	// 25 distinct values derived from the allow-list by offsetting;
	// the count limit must trip before membership is consulted.
	oversized := make([]int, 0, 25)
	for i := 0; i < 25; i++ {
		oversized = append(oversized, Allowed[i%len(Allowed)]+i*10000)
	}
	require.Greater(t, len(oversized), MaxPerScan)

	_, err := Validate(oversized)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodePortsInvalid))
}

func TestValidateIsIdempotent(t *testing.T) {
	first, err := Validate([]int{8080, 21, 8080, 443, 21})
	require.NoError(t, err)

	second, err := Validate(first)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestValidateAcceptsFullAllowList(t *testing.T) {
	got, err := Validate(Allowed)
	require.NoError(t, err)
	assert.Equal(t, Allowed, got)
}

func TestIsAllowed(t *testing.T) {
	for _, p := range Allowed {
		assert.True(t, IsAllowed(p), "port %d should be allowed", p)
	}
	for _, p := range []int{0, 1, 23, 3389, 9999, 65535, -1} {
		assert.False(t, IsAllowed(p), "port %d should not be allowed", p)
	}
}
