package kamstrup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthijsvisser/kamstrup-402-mqtt/helpers"
)

func TestBuildReadRequest(t *testing.T) {
	t.Parallel()

	p, err := BuildReadRequest([]RegisterId{0x3c})
	require.NoError(t, err)
	assert.Equal(t, helpers.MustHex("3f1001003c"), p)

	p, err = BuildReadRequest([]RegisterId{0x3c, 0x44, 0x56, 0x57})
	require.NoError(t, err)
	assert.Equal(t, helpers.MustHex("3f1004003c004400560057"), p)

	p, err = BuildReadRequest([]RegisterId{0x3ec})
	require.NoError(t, err)
	assert.Equal(t, helpers.MustHex("3f100103ec"), p)
}

func TestBuildReadRequestOrder(t *testing.T) {
	t.Parallel()
	// response association is purely positional, caller order is law
	p, err := BuildReadRequest([]RegisterId{0x57, 0x3c})
	require.NoError(t, err)
	assert.Equal(t, helpers.MustHex("3f10020057003c"), p)
}

func TestBuildReadRequestRejects(t *testing.T) {
	t.Parallel()

	_, err := BuildReadRequest(nil)
	assert.Equal(t, ErrNoRegisters, err)

	nine := make([]RegisterId, 9)
	for i := range nine {
		nine[i] = RegisterId(0x3c + i)
	}
	_, err = BuildReadRequest(nine)
	assert.Equal(t, ErrTooManyRegisters, err)
}
