package kamstrup

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthijsvisser/kamstrup-402-mqtt/helpers"
)

func TestReadingSetJSON(t *testing.T) {
	t.Parallel()

	at := time.Date(2021, 3, 14, 15, 9, 26, 0, time.UTC)
	rs := ReadingSet{
		{Parameter: "energy", Value: 227.445, Unit: "GJ", At: at},
		{Parameter: "volume", Value: 2131.935, Unit: "m3", At: at},
		{Parameter: "temp1", Value: 41.69, Unit: "C", At: at},
		{Parameter: "power", Value: -12300, Unit: "kW", At: at},
	}
	b, err := json.Marshal(rs)
	require.NoError(t, err)
	assert.Equal(t, `{"energy":227.445,"volume":2131.935,"temp1":41.69,"power":-12300}`, string(b))

	b, err = json.Marshal(ReadingSet{})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(b))
}

func TestReadingSetGet(t *testing.T) {
	t.Parallel()

	rs := ReadingSet{
		{Parameter: "energy", Value: 227.445, Unit: "GJ"},
		{Parameter: "flow", Value: 278, Unit: "l/h"},
	}
	r, ok := rs.Get("flow")
	assert.True(t, ok)
	assert.Equal(t, 278.0, r.Value)
	_, ok = rs.Get("temp1")
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	t.Parallel()

	at := time.Now()
	values, err := ParseReadResponse(helpers.MustHex(respFourHex), reqFour)
	require.NoError(t, err)
	rs, unknown := Resolve([]string{"energy", "volume", "temp1", "temp2"}, values, at)
	require.Empty(t, unknown)
	require.Len(t, rs, 4)
	assert.Equal(t, Reading{Parameter: "energy", Value: 227.445, Unit: "GJ", At: at}, rs[0])
	assert.Equal(t, Reading{Parameter: "volume", Value: 2131.935, Unit: "m3", At: at}, rs[1])

	// unit code 99 is not in the protocol table
	values, err = ParseReadResponse(helpers.MustHex("3f10003c63044300037875"), []RegisterId{0x3c})
	require.NoError(t, err)
	rs, unknown = Resolve([]string{"energy"}, values, at)
	require.Len(t, unknown, 1)
	assert.Equal(t, UnknownUnit{Register: 0x3c, Code: 99}, unknown[0])
	assert.Equal(t, "", rs[0].Unit)
	assert.Equal(t, 227.445, rs[0].Value)

	assert.Panics(t, func() { Resolve([]string{"energy"}, nil, at) })
}
