package kamstrup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthijsvisser/kamstrup-402-mqtt/helpers"
)

// 3f10 then energy volume temp1 temp2, values 227.445 GJ, 2131.935 m3,
// 41.69 C, 30.17 C
const respFourHex = "3f10003c080443000378750044280443002087df0056250242104900572502420bc9"

var reqFour = []RegisterId{0x3c, 0x44, 0x56, 0x57}

func TestParseReadResponse(t *testing.T) {
	t.Parallel()

	values, err := ParseReadResponse(helpers.MustHex(respFourHex), reqFour)
	require.NoError(t, err)
	require.Len(t, values, 4)

	assert.Equal(t, DecodedValue{Register: 0x3c, Mantissa: 227445, Exponent: -3, UnitCode: UnitGJ}, values[0])
	assert.Equal(t, DecodedValue{Register: 0x44, Mantissa: 2131935, Exponent: -3, UnitCode: UnitM3}, values[1])
	assert.Equal(t, DecodedValue{Register: 0x56, Mantissa: 4169, Exponent: -2, UnitCode: UnitC}, values[2])
	assert.Equal(t, DecodedValue{Register: 0x57, Mantissa: 3017, Exponent: -2, UnitCode: UnitC}, values[3])

	assert.Equal(t, 227.445, values[0].Value())
	assert.Equal(t, 2131.935, values[1].Value())
	assert.Equal(t, 41.69, values[2].Value())
	assert.Equal(t, 30.17, values[3].Value())
}

func TestParseNegativeValuePositiveExponent(t *testing.T) {
	t.Parallel()

	// power register, sigexp 0x82: sign bit set, exponent +2
	values, err := ParseReadResponse(helpers.MustHex("3f100050160282007b"), []RegisterId{0x50})
	require.NoError(t, err)
	require.Len(t, values, 1)
	assert.Equal(t, int64(-123), values[0].Mantissa)
	assert.Equal(t, int8(2), values[0].Exponent)
	assert.Equal(t, -12300.0, values[0].Value())
	unit, ok := values[0].Unit()
	assert.True(t, ok)
	assert.Equal(t, "kW", unit)
}

func TestParseCountMismatch(t *testing.T) {
	t.Parallel()

	// one record for two requested registers
	_, err := ParseReadResponse(helpers.MustHex("3f10003c08044300037875"), []RegisterId{0x3c, 0x44})
	assert.Equal(t, CountMismatch{Want: 2, Got: 1}, err)

	// extra trailing record is just as wrong
	_, err = ParseReadResponse(helpers.MustHex(respFourHex), reqFour[:3])
	assert.Equal(t, CountMismatch{Want: 3, Got: 4}, err)
}

func TestParseOrderMismatch(t *testing.T) {
	t.Parallel()

	permuted := []RegisterId{0x44, 0x3c, 0x56, 0x57}
	_, err := ParseReadResponse(helpers.MustHex(respFourHex), permuted)
	assert.Equal(t, OrderMismatch{Index: 0, Want: 0x44, Got: 0x3c}, err)
}

func TestParseTruncatedRecord(t *testing.T) {
	t.Parallel()

	full := helpers.MustHex("3f10003c08044300037875")
	for _, cut := range []int{3, 5, 8, 10} {
		_, err := ParseReadResponse(full[:cut], []RegisterId{0x3c})
		assert.Equal(t, ErrTruncatedRecord, err, "cut=%d", cut)
	}
}

func TestParseHeader(t *testing.T) {
	t.Parallel()

	_, err := ParseReadResponse(nil, []RegisterId{0x3c})
	assert.Equal(t, ErrResponseHeader, err)
	_, err = ParseReadResponse(helpers.MustHex("3f11003c08044300037875"), []RegisterId{0x3c})
	assert.Equal(t, ErrResponseHeader, err)
}

func TestParseMantissaLength(t *testing.T) {
	t.Parallel()

	// header claims 9 mantissa bytes
	payload := helpers.MustHex("3f10003c080943000000000000000000ff")
	_, err := ParseReadResponse(payload, []RegisterId{0x3c})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mantissa length")
}

func TestParseZeroLengthMantissa(t *testing.T) {
	t.Parallel()

	values, err := ParseReadResponse(helpers.MustHex("3f10003c080043"), []RegisterId{0x3c})
	require.NoError(t, err)
	assert.Equal(t, int64(0), values[0].Mantissa)
	assert.Equal(t, 0.0, values[0].Value())
}
