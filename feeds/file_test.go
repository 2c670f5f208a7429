package feeds

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTicksJSONL(t *testing.T) {
	in := `{"symbol":"BTCUSDT","timestamp":1700000000000,"price":64000.5,"volume":0.1}

{"symbol":"BTCUSDT","timestamp":1700000000250,"price":64001,"volume":0.2,"is_buyer_maker":true}
`
	ticks, err := DecodeTicksJSONL(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	assert.Equal(t, 64000.5, ticks[0].Price)
	assert.True(t, ticks[1].IsBuyerMaker)
}

func TestDecodeTicksJSONLMalformedLine(t *testing.T) {
	in := `{"symbol":"BTCUSDT","timestamp":1,"price":100,"volume":1}
not json
`
	_, err := DecodeTicksJSONL(strings.NewReader(in))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestDecodeTicksJSONLRejectsBadTick(t *testing.T) {
	in := `{"symbol":"","timestamp":1,"price":100,"volume":1}`
	_, err := DecodeTicksJSONL(strings.NewReader(in))
	assert.Error(t, err)

	in = `{"symbol":"BTCUSDT","timestamp":1,"price":0,"volume":1}`
	_, err = DecodeTicksJSONL(strings.NewReader(in))
	assert.Error(t, err)
}
