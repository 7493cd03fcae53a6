package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string
	Value int
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sample{Name: "velocity", Value: 7}

	data, err := Encode(in)
	require.NoError(t, err)

	var out sample
	require.NoError(t, Decode(data, &out))
	require.Equal(t, in, out)
}

func TestDecodeIntoNonPointerFails(t *testing.T) {
	data, err := Encode(sample{Name: "x"})
	require.NoError(t, err)

	var out sample
	err = Decode(data, out)
	require.Error(t, err)
}

func TestDecodeMalformedDataFails(t *testing.T) {
	var out sample
	err := Decode([]byte{0xff, 0xff, 0xff}, &out)
	require.Error(t, err)
}
