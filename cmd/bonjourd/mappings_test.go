package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-bonjour"
)

func TestParseMapping(t *testing.T) {
	tests := []struct {
		in   string
		want mappingArg
	}{
		{"address", mappingArg{protocol: bonjour.ProtocolNone}},
		{"udp:5353", mappingArg{protocol: bonjour.ProtocolUDP, internal: 5353}},
		{"TCP:8080:80", mappingArg{protocol: bonjour.ProtocolTCP, internal: 8080, external: 80}},
		{"udp:9000:0:3600", mappingArg{protocol: bonjour.ProtocolUDP, internal: 9000, ttl: 3600}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseMapping(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("非法输入", func(t *testing.T) {
		for _, in := range []string{"", "udp", "sctp:1", "udp:0", "udp:70000", "udp:1:2:x", "udp:1:2:3:4"} {
			_, err := parseMapping(in)
			assert.Error(t, err, in)
		}
		_, err := parseMapping("udp:0")
		assert.ErrorIs(t, err, bonjour.ErrInvalidPort)
	})
}

func TestMappingList(t *testing.T) {
	var l mappingList
	require.NoError(t, l.Set("udp:5353"))
	require.NoError(t, l.Set("tcp:22:2222"))
	require.NoError(t, l.Set("address"))
	assert.Error(t, l.Set("bogus"))

	assert.Len(t, l, 3)
	assert.Equal(t, "udp:5353,tcp:22:2222,address", l.String())
}
