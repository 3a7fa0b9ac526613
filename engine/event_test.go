package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ephysio/kwikstore/engine"
)

var (
	ttlChannel  = engine.EventChannel{Name: "TTL", Type: engine.TTL, SourceID: 100, Lines: 8}
	textChannel = engine.EventChannel{Name: "Messages", Type: engine.Text, SourceID: 100}
)

func TestDecodeTTL(t *testing.T) {
	t.Parallel()
	ev, err := engine.DecodeEvent(engine.EncodeTTL(100, 3, true, 123456789), ttlChannel)
	require.Nil(t, err)
	assert.Equal(t, engine.TTL, ev.Type)
	assert.Equal(t, uint16(100), ev.SourceID)
	assert.Equal(t, uint8(3), ev.Line)
	assert.True(t, ev.State)
	assert.Equal(t, int64(123456789), ev.Timestamp)
}

func TestDecodeText(t *testing.T) {
	t.Parallel()
	ev, err := engine.DecodeEvent(engine.EncodeText(7, "stimulus µ on", -5), textChannel)
	require.Nil(t, err)
	assert.Equal(t, engine.Text, ev.Type)
	assert.Equal(t, "stimulus µ on", ev.Text)
	assert.Equal(t, int64(-5), ev.Timestamp)
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()
	badState := engine.EncodeTTL(1, 0, false, 0)
	badState[len(badState)-1] = 7
	badUTF8 := engine.EncodeText(1, "ok", 0)
	badUTF8 = append(badUTF8, 0xff, 0xfe)

	tests := map[string]struct {
		raw []byte
		ch  engine.EventChannel
	}{
		"empty":             {nil, ttlChannel},
		"short header":      {[]byte{byte(engine.TTL), 0, 1}, ttlChannel},
		"truncated ttl":     {engine.EncodeTTL(1, 0, true, 0)[:12], ttlChannel},
		"line out of range": {engine.EncodeTTL(1, 9, true, 0), ttlChannel},
		"invalid state":     {badState, ttlChannel},
		"type mismatch":     {engine.EncodeText(1, "x", 0), ttlChannel},
		"invalid utf8":      {badUTF8, textChannel},
	}
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := engine.DecodeEvent(tt.raw, tt.ch)
			assert.NotNil(t, err)
		})
	}
}
