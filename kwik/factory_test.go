package kwik_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ephysio/kwikstore/engine"
	"github.com/ephysio/kwikstore/kwik"
	"github.com/ephysio/kwikstore/utils/test"
)

func TestRegisteredAsKwik(t *testing.T) {
	t.Parallel()
	newFactory, err := engine.LookupFormat("kwik")
	require.Nil(t, err)

	fac, err := newFactory(map[string]interface{}{"compress_spikes": true})
	require.Nil(t, err)
	assert.True(t, fac.(*kwik.Factory).CompressSpikes)
	assert.Equal(t, "KWIK", fac.(*kwik.Factory).EngineID())

	_, err = newFactory(map[string]interface{}{"compress_spikes": "yes"})
	assert.NotNil(t, err)
}

func TestEngineWritesKwikFiles(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	host := test.NewStaticHost(3, 0)
	eng := engine.NewEngine(kwik.NewFactory(true), host, engine.DefaultConfig())
	require.Nil(t, eng.StartAcquisition())

	_, err := eng.RegisterSource(engine.Source{NodeID: 100, SampleRate: 30000})
	require.Nil(t, err)
	_, err = eng.RegisterSource(engine.Source{NodeID: 101, SampleRate: 1000})
	require.Nil(t, err)
	for _, node := range []int{100, 100, 101} {
		_, res := eng.AddChannel(engine.DataChannel{SourceNodeID: node, SampleRate: 30000, BitVolts: 0.195})
		require.Equal(t, engine.OK, res)
	}
	text := eng.AddEventChannel(engine.EventChannel{Name: "Messages", Type: engine.Text})
	tetrode := eng.AddSpikeElectrode(engine.SpikeChannel{Name: "TT1", SamplesPerChannel: 4, ChannelBitVolts: []float32{1, 1, 1, 1}})

	for rec := 0; rec < 2; rec++ {
		require.Nil(t, eng.BeginRecording(root, 1, rec))
		for i := 0; i < 3; i++ {
			samples := make([]float32, 1000)
			assert.Equal(t, engine.OK, eng.WriteSamples(i, i, samples))
			host.Advance(i, len(samples))
		}
		eng.EndChannelBlock(false)
		assert.Equal(t, engine.OK, eng.WriteEvent(text, engine.EncodeText(0, "hello", 10)))
		assert.Equal(t, engine.OK, eng.WriteSpike(tetrode, engine.SpikeEvent{Timestamp: 20, Data: make([]float32, 16)}))
		eng.EndRecording()
	}

	for _, name := range []string{"experiment1_100.raw.kwd", "experiment1_101.raw.kwd", "experiment1.kwe", "experiment1.kwx"} {
		fi, err := os.Stat(filepath.Join(root, name))
		require.Nil(t, err, name)
		assert.True(t, fi.Size() > 16, name)
	}
	for _, ss := range eng.Sources() {
		assert.False(t, ss.File.IsOpen())
	}
}
