package acquisition_test

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ephysio/kwikstore/acquisition"
	"github.com/ephysio/kwikstore/engine"
	"github.com/ephysio/kwikstore/utils"
	"github.com/ephysio/kwikstore/utils/test"
)

func testConfig(t *testing.T) *utils.RecorderConfig {
	t.Helper()
	return &utils.RecorderConfig{
		RootDirectory:     t.TempDir(),
		ExperimentNumber:  1,
		Recordings:        2,
		RecordingDuration: time.Second,
		BlockSize:         700,
		Seed:              1,
		Engine:            engine.DefaultConfig(),
		Record:            []string{"**"},
		Sources: []*utils.SourceSetting{
			{NodeID: 100, Name: "Probe A", SampleRate: 30000, Channels: 2, BitVolts: 0.195, Waveform: "sine"},
			{NodeID: 101, Name: "ADC", SampleRate: 1000, Channels: 1, BitVolts: 0.5, Waveform: "ramp"},
		},
	}
}

func TestSessionRecordsEverySource(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	fac := &test.MemoryFactory{}
	s, err := acquisition.NewSession(cfg, fac)
	require.Nil(t, err)
	require.Nil(t, s.Run(context.Background()))

	stats := s.Stats()
	assert.Equal(t, 2, stats.Recordings)
	assert.Equal(t, 0, stats.NotReady)
	assert.Equal(t, 0, stats.Dropped)
	assert.Equal(t, int64(2*(2*30000+1000)), stats.Samples)
	assert.Equal(t, engine.Idle, s.Engine().State())

	require.Len(t, fac.Files, 2)
	fileA, fileB := fac.Files[0], fac.Files[1]
	assert.Equal(t, 2, fileA.OpenCalls)
	assert.Equal(t, 0, fac.OpenFiles())

	// the memory file keeps the last recording only
	assert.Len(t, fileA.Samples[0], 30000)
	assert.Len(t, fileA.Samples[1], 30000)
	assert.Len(t, fileB.Samples[0], 1000)

	var want []int64
	for ts := int64(30000); ts < 60000; ts += engine.DefaultTimestampInterval {
		want = append(want, ts)
	}
	if diff := cmp.Diff(want, fileA.Timestamps[0]); diff != "" {
		t.Errorf("timestamps of Probe A/CH0 (-want +got):\n%s", diff)
	}
	assert.Equal(t, []int64{1000}, fileB.Timestamps[0])
	assert.Equal(t, int64(30000), fileA.Info.StartTime)
	assert.Equal(t, int64(1000), fileB.Info.StartTime)

	sink := fac.EventSink()
	assert.Equal(t, []int{0, 1}, sink.Recordings)
	require.Len(t, sink.Events, 4)
	assert.Equal(t, uint8(engine.SyncState), sink.Events[0].State)
	assert.Equal(t, uint16(100), sink.Events[0].SourceID)
	assert.Equal(t, "Probe A start time: 0@30000Hz", string(sink.Events[0].Payload))
	assert.Equal(t, int64(1000), sink.Events[3].Timestamp)
}

func TestSessionReplaysScript(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Recordings = 1
	cfg.EventsFile = filepath.Join(t.TempDir(), "events.csv")
	script := "time,kind,line,state,text\n0.5,ttl,2,true,\n0.25,text,,,stimulus on\n0.75,ttl,2,false,\n"
	require.Nil(t, os.WriteFile(cfg.EventsFile, []byte(script), 0o644))

	fac := &test.MemoryFactory{}
	s, err := acquisition.NewSession(cfg, fac)
	require.Nil(t, err)
	require.Nil(t, s.Run(context.Background()))
	assert.Equal(t, 3, s.Stats().Events)

	events := fac.EventSink().Events
	require.Len(t, events, 5)
	assert.Equal(t, test.EventRecord{
		TypeIndex: engine.TextEventIndex, SourceID: 100, Payload: []byte("stimulus on"), Timestamp: 7500,
	}, events[2])
	assert.Equal(t, test.EventRecord{
		TypeIndex: engine.TTLEventIndex, State: 1, SourceID: 100, Payload: []byte{2}, Timestamp: 15000,
	}, events[3])
	assert.Equal(t, uint8(0), events[4].State)
}

func TestSessionRecordsSelectedChannels(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Recordings = 1
	cfg.Record = []string{"Probe A/CH1"}

	fac := &test.MemoryFactory{}
	s, err := acquisition.NewSession(cfg, fac)
	require.Nil(t, err)
	require.Len(t, s.Recorded(), 1)
	assert.Equal(t, "Probe A/CH1", s.Recorded()[0].Name)
	assert.Len(t, s.Channels(), 3)

	require.Nil(t, s.Run(context.Background()))
	assert.Equal(t, 1, fac.Files[0].Channels)
	assert.Equal(t, 0, fac.Files[1].OpenCalls)
	assert.Len(t, fac.Files[0].Samples[0], 30000)
}

func TestSessionWritesSpikes(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.Recordings = 1
	cfg.Sources[0].SpikeElectrodes = 2

	fac := &test.MemoryFactory{}
	s, err := acquisition.NewSession(cfg, fac)
	require.Nil(t, err)
	require.Nil(t, s.Run(context.Background()))

	sink := fac.SpikeSink()
	assert.Equal(t, []int{4, 4}, sink.Groups)
	assert.True(t, s.Stats().Spikes > 0)
	require.Len(t, sink.Spikes, s.Stats().Spikes)
	for _, sp := range sink.Spikes {
		assert.Equal(t, 40, sp.SamplesPerChannel)
		assert.Len(t, sp.Data, 160)
		assert.True(t, sp.Data[10] < 0)
	}
}

func TestSessionStopsOnCancel(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	fac := &test.MemoryFactory{}
	s, err := acquisition.NewSession(cfg, fac)
	require.Nil(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
	assert.Equal(t, 1, s.Stats().Recordings)
	assert.Equal(t, 0, fac.OpenFiles())

	s.Close()
	assert.Empty(t, s.Engine().Sources())
}

func TestNewSessionFailures(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	_, err := acquisition.NewSession(cfg, &test.MemoryFactory{FailEventSink: true})
	assert.NotNil(t, err)

	cfg = testConfig(t)
	cfg.Sources[1].Waveform = "square"
	_, err = acquisition.NewSession(cfg, &test.MemoryFactory{})
	assert.NotNil(t, err)

	cfg = testConfig(t)
	cfg.Record = []string{"[unterminated"}
	_, err = acquisition.NewSession(cfg, &test.MemoryFactory{})
	assert.NotNil(t, err)

	cfg = testConfig(t)
	cfg.EventsFile = filepath.Join(t.TempDir(), "missing.csv")
	_, err = acquisition.NewSession(cfg, &test.MemoryFactory{})
	assert.NotNil(t, err)
}

func TestSelectChannels(t *testing.T) {
	t.Parallel()
	names := []string{"Probe A/CH0", "Probe A/CH1", "Probe B/CH0", "ADC/CH0", "ADC/CH1"}
	tests := map[string]struct {
		patterns []string
		want     []int
	}{
		"everything":        {[]string{"**"}, []int{0, 1, 2, 3, 4}},
		"one source":        {[]string{"Probe A/*"}, []int{0, 1}},
		"class":             {[]string{"ADC/CH[1-9]"}, []int{4}},
		"union":             {[]string{"Probe ?/CH0", "ADC/*"}, []int{0, 2, 3, 4}},
		"star stops at sep": {[]string{"Probe*"}, nil},
		"no patterns":       {nil, nil},
	}
	for name, tt := range tests {
		got, err := acquisition.SelectChannels(names, tt.patterns)
		require.Nil(t, err, name)
		assert.Equal(t, tt.want, got, name)
	}

	_, err := acquisition.SelectChannels(names, []string{"[unterminated"})
	assert.NotNil(t, err)
}

func TestLoadScript(t *testing.T) {
	t.Parallel()
	events, err := acquisition.LoadScript(strings.NewReader("time,kind,line,state,text\n2,TEXT,,,b\n1,ttl,7,1,\n"))
	require.Nil(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, &acquisition.ScriptedEvent{Time: 1, Kind: "ttl", Line: 7, State: true}, events[0])
	assert.Equal(t, "b", events[1].Text)

	for _, bad := range []string{
		"time,kind,line,state,text\n1,pulse,,,\n",
		"time,kind,line,state,text\n-1,text,,,x\n",
		"time,kind,line,state,text\n1,ttl,8,true,\n",
		"time,kind,line,state,text\nsoon,ttl,1,true,\n",
	} {
		_, err := acquisition.LoadScript(strings.NewReader(bad))
		assert.NotNil(t, err, bad)
	}
}

func TestGenerators(t *testing.T) {
	t.Parallel()
	rng := rand.New(rand.NewSource(1))

	sine, err := acquisition.NewGenerator("sine", 1000, 50, 4000, rng)
	require.Nil(t, err)
	buf := make([]float32, 4)
	sine.Fill(buf, 0)
	assert.InDelta(t, 0, buf[0], 1e-4)
	assert.InDelta(t, 50, buf[1], 1e-4)
	assert.InDelta(t, -50, buf[3], 1e-4)

	ramp, err := acquisition.NewGenerator("ramp", 1, 10, 4, rng)
	require.Nil(t, err)
	ramp.Fill(buf, 4)
	assert.Equal(t, []float32{-10, -5, 0, 5}, buf)

	noise, err := acquisition.NewGenerator("noise", 0, 0, 1000, rng)
	require.Nil(t, err)
	noise.Fill(buf, 0)
	assert.NotEqual(t, buf[0], buf[1])

	_, err = acquisition.NewGenerator("square", 1, 1, 1000, rng)
	assert.NotNil(t, err)
}
