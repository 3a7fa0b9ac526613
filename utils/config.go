package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/ephysio/kwikstore/engine"
	"github.com/ephysio/kwikstore/utils/log"
)

var InstanceConfig RecorderConfig

// SourceSetting describes one simulated upstream Source.
type SourceSetting struct {
	NodeID             int
	Name               string
	SampleRate         float32
	Channels           int
	BitVolts           float32
	ChannelSampleRates []float32
	SpikeElectrodes    int
	Waveform           string
	Frequency          float64
	Amplitude          float64
}

type RecorderConfig struct {
	RootDirectory     string
	ExperimentNumber  int
	Recordings        int
	RecordingDuration time.Duration
	BlockSize         int
	Seed              int64
	LogLevel          log.Level

	Engine engine.Config

	Format        string
	FormatModule  string
	FormatConfig  map[string]interface{}
	CompressSpike bool

	MetricsListenURL  string
	DiskUsageInterval time.Duration

	Record     []string
	EventsFile string
	Sources    []*SourceSetting
}

const (
	defaultRecordings        = 1
	defaultRecordingDuration = 10 * time.Second
	defaultBlockSize         = 1024
	defaultDiskUsageInterval = 10 * time.Second
	defaultFormat            = "KWIK"
	defaultBitVolts          = 0.195
	defaultWaveform          = "sine"
)

func (m *RecorderConfig) Parse(data []byte) error {
	var aux struct {
		RootDirectory         string                 `yaml:"root_directory"`
		ExperimentNumber      int                    `yaml:"experiment_number"`
		Recordings            int                    `yaml:"recordings"`
		RecordingDuration     int                    `yaml:"recording_duration"`
		BlockSize             int                    `yaml:"block_size"`
		Seed                  int64                  `yaml:"seed"`
		LogLevel              string                 `yaml:"log_level"`
		TimestampInterval     int                    `yaml:"timestamp_interval"`
		TimestampMinWrite     *int                   `yaml:"timestamp_min_write"`
		ScaleMinWriteWithRate string                 `yaml:"scale_min_write_with_rate"`
		ScratchSize           int                    `yaml:"scratch_size"`
		AnchorPolicy          string                 `yaml:"anchor_policy"`
		CompressSpikes        string                 `yaml:"compress_spikes"`
		Format                string                 `yaml:"format"`
		FormatModule          string                 `yaml:"format_module"`
		FormatConfig          map[string]interface{} `yaml:"format_config"`
		MetricsListenURL      string                 `yaml:"metrics_listen_url"`
		DiskUsageInterval     int                    `yaml:"disk_usage_interval"`
		Record                []string               `yaml:"record"`
		EventsFile            string                 `yaml:"events_file"`
		Sources               []struct {
			NodeID             int       `yaml:"node_id"`
			Name               string    `yaml:"name"`
			SampleRate         float32   `yaml:"sample_rate"`
			Channels           int       `yaml:"channels"`
			BitVolts           float32   `yaml:"bit_volts"`
			ChannelSampleRates []float32 `yaml:"channel_sample_rates"`
			SpikeElectrodes    int       `yaml:"spike_electrodes"`
			Waveform           string    `yaml:"waveform"`
			Frequency          float64   `yaml:"frequency"`
			Amplitude          float64   `yaml:"amplitude"`
		} `yaml:"sources"`
	}

	if err := yaml.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.RootDirectory == "" {
		log.Error("Invalid root directory.")
		return errors.New("invalid root directory")
	}
	m.RootDirectory = aux.RootDirectory
	m.ExperimentNumber = aux.ExperimentNumber
	if m.ExperimentNumber <= 0 {
		m.ExperimentNumber = 1
	}

	m.Recordings = aux.Recordings
	if m.Recordings <= 0 {
		m.Recordings = defaultRecordings
	}
	m.RecordingDuration = defaultRecordingDuration
	if aux.RecordingDuration > 0 {
		m.RecordingDuration = time.Duration(aux.RecordingDuration) * time.Second
	}
	m.BlockSize = aux.BlockSize
	if m.BlockSize <= 0 {
		m.BlockSize = defaultBlockSize
	}
	m.Seed = aux.Seed

	m.LogLevel = log.INFO
	if aux.LogLevel != "" {
		m.LogLevel = log.ParseLevel(aux.LogLevel)
	}
	log.SetLevel(m.LogLevel)

	m.Engine = engine.DefaultConfig()
	if aux.TimestampInterval > 0 {
		m.Engine.TimestampInterval = aux.TimestampInterval
	}
	if aux.TimestampMinWrite != nil {
		if *aux.TimestampMinWrite < 0 {
			return fmt.Errorf("invalid timestamp_min_write: %d", *aux.TimestampMinWrite)
		}
		m.Engine.MinTimestampWrite = *aux.TimestampMinWrite
	}
	if aux.ScaleMinWriteWithRate != "" {
		scale, err := strconv.ParseBool(aux.ScaleMinWriteWithRate)
		if err != nil {
			log.Error("Invalid value: %v for scale_min_write_with_rate. Using a fixed minimum...", aux.ScaleMinWriteWithRate)
		} else {
			m.Engine.ScaleMinWriteWithRate = scale
		}
	}
	if aux.ScratchSize > 0 {
		m.Engine.ScratchSize = aux.ScratchSize
	}
	switch strings.ToLower(aux.AnchorPolicy) {
	case "", "per_source":
		m.Engine.Anchor = engine.AnchorPerSource
	case "primary":
		m.Engine.Anchor = engine.AnchorPrimary
	default:
		return fmt.Errorf("invalid anchor_policy %q, expected per_source or primary", aux.AnchorPolicy)
	}

	m.Format = strings.ToUpper(aux.Format)
	if m.Format == "" {
		m.Format = defaultFormat
	}
	m.FormatModule = aux.FormatModule
	m.FormatConfig = aux.FormatConfig
	if m.FormatConfig == nil {
		m.FormatConfig = map[string]interface{}{}
	}
	if aux.CompressSpikes != "" {
		compress, err := strconv.ParseBool(aux.CompressSpikes)
		if err != nil {
			log.Error("Invalid value: %v for compress_spikes. Writing uncompressed spikes...", aux.CompressSpikes)
		} else {
			m.CompressSpike = compress
		}
	}
	if _, found := m.FormatConfig["compress_spikes"]; !found {
		m.FormatConfig["compress_spikes"] = m.CompressSpike
	}

	m.MetricsListenURL = aux.MetricsListenURL
	m.DiskUsageInterval = defaultDiskUsageInterval
	if aux.DiskUsageInterval > 0 {
		m.DiskUsageInterval = time.Duration(aux.DiskUsageInterval) * time.Second
	}

	m.Record = aux.Record
	if len(m.Record) == 0 {
		m.Record = []string{"**"}
	}
	m.EventsFile = aux.EventsFile

	if len(aux.Sources) == 0 {
		return errors.New("at least one source is required")
	}
	seen := map[int]bool{}
	m.Sources = m.Sources[:0]
	for i, src := range aux.Sources {
		if src.NodeID <= 0 {
			return fmt.Errorf("source %d: invalid node_id %d", i, src.NodeID)
		}
		if seen[src.NodeID] {
			return fmt.Errorf("source %d: duplicate node_id %d", i, src.NodeID)
		}
		seen[src.NodeID] = true
		if src.SampleRate <= 0 {
			return fmt.Errorf("source %d: invalid sample_rate %v", src.NodeID, src.SampleRate)
		}
		if src.Channels <= 0 {
			return fmt.Errorf("source %d: invalid channel count %d", src.NodeID, src.Channels)
		}
		if n := len(src.ChannelSampleRates); n != 0 && n != src.Channels {
			return fmt.Errorf("source %d: %d channel_sample_rates for %d channels", src.NodeID, n, src.Channels)
		}
		setting := &SourceSetting{
			NodeID:             src.NodeID,
			Name:               src.Name,
			SampleRate:         src.SampleRate,
			Channels:           src.Channels,
			BitVolts:           src.BitVolts,
			ChannelSampleRates: src.ChannelSampleRates,
			SpikeElectrodes:    src.SpikeElectrodes,
			Waveform:           strings.ToLower(src.Waveform),
			Frequency:          src.Frequency,
			Amplitude:          src.Amplitude,
		}
		if setting.Name == "" {
			setting.Name = fmt.Sprintf("Source %d", src.NodeID)
		}
		if setting.BitVolts <= 0 {
			setting.BitVolts = defaultBitVolts
		}
		if setting.Waveform == "" {
			setting.Waveform = defaultWaveform
		}
		m.Sources = append(m.Sources, setting)
	}
	return nil
}

// ParseConfig reads and parses the YAML file at path into InstanceConfig.
func ParseConfig(path string) (*RecorderConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %s: %w", path, err)
	}
	if err := InstanceConfig.Parse(data); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %s: %w", path, err)
	}
	return &InstanceConfig, nil
}
