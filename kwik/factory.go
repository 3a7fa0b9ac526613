// Package kwik writes the Kwik family of recording files: one .raw.kwd file
// per Source, one .kwe event file and one .kwx spike file per experiment.
package kwik

import (
	"github.com/pkg/errors"

	"github.com/ephysio/kwikstore/engine"
)

// EngineID is the name the format is registered under.
const EngineID = "KWIK"

func init() {
	engine.RegisterFormat(EngineID, NewFromConfig)
}

type Factory struct {
	CompressSpikes bool
}

var _ engine.FileFactory = (*Factory)(nil)

func NewFactory(compressSpikes bool) *Factory {
	return &Factory{CompressSpikes: compressSpikes}
}

// NewFromConfig builds a Factory from the format section of a configuration
// file. The only recognized key is compress_spikes.
func NewFromConfig(config map[string]interface{}) (engine.FileFactory, error) {
	f := &Factory{}
	if v, found := config["compress_spikes"]; found {
		compress, ok := v.(bool)
		if !ok {
			return nil, errors.Errorf("compress_spikes must be a boolean, got %T", v)
		}
		f.CompressSpikes = compress
	}
	return f, nil
}

func (f *Factory) EngineID() string {
	return EngineID
}

func (f *Factory) NewEventSink() (engine.EventSink, error) {
	return NewKWEFile(), nil
}

func (f *Factory) NewSpikeSink() (engine.SpikeSink, error) {
	return NewKWXFile(f.CompressSpikes), nil
}

func (f *Factory) NewChannelGroupFile() engine.ChannelGroupFile {
	return NewKWDFile()
}
