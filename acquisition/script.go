package acquisition

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"
)

// ScriptedEvent is one row of an event script, timed in seconds from the
// start of each recording.
//
//	time,kind,line,state,text
//	0.5,ttl,0,true,
//	1.0,text,,,stimulus on
type ScriptedEvent struct {
	Time  float64 `csv:"time"`
	Kind  string  `csv:"kind"`
	Line  uint8   `csv:"line"`
	State bool    `csv:"state"`
	Text  string  `csv:"text"`
}

const (
	kindTTL  = "ttl"
	kindText = "text"
)

// LoadScript parses an event script and returns its events sorted by time.
func LoadScript(r io.Reader) ([]*ScriptedEvent, error) {
	var events []*ScriptedEvent
	if err := gocsv.Unmarshal(r, &events); err != nil {
		return nil, fmt.Errorf("failed to parse event script: %w", err)
	}
	for i, ev := range events {
		ev.Kind = strings.ToLower(strings.TrimSpace(ev.Kind))
		if ev.Kind != kindTTL && ev.Kind != kindText {
			return nil, fmt.Errorf("event %d: unknown kind %q", i, ev.Kind)
		}
		if ev.Time < 0 {
			return nil, fmt.Errorf("event %d: negative time %v", i, ev.Time)
		}
		if ev.Kind == kindTTL && int(ev.Line) >= ttlLines {
			return nil, fmt.Errorf("event %d: TTL line %d out of range", i, ev.Line)
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Time < events[j].Time
	})
	return events, nil
}

func LoadScriptFile(path string) ([]*ScriptedEvent, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fp.Close()
	return LoadScript(fp)
}
