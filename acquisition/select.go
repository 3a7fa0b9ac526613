package acquisition

import (
	"fmt"

	"github.com/gobwas/glob"
)

// SelectChannels returns the indices of the names matching at least one of
// the patterns. Patterns use '/' as separator, so "Probe A/*" selects every
// channel of the Source named "Probe A".
func SelectChannels(names, patterns []string) ([]int, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid channel pattern %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	var selected []int
	for i, name := range names {
		for _, g := range globs {
			if g.Match(name) {
				selected = append(selected, i)
				break
			}
		}
	}
	return selected, nil
}
