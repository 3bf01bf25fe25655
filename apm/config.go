package apm

import "github.com/evergreen-ci/utility"

// MonitorConfig limits which commands a Monitor records. Empty lists
// match everything.
type MonitorConfig struct {
	Databases   []string
	Collections []string
	Commands    []string
}

func (c *MonitorConfig) shouldTrack(k commandKey) bool {
	if c == nil {
		return true
	}

	if len(c.Databases) > 0 && !utility.StringSliceContains(c.Databases, k.Database) {
		return false
	}

	if len(c.Collections) > 0 && !utility.StringSliceContains(c.Collections, k.Collection) {
		return false
	}

	if len(c.Commands) > 0 && !utility.StringSliceContains(c.Commands, k.Command) {
		return false
	}

	return true
}
