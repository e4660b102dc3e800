// ABOUTME: Data-driven device quirk table loaded from YAML
// ABOUTME: Replaces scattered per-model branching with configuration-time lookups
package device

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Quirks captures per-device workarounds. Zero value means a well-behaved
// device.
type Quirks struct {
	// ClampLatency bounds absurd device-reported latencies instead of
	// propagating them.
	ClampLatency bool `yaml:"clamp_latency"`

	// MaxLatencyUs is the clamp ceiling when ClampLatency is set.
	MaxLatencyUs int64 `yaml:"max_latency_us"`

	// NoFrameCoalescing marks devices whose output stage needs every frame;
	// release-time coalescing is disabled for them.
	NoFrameCoalescing bool `yaml:"no_frame_coalescing"`

	// OffloadBroken disables the offload path regardless of advertised
	// device capabilities.
	OffloadBroken bool `yaml:"offload_broken"`

	// StallFlushDisabled suppresses the automatic flush-and-retry when the
	// position tracker detects a stall.
	StallFlushDisabled bool `yaml:"stall_flush_disabled"`
}

// QuirkTable maps Identity keys to quirks. Lookups fall back from the full
// vendor/model/firmware key to vendor/model.
type QuirkTable map[string]Quirks

// Lookup returns the quirks for a device identity, or the zero value.
func (t QuirkTable) Lookup(id Identity) Quirks {
	if q, ok := t[id.Key()]; ok {
		return q
	}
	if q, ok := t[Identity{Vendor: id.Vendor, Model: id.Model}.Key()]; ok {
		return q
	}
	return Quirks{}
}

type quirkFile struct {
	Devices []struct {
		Identity `yaml:",inline"`
		Quirks   `yaml:",inline"`
	} `yaml:"devices"`
}

// LoadQuirks reads a quirk table from a YAML file. A missing path yields an
// empty table rather than an error so deployments without quirks need no
// config file.
func LoadQuirks(path string) (QuirkTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return QuirkTable{}, nil
		}
		return nil, fmt.Errorf("quirks: read %s: %w", path, err)
	}
	return ParseQuirks(data)
}

// ParseQuirks parses quirk table YAML.
func ParseQuirks(data []byte) (QuirkTable, error) {
	var f quirkFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("quirks: parse: %w", err)
	}
	table := make(QuirkTable, len(f.Devices))
	for _, d := range f.Devices {
		table[d.Identity.Key()] = d.Quirks
	}
	return table, nil
}
