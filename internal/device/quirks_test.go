// ABOUTME: Tests for the YAML quirk table
// ABOUTME: Covers parsing, firmware-specific entries and lookup fallback
package device

import "testing"

const quirkYAML = `
devices:
  - vendor: acme
    model: hdmi-bridge
    clamp_latency: true
    max_latency_us: 150000
  - vendor: acme
    model: hdmi-bridge
    firmware: "2.1"
    offload_broken: true
  - vendor: generic
    model: usb-dac
    stall_flush_disabled: true
    no_frame_coalescing: true
`

func TestParseQuirks(t *testing.T) {
	table, err := ParseQuirks([]byte(quirkYAML))
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 3 {
		t.Fatalf("parsed %d entries, want 3", len(table))
	}

	q := table.Lookup(Identity{Vendor: "generic", Model: "usb-dac"})
	if !q.StallFlushDisabled || !q.NoFrameCoalescing {
		t.Errorf("usb-dac quirks = %+v", q)
	}
}

func TestLookupPrefersFirmwareMatch(t *testing.T) {
	table, err := ParseQuirks([]byte(quirkYAML))
	if err != nil {
		t.Fatal(err)
	}

	q := table.Lookup(Identity{Vendor: "acme", Model: "hdmi-bridge", Firmware: "2.1"})
	if !q.OffloadBroken {
		t.Error("firmware-specific entry not used")
	}
	if q.ClampLatency {
		t.Error("firmware entry merged with the model entry; entries are distinct")
	}
}

func TestLookupFallsBackToModel(t *testing.T) {
	table, err := ParseQuirks([]byte(quirkYAML))
	if err != nil {
		t.Fatal(err)
	}

	// Unknown firmware falls back to the vendor/model entry.
	q := table.Lookup(Identity{Vendor: "acme", Model: "hdmi-bridge", Firmware: "9.9"})
	if !q.ClampLatency || q.MaxLatencyUs != 150_000 {
		t.Errorf("fallback quirks = %+v, want the vendor/model entry", q)
	}
}

func TestLookupUnknownDeviceIsWellBehaved(t *testing.T) {
	table, err := ParseQuirks([]byte(quirkYAML))
	if err != nil {
		t.Fatal(err)
	}
	if q := table.Lookup(Identity{Vendor: "nobody", Model: "nothing"}); q != (Quirks{}) {
		t.Errorf("unknown device quirks = %+v, want zero value", q)
	}
}

func TestLoadQuirksMissingFile(t *testing.T) {
	table, err := LoadQuirks("/does/not/exist.yaml")
	if err != nil {
		t.Fatalf("missing file must not error, got %v", err)
	}
	if len(table) != 0 {
		t.Errorf("missing file produced %d entries", len(table))
	}
}
