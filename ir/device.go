package ir

// Device is the target device tag carried on allocation instructions.
// It intentionally fits in a signed 8-bit attribute.
type Device int8

const (
	CPU Device = iota
	CUDA
)

func (d Device) String() string {
	switch d {
	case CPU:
		return "cpu"
	case CUDA:
		return "cuda"
	}
	return "device(?)"
}

// ParseDevice maps a source-level device name back to its Device.
func ParseDevice(s string) (Device, bool) {
	switch s {
	case "cpu":
		return CPU, true
	case "cuda":
		return CUDA, true
	}
	return 0, false
}

// PickDevice returns the dominant device among the graph's annotated nodes.
// It reports false when no node carries a device annotation or when two
// devices tie, in which case callers should fall back to CPU.
func PickDevice(g *Graph) (Device, bool) {
	counts := make(map[Device]int)
	for _, n := range g.Nodes() {
		if dev, ok := n.DeviceHint(); ok {
			counts[dev]++
		}
	}
	if len(counts) == 0 {
		return CPU, false
	}
	best, bestCount, tied := CPU, -1, false
	// Deterministic scan: device values are a tiny dense enum.
	for d := CPU; d <= CUDA; d++ {
		c := counts[d]
		if c == 0 {
			continue
		}
		if c > bestCount {
			best, bestCount, tied = d, c, false
		} else if c == bestCount {
			tied = true
		}
	}
	if tied {
		return CPU, false
	}
	return best, true
}
