package lifecycle

import (
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats samples host-level CPU and memory, merged into /health's Stats
// field alongside the Go-runtime counters in RuntimeStats. Errors from
// either sampler are swallowed: a health endpoint that crashes or blocks
// on an unsupported platform is worse than one that omits a field.
func HostStats() map[string]any {
	out := map[string]any{}
	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		out["cpu_percent"] = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		out["mem_used_percent"] = vm.UsedPercent
		out["mem_used_mb"] = vm.Used / 1024 / 1024
		out["mem_total_mb"] = vm.Total / 1024 / 1024
	}
	return out
}
