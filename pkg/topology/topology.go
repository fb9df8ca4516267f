// Package topology is the machine-topology probe named as a collaborator in
// spec.md §1 ("the machine-topology probe (number of hardware threads, NUMA
// binding)"). It is deliberately thin: the core scheduler only ever needs a
// worker count, resolved here from the host's logical CPU count via
// github.com/shirou/gopsutil/v3 (grounded on Fantom-foundation-Tosca and
// wyf-ACCEPT-eth2030, both of which carry gopsutil transitively for host
// introspection) rather than runtime.NumCPU directly, so the probe can be
// swapped for a cgroup-aware or NUMA-aware one without touching the
// scheduler.
package topology

import (
	"github.com/shirou/gopsutil/v3/cpu"
)

// Info describes what the probe discovered about the host.
type Info struct {
	// NumCPU is the number of logical CPUs visible to this process.
	NumCPU int
}

// Probe queries the host for its logical CPU count. On failure it returns
// a fallback of 1 worker together with the error — the scheduler remains correct,
// if slow, with a single worker, and spec.md §7 treats this as a
// resource-exhaustion family failure the caller may choose to treat as
// fatal rather than one the probe itself should abort on.
func Probe() (Info, error) {
	n, err := cpu.Counts(true)
	if err != nil || n <= 0 {
		return Info{NumCPU: 1}, err
	}
	return Info{NumCPU: n}, nil
}
