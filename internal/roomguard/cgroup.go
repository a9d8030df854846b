// Package roomguard enforces connection, goroutine, and ingest-rate
// limits against the container's actual CPU/memory allocation, so the
// room server degrades by rejecting new work instead of falling over.
package roomguard

import (
	"bufio"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
)

// ThrottleStats reports cgroup CPU throttling counters observed since the
// previous sample.
type ThrottleStats struct {
	NrPeriods    uint64
	NrThrottled  uint64
	ThrottledSec float64
}

// containerCPU measures CPU usage relative to the container's cgroup
// quota, reading cgroup v1 or v2 accounting files directly.
type containerCPU struct {
	mu               sync.RWMutex
	lastCPUUsec      uint64
	lastSampleTime   time.Time
	cgroupVersion    int
	cgroupPath       string
	cpuQuota         int64
	cpuPeriod        int64
	numCPUsAllocated float64
	lastThrottle     ThrottleStats
}

func newContainerCPU() (*containerCPU, error) {
	cc := &containerCPU{lastSampleTime: time.Now()}

	path, version, err := detectCgroupPath()
	if err != nil {
		return nil, fmt.Errorf("detecting cgroup: %w", err)
	}
	cc.cgroupPath = path
	cc.cgroupVersion = version

	quota, period, err := readCPUQuota(path, version)
	if err != nil {
		return nil, fmt.Errorf("reading cpu quota: %w", err)
	}
	cc.cpuQuota, cc.cpuPeriod = quota, period
	if quota > 0 && period > 0 {
		cc.numCPUsAllocated = float64(quota) / float64(period)
	} else {
		cc.numCPUsAllocated = float64(runtime.NumCPU())
	}

	usage, err := readCPUUsage(path, version)
	if err != nil {
		return nil, fmt.Errorf("reading initial cpu usage: %w", err)
	}
	cc.lastCPUUsec = usage

	if throttle, err := readThrottleStats(path, version); err == nil {
		cc.lastThrottle = throttle
	}

	return cc, nil
}

// GetPercent returns CPU usage as a percentage of the container's
// allocated CPUs (so 100% means "fully using the quota", not one core),
// plus throttling deltas since the previous call.
func (cc *containerCPU) GetPercent() (percent float64, throttled ThrottleStats, err error) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	now := time.Now()
	timeDeltaUsec := now.Sub(cc.lastSampleTime).Microseconds()
	if timeDeltaUsec == 0 {
		return 0, ThrottleStats{}, fmt.Errorf("time delta too small")
	}

	currentUsec, err := readCPUUsage(cc.cgroupPath, cc.cgroupVersion)
	if err != nil {
		return 0, ThrottleStats{}, err
	}
	usageDelta := currentUsec - cc.lastCPUUsec

	rawPercent := (float64(usageDelta) / float64(timeDeltaUsec)) * 100.0
	percent = rawPercent / cc.numCPUsAllocated

	if current, err := readThrottleStats(cc.cgroupPath, cc.cgroupVersion); err == nil {
		throttled = ThrottleStats{
			NrPeriods:    current.NrPeriods - cc.lastThrottle.NrPeriods,
			NrThrottled:  current.NrThrottled - cc.lastThrottle.NrThrottled,
			ThrottledSec: current.ThrottledSec - cc.lastThrottle.ThrottledSec,
		}
		cc.lastThrottle = current
	}

	cc.lastCPUUsec = currentUsec
	cc.lastSampleTime = now
	return percent, throttled, nil
}

func (cc *containerCPU) GetAllocation() float64 {
	cc.mu.RLock()
	defer cc.mu.RUnlock()
	return cc.numCPUsAllocated
}

func detectCgroupPath() (path string, version int, err error) {
	file, err := os.Open("/proc/self/cgroup")
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		parts := strings.Split(scanner.Text(), ":")
		if len(parts) != 3 {
			continue
		}
		hierarchyID, controllers, cgroupPath := parts[0], parts[1], parts[2]

		if hierarchyID == "0" && controllers == "" {
			return "/sys/fs/cgroup" + cgroupPath, 2, nil
		}
		if strings.Contains(controllers, "cpu") {
			return "/sys/fs/cgroup/cpu" + cgroupPath, 1, nil
		}
	}
	return "", 0, fmt.Errorf("could not detect cgroup path")
}

func readCPUQuota(cgroupPath string, version int) (quota, period int64, err error) {
	if version == 2 {
		data, err := os.ReadFile(cgroupPath + "/cpu.max")
		if err != nil {
			return 0, 0, err
		}
		fields := strings.Fields(string(data))
		if len(fields) != 2 {
			return 0, 0, fmt.Errorf("unexpected cpu.max format: %s", string(data))
		}
		if fields[0] == "max" {
			return -1, 0, nil
		}
		quota, err = strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return 0, 0, err
		}
		period, err = strconv.ParseInt(fields[1], 10, 64)
		return quota, period, err
	}

	quotaData, err := os.ReadFile(cgroupPath + "/cpu.cfs_quota_us")
	if err != nil {
		return 0, 0, err
	}
	periodData, err := os.ReadFile(cgroupPath + "/cpu.cfs_period_us")
	if err != nil {
		return 0, 0, err
	}
	quota, err = strconv.ParseInt(strings.TrimSpace(string(quotaData)), 10, 64)
	if err != nil {
		return 0, 0, err
	}
	period, err = strconv.ParseInt(strings.TrimSpace(string(periodData)), 10, 64)
	return quota, period, err
}

func readCPUUsage(cgroupPath string, version int) (uint64, error) {
	if version == 2 {
		file, err := os.Open(cgroupPath + "/cpu.stat")
		if err != nil {
			return 0, err
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			if fields := strings.Fields(scanner.Text()); len(fields) == 2 && fields[0] == "usage_usec" {
				return strconv.ParseUint(fields[1], 10, 64)
			}
		}
		return 0, fmt.Errorf("usage_usec not found in cpu.stat")
	}

	data, err := os.ReadFile(cgroupPath + "/cpuacct.usage")
	if err != nil {
		return 0, err
	}
	nsec, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, err
	}
	return nsec / 1000, nil
}

func readThrottleStats(cgroupPath string, version int) (ThrottleStats, error) {
	var stats ThrottleStats
	file, err := os.Open(cgroupPath + "/cpu.stat")
	if err != nil {
		return stats, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 2 {
			continue
		}
		value, _ := strconv.ParseUint(fields[1], 10, 64)
		switch fields[0] {
		case "nr_periods":
			stats.NrPeriods = value
		case "nr_throttled":
			stats.NrThrottled = value
		case "throttled_usec": // cgroup v2
			stats.ThrottledSec = float64(value) / 1_000_000.0
		case "throttled_time": // cgroup v1, nanoseconds
			stats.ThrottledSec = float64(value) / 1_000_000_000.0
		}
	}
	return stats, nil
}

// cpuMonitor measures CPU usage relative to the container's allocation,
// falling back to host-wide measurement (via gopsutil) outside a cgroup.
type cpuMonitor struct {
	mode   string // "container" or "host"
	cgroup *containerCPU
	logger zerolog.Logger
}

func newCPUMonitor(logger zerolog.Logger) *cpuMonitor {
	if cg, err := newContainerCPU(); err == nil {
		logger.Info().
			Int("cgroup_version", cg.cgroupVersion).
			Float64("cpus_allocated", cg.GetAllocation()).
			Msg("using container-aware CPU measurement")
		return &cpuMonitor{mode: "container", cgroup: cg, logger: logger}
	} else {
		logger.Warn().Err(err).Msg("falling back to host CPU measurement")
	}
	return &cpuMonitor{mode: "host", logger: logger}
}

func (cm *cpuMonitor) GetPercent() (float64, ThrottleStats, error) {
	if cm.mode == "container" {
		return cm.cgroup.GetPercent()
	}
	percents, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		return 0, ThrottleStats{}, err
	}
	if len(percents) == 0 {
		return 0, ThrottleStats{}, fmt.Errorf("no CPU data")
	}
	return percents[0], ThrottleStats{}, nil
}

func (cm *cpuMonitor) GetAllocation() float64 {
	if cm.mode == "container" {
		return cm.cgroup.GetAllocation()
	}
	return float64(runtime.NumCPU())
}

func (cm *cpuMonitor) Mode() string { return cm.mode }
