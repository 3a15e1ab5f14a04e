package main

import (
	"bufio"
	"os"
	"runtime"
	"strconv"
	"strings"

	wharf "github.com/wharfterm/wharf"
)

// gatherSystemInfo snapshots the backend environment. Fields that cannot be
// determined are zero-valued rather than failing the snapshot.
func gatherSystemInfo(cwd string) wharf.SystemInfo {
	hostname, _ := os.Hostname()
	return wharf.SystemInfo{
		Platform:         runtime.GOOS,
		CPUCount:         runtime.NumCPU(),
		MemoryAvailable:  memoryAvailable(),
		Hostname:         hostname,
		CurrentDirectory: cwd,
	}
}

// memoryAvailable reads MemAvailable from /proc/meminfo, in bytes.
// Returns 0 on non-Linux hosts or parse failure.
func memoryAvailable() uint64 {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0
		}
		return kb * 1024
	}
	return 0
}
