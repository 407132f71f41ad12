// Package cpu parses CPU sets and reads the CPU model catalog shipped with
// libvirt.
package cpu

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSet parses a CPU list such as "0-3,8,10-11" into the covered CPUs in
// first-occurrence order without duplicates. An empty string yields an empty
// list.
func ParseSet(value string) ([]int, error) {
	if value == "" {
		return []int{}, nil
	}

	var cpus []int
	seen := make(map[int]bool)
	add := func(n int) {
		if !seen[n] {
			seen[n] = true
			cpus = append(cpus, n)
		}
	}

	for _, part := range strings.Split(value, ",") {
		bounds := strings.Split(part, "-")
		switch len(bounds) {
		case 1:
			n, err := atoi(bounds[0])
			if err != nil {
				return nil, err
			}
			add(n)
		case 2:
			start, err := atoi(bounds[0])
			if err != nil {
				return nil, err
			}
			end, err := atoi(bounds[1])
			if err != nil {
				return nil, err
			}
			if start >= end {
				return nil, fmt.Errorf("end of range has to be greater than start: %d-%d", start, end)
			}
			for n := start; n <= end; n++ {
				add(n)
			}
		default:
			return nil, fmt.Errorf("range has to be in format start-end: %s", part)
		}
	}
	return cpus, nil
}

func atoi(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid cpu number %q", s)
	}
	return n, nil
}
