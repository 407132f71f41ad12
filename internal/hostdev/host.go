package hostdev

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a device is not present on the host.
var ErrNotFound = errors.New("device not found")

// Host reads device facts below the given roots.
type Host struct {
	SysRoot  string
	ProcRoot string
	DevRoot  string
}

// New returns a Host reading the real /sys, /proc and /dev.
func New() *Host {
	return &Host{SysRoot: "/sys", ProcRoot: "/proc", DevRoot: "/dev"}
}

func (h *Host) sys(elem ...string) string {
	return filepath.Join(append([]string{h.SysRoot}, elem...)...)
}

func (h *Host) proc(elem ...string) string {
	return filepath.Join(append([]string{h.ProcRoot}, elem...)...)
}

// devPath maps an absolute /dev path onto DevRoot.
func (h *Host) devPath(path string) string {
	return filepath.Join(h.DevRoot, strings.TrimPrefix(path, "/dev"))
}

// DeviceNodeExists reports whether a /dev node such as /dev/kfd exists.
func (h *Host) DeviceNodeExists(path string) bool {
	_, err := os.Stat(h.devPath(path))
	return err == nil
}

func readAttr(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}
