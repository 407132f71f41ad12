package hostdev

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTree builds sys, proc and dev roots under a temp dir.
type fakeTree struct {
	t    *testing.T
	host *Host
}

func newFakeTree(t *testing.T) *fakeTree {
	t.Helper()
	root := t.TempDir()
	h := &Host{
		SysRoot:  filepath.Join(root, "sys"),
		ProcRoot: filepath.Join(root, "proc"),
		DevRoot:  filepath.Join(root, "dev"),
	}
	for _, d := range []string{h.SysRoot, h.ProcRoot, h.DevRoot} {
		require.NoError(t, os.MkdirAll(d, 0o755))
	}
	return &fakeTree{t: t, host: h}
}

func (f *fakeTree) write(path, content string) {
	f.t.Helper()
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, []byte(content+"\n"), 0o644))
}

func (f *fakeTree) link(target, path string) {
	f.t.Helper()
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.Symlink(target, path))
}

// pci adds a PCI function. An empty group leaves iommu_group out.
func (f *fakeTree) pci(addr, vendor, class, driver, group string) {
	dir := f.host.sys("bus", "pci", "devices", addr)
	f.write(filepath.Join(dir, "vendor"), vendor)
	f.write(filepath.Join(dir, "device"), "0x1234")
	f.write(filepath.Join(dir, "class"), class)
	if driver != "" {
		f.link("../../../bus/pci/drivers/"+driver, filepath.Join(dir, "driver"))
	}
	if group != "" {
		groupDir := f.host.sys("kernel", "iommu_groups", group)
		f.link(groupDir, filepath.Join(dir, "iommu_group"))
		f.link(dir, filepath.Join(groupDir, "devices", addr))
	}
}

func (f *fakeTree) dev(path string) {
	f.write(f.host.devPath(path), "")
}

func TestDeviceNodeExists(t *testing.T) {
	f := newFakeTree(t)
	f.dev("/dev/kfd")

	assert.True(t, f.host.DeviceNodeExists("/dev/kfd"))
	assert.False(t, f.host.DeviceNodeExists("/dev/nvidiactl"))
}

func TestNew(t *testing.T) {
	h := New()
	assert.Equal(t, "/sys", h.SysRoot)
	assert.Equal(t, "/proc", h.ProcRoot)
	assert.Equal(t, "/dev/kfd", h.devPath("/dev/kfd"))
}
