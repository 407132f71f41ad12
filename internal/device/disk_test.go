package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskValidate(t *testing.T) {
	tests := []struct {
		name   string
		disk   Disk
		fields []string
	}{
		{
			name: "valid file",
			disk: Disk{Type: DiskTypeFile, Path: "/mnt/tank/vm.img"},
		},
		{
			name:   "missing path",
			disk:   Disk{Type: DiskTypeFile},
			fields: []string{"path"},
		},
		{
			name:   "block outside zvol",
			disk:   Disk{Type: DiskTypeBlock, Path: "/dev/sda"},
			fields: []string{"path"},
		},
		{
			name: "block in zvol",
			disk: Disk{Type: DiskTypeBlock, Path: "/dev/zvol/tank/vm"},
		},
		{
			name:   "physical without logical",
			disk:   Disk{Type: DiskTypeFile, Path: "/mnt/x.img", PhysicalSectorSize: 4096},
			fields: []string{"logical_sectorsize"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.disk.Validate()
			var fields []string
			for _, e := range errs {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestDiskRenderStreams(t *testing.T) {
	c := NewCounters()
	virtio := &Disk{Type: DiskTypeBlock, Bus: DiskBusVirtio, Path: "/dev/zvol/tank/a", IOType: IOTypeIOURing}
	ahci := &Disk{Type: DiskTypeFile, Bus: DiskBusAHCI, Path: "/mnt/tank/b.img", Serial: "abc"}

	var f Fragment
	f.Append(virtio.Render(c))
	f.Append(ahci.Render(c))
	require.Len(t, f.Disks, 2)

	first, second := f.Disks[0], f.Disks[1]
	assert.Equal(t, "vda", first.Target.Dev)
	assert.Equal(t, "virtio", first.Target.Bus)
	assert.Equal(t, uint(1), first.Boot.Order)
	assert.Equal(t, "/dev/zvol/tank/a", first.Source.Block.Dev)
	assert.Equal(t, "io_uring", first.Driver.IO)

	assert.Equal(t, "sda", second.Target.Dev)
	assert.Equal(t, "sata", second.Target.Bus)
	assert.Equal(t, uint(2), second.Boot.Order)
	assert.Equal(t, "/mnt/tank/b.img", second.Source.File.File)
	assert.Equal(t, "abc", second.Serial)
}

func TestDiskRenderXML(t *testing.T) {
	d := &Disk{
		Type:               DiskTypeFile,
		Path:               "/mnt/tank/vm.img",
		LogicalSectorSize:  512,
		PhysicalSectorSize: 4096,
	}
	f := d.Render(NewCounters())
	require.Len(t, f.Disks, 1)

	doc, err := f.Disks[0].Marshal()
	require.NoError(t, err)
	assert.Contains(t, doc, `type="file"`)
	assert.Contains(t, doc, `device="disk"`)
	assert.Contains(t, doc, `cache="none"`)
	assert.Contains(t, doc, `discard="unmap"`)
	assert.Contains(t, doc, `logical_block_size="512"`)
	assert.Contains(t, doc, `physical_block_size="4096"`)
	assert.NotContains(t, doc, `io=`)
}

func TestDiskIsAvailable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vm.img")
	d := &Disk{Type: DiskTypeFile, Path: path}
	assert.False(t, d.IsAvailable())

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	assert.True(t, d.IsAvailable())

	d.Delegate = DelegateFunc(func(Device) bool { return false })
	assert.False(t, d.IsAvailable())
}

func TestCDROM(t *testing.T) {
	dir := t.TempDir()
	notISO := filepath.Join(dir, "junk.iso")
	require.NoError(t, os.WriteFile(notISO, []byte("not an image"), 0o600))

	assert.Equal(t, "path", (&CDROM{}).Validate()[0].Field)
	assert.Contains(t, (&CDROM{Path: filepath.Join(dir, "missing.iso")}).Validate()[0].Message, "does not exist")
	assert.Contains(t, (&CDROM{Path: notISO}).Validate()[0].Message, "not a valid ISO 9660 image")

	c := NewCounters()
	(&Disk{Bus: DiskBusAHCI, Path: "/x.img"}).Render(c)
	f := (&CDROM{Path: notISO}).Render(c)
	require.Len(t, f.Disks, 1)
	assert.Equal(t, "cdrom", f.Disks[0].Device)
	assert.Equal(t, "sdb", f.Disks[0].Target.Dev)
	assert.Equal(t, uint(2), f.Disks[0].Boot.Order)
	assert.True(t, (&CDROM{Path: notISO}).IsAvailable())
}

func TestFilesystem(t *testing.T) {
	src := t.TempDir()

	tests := []struct {
		name string
		fs   Filesystem
		want ValidationErrors
	}{
		{"valid", Filesystem{Source: src, Target: "/data"}, nil},
		{"root target", Filesystem{Source: src, Target: "/"}, ValidationErrors{{"target", "Target can't be root"}}},
		{"relative target", Filesystem{Source: src, Target: "data"}, ValidationErrors{{"target", "Target must be an absolute path"}}},
		{"root source", Filesystem{Source: "/", Target: "/data"}, ValidationErrors{{"source", "Source can't be root"}}},
		{"relative source", Filesystem{Source: "x", Target: "/data"}, ValidationErrors{{"source", "Source must be an absolute path"}}},
		{
			"missing source",
			Filesystem{Source: src + "/nope", Target: "/data"},
			ValidationErrors{{"source", "Source " + src + "/nope does not exist"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fs.Validate())
		})
	}

	fs := &Filesystem{Source: src, Target: "/data"}
	assert.Equal(t, src+":/data", fs.Identity())
	assert.True(t, fs.IsAvailable())

	f := fs.Render(NewCounters())
	require.Len(t, f.Filesystems, 1)
	assert.Equal(t, src, f.Filesystems[0].Source.Mount.Dir)
	assert.Equal(t, "/data", f.Filesystems[0].Target.Dir)
}
