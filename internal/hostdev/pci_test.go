package hostdev

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPCINames(t *testing.T) {
	addr, ok := PCIAddressFromName("pci_0000_01_00_0")
	require.True(t, ok)
	assert.Equal(t, "0000:01:00.0", addr)
	assert.Equal(t, "pci_0000_01_00_0", PCINameFromAddress(addr))

	_, ok = PCIAddressFromName("usb_1_2")
	assert.False(t, ok)

	assert.Equal(t, "0000:19:00.0", NormalizePCIAddress("pci_0000_19_00_0"))
	assert.Equal(t, "0000:3b:00.0", NormalizePCIAddress("0000:3B:00.0"))
}

func TestPCIDevice(t *testing.T) {
	f := newFakeTree(t)
	f.pci("0000:01:00.0", "0x10de", "0x030000", "nvidia", "12")
	f.pci("0000:01:00.1", "0x10de", "0x040300", "vfio-pci", "12")
	f.pci("0000:00:1f.0", "0x8086", "0x060100", "lpc_ich", "3")
	f.pci("0000:00:1f.3", "0x8086", "0x040300", "", "3")
	f.pci("0000:05:00.0", "0x8086", "0x020000", "igb", "")

	gpu, err := f.host.PCIDevice("0000:01:00.0")
	require.NoError(t, err)
	assert.Equal(t, "nvidia", gpu.Driver)
	assert.Equal(t, []string{"nvidia"}, gpu.Drivers())
	assert.Equal(t, "0x10de", gpu.VendorID)
	assert.Equal(t, "12", gpu.IOMMUGroup)
	assert.Equal(t, "0000:01:00", gpu.Slot())
	assert.False(t, gpu.Critical)
	assert.False(t, gpu.Available())

	audio, err := f.host.PCIDevice("pci_0000_01_00_1")
	require.NoError(t, err)
	assert.True(t, audio.Available())

	// shares a group with an ISA bridge
	sound, err := f.host.PCIDevice("0000:00:1f.3")
	require.NoError(t, err)
	assert.True(t, sound.Critical)
	assert.Empty(t, sound.Drivers())
	assert.False(t, sound.Available())

	nic, err := f.host.PCIDevice("0000:05:00.0")
	require.NoError(t, err)
	assert.True(t, nic.Critical)
	assert.Equal(t, "Unable to determine iommu group", nic.Error)

	_, err = f.host.PCIDevice("0000:09:00.0")
	assert.True(t, errors.Is(err, ErrNotFound))

	all, err := f.host.PCIDevices()
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "0000:00:1f.0", all[0].Address)
}
