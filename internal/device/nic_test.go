package device

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNICValidate(t *testing.T) {
	tests := []struct {
		name   string
		nic    NIC
		fields []string
	}{
		{
			name:   "bridge with trust",
			nic:    NIC{Type: NICTypeBridge, Source: "br0", Model: NICModelVirtio, TrustGuestRxFilters: true},
			fields: []string{"trust_guest_rx_filters"},
		},
		{
			name: "direct virtio with trust",
			nic:  NIC{Type: NICTypeDirect, Source: "eno1", Model: NICModelVirtio, TrustGuestRxFilters: true},
		},
		{
			name:   "e1000 with trust",
			nic:    NIC{Type: NICTypeDirect, Source: "eno1", Model: NICModelE1000, TrustGuestRxFilters: true},
			fields: []string{"trust_guest_rx_filters"},
		},
		{
			name:   "ff mac",
			nic:    NIC{Type: NICTypeDirect, Source: "eno1", Model: NICModelVirtio, MAC: "ff:00:00:00:00:01"},
			fields: []string{"mac"},
		},
		{
			name:   "ff mac upper case",
			nic:    NIC{Type: NICTypeBridge, Source: "br0", MAC: "FF:00:00:00:00:01"},
			fields: []string{"mac"},
		},
		{
			name:   "everything wrong",
			nic:    NIC{Type: NICTypeBridge, Source: "br0", Model: NICModelE1000, TrustGuestRxFilters: true, MAC: "ff:aa:bb:cc:dd:ee"},
			fields: []string{"trust_guest_rx_filters", "trust_guest_rx_filters", "mac"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var fields []string
			for _, e := range tt.nic.Validate() {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tt.fields, fields)
		})
	}
}

func TestNICIdentityFallsBackToDefaultRoute(t *testing.T) {
	links := &fakeLinks{links: map[string]bool{"eno1": true}, defaultIf: "eno1"}

	nic := &NIC{Type: NICTypeDirect, Links: links}
	assert.Equal(t, "eno1", nic.Identity())
	assert.True(t, nic.IsAvailable())

	nic.Source = "eno2"
	assert.Equal(t, "eno2", nic.Identity())
	assert.False(t, nic.IsAvailable())
}

func TestNICRender(t *testing.T) {
	links := &fakeLinks{}

	bridge := &NIC{Type: NICTypeBridge, Source: "br0", Model: NICModelVirtio, MAC: "00:a0:98:00:00:01", Links: links}
	f := bridge.Render(NewCounters())
	require.Len(t, f.Interfaces, 1)
	iface := f.Interfaces[0]
	assert.Equal(t, "br0", iface.Source.Bridge.Bridge)
	assert.Equal(t, "virtio", iface.Model.Type)
	assert.Equal(t, "00:a0:98:00:00:01", iface.MAC.Address)
	assert.Empty(t, iface.TrustGuestRXFilters)

	direct := &NIC{Type: NICTypeDirect, Source: "eno1", Model: NICModelE1000, Links: links}
	f = direct.Render(NewCounters())
	require.Len(t, f.Interfaces, 1)
	iface = f.Interfaces[0]
	assert.Equal(t, "eno1", iface.Source.Direct.Dev)
	assert.Equal(t, "bridge", iface.Source.Direct.Mode)
	assert.Equal(t, "e1000", iface.Model.Type)
	assert.Equal(t, "no", iface.TrustGuestRXFilters)
	assert.Nil(t, iface.MAC)
}

func TestNICRunBringsLinkUp(t *testing.T) {
	links := &fakeLinks{links: map[string]bool{"br0": true}}
	nic := &NIC{Type: NICTypeBridge, Source: "br0", Links: links}

	release, err := nic.Run(RunContext{Log: logr.Discard()})
	require.NoError(t, err)
	assert.NoError(t, release())
	assert.Equal(t, []string{"br0"}, links.setUpCalls)

	// a missing link is left to start validation
	nic.Source = "br9"
	_, err = nic.Run(RunContext{Log: logr.Discard()})
	assert.NoError(t, err)
}
