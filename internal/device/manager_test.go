package device

import (
	"errors"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagerStartReleasesInReverse(t *testing.T) {
	j := &journal{}
	m := NewManager([]Device{
		&fakeDevice{name: "a", journal: j},
		&fakeDevice{name: "b", journal: j},
		&fakeDevice{name: "c", journal: j},
	}, "uuid", logr.Discard())

	release, err := m.Start(RunContext{})
	require.NoError(t, err)
	assert.Equal(t, []string{"run a", "run b", "run c"}, j.entries)

	require.NoError(t, release())
	assert.Equal(t, []string{"run a", "run b", "run c", "release c", "release b", "release a"}, j.entries)

	// a second call is a no-op
	require.NoError(t, release())
	assert.Len(t, j.entries, 6)
}

func TestManagerStartRollsBack(t *testing.T) {
	j := &journal{}
	boom := errors.New("boom")
	m := NewManager([]Device{
		&fakeDevice{name: "a", journal: j},
		&fakeDevice{name: "b", journal: j, relErr: errors.New("stuck")},
		&fakeDevice{name: "c", journal: j, runErr: boom},
		&fakeDevice{name: "d", journal: j},
	}, "uuid", logr.Discard())

	release, err := m.Start(RunContext{})
	require.Error(t, err)
	assert.Nil(t, release)
	assert.ErrorIs(t, err, boom)

	// c never acquired, b's release failure does not stop a's
	assert.Equal(t, []string{"run a", "run b", "run c", "release b", "release a"}, j.entries)
}

func TestManagerReleaseAggregatesErrors(t *testing.T) {
	j := &journal{}
	m := NewManager([]Device{
		&fakeDevice{name: "a", journal: j, relErr: errors.New("a failed")},
		&fakeDevice{name: "b", journal: j},
		&fakeDevice{name: "c", journal: j, relErr: errors.New("c failed")},
	}, "uuid", logr.Discard())

	release, err := m.Start(RunContext{})
	require.NoError(t, err)

	err = release()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device c: c failed")
	assert.Contains(t, err.Error(), "device a: a failed")
	assert.Equal(t, []string{"run a", "run b", "run c", "release c", "release b", "release a"}, j.entries)
}

func TestManagerEmpty(t *testing.T) {
	m := NewManager(nil, "uuid", logr.Discard())
	release, err := m.Start(RunContext{})
	require.NoError(t, err)
	assert.NoError(t, release())
	assert.Empty(t, m.Devices())
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.Empty(t, errs.Error())

	errs.Add("path", "This field is required.")
	errs.Add("mac", "MAC address must not start with `ff`")
	assert.Equal(t, "path: This field is required.\nmac: MAC address must not start with `ff`", errs.Error())
}

func TestDelegate(t *testing.T) {
	d := &fakeDevice{name: "x"}
	assert.True(t, d.IsAvailable())

	var seen Device
	d.Delegate = DelegateFunc(func(dev Device) bool {
		seen = dev
		return false
	})
	assert.False(t, d.IsAvailable())
	assert.Same(t, d, seen)
}
