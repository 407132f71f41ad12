package cpu

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIndex = `<cpus>
  <arch name='x86'>
    <include filename='x86_vendors.xml'/>
    <group name='Intel CPU models'>
      <include filename='x86_Skylake-Client.xml'/>
      <include filename='x86_missing.xml'/>
    </group>
    <include filename='x86_EPYC.xml'/>
  </arch>
  <arch name='ppc64'>
    <include filename='ppc64_POWER9.xml'/>
  </arch>
  <arch name='arm'>
    <include filename='arm_cortex-a57.xml'/>
  </arch>
</cpus>`

func writeCPUMap(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func TestCatalog(t *testing.T) {
	dir := t.TempDir()
	writeCPUMap(t, dir, map[string]string{
		"index.xml":              testIndex,
		"x86_vendors.xml":        `<cpus><vendor name='Intel' string='GenuineIntel'/></cpus>`,
		"x86_Skylake-Client.xml": `<cpus><model name='Skylake-Client'><vendor name='Intel'/></model></cpus>`,
		"x86_EPYC.xml":           `<cpus><model name='EPYC'/></cpus>`,
		"ppc64_POWER9.xml":       `<cpus><model name='POWER9'/></cpus>`,
		"arm_cortex-a57.xml":     `<cpus><model name='cortex-a57'/></cpus>`,
	})

	c := NewCatalog(dir)
	models, err := c.Models()
	require.NoError(t, err)
	assert.Equal(t, []string{"EPYC", "POWER9", "Skylake-Client"}, models)

	assert.True(t, c.Has("EPYC"))
	assert.False(t, c.Has("cortex-a57"))
	assert.False(t, c.Has("Intel"))
}

func TestCatalogInvalidate(t *testing.T) {
	dir := t.TempDir()
	writeCPUMap(t, dir, map[string]string{
		"index.xml":    `<cpus><arch name='x86'><include filename='x86_EPYC.xml'/><include filename='x86_Haswell.xml'/></arch></cpus>`,
		"x86_EPYC.xml": `<cpus><model name='EPYC'/></cpus>`,
	})

	c := NewCatalog(dir)
	assert.False(t, c.Has("Haswell"))

	writeCPUMap(t, dir, map[string]string{"x86_Haswell.xml": `<cpus><model name='Haswell'/></cpus>`})
	assert.False(t, c.Has("Haswell"), "models are cached")

	c.Invalidate()
	assert.True(t, c.Has("Haswell"))
}

func TestCatalogMissingIndex(t *testing.T) {
	c := NewCatalog(t.TempDir())
	_, err := c.Models()
	assert.Error(t, err)
	assert.False(t, c.Has("EPYC"))
}
