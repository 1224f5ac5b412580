package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/devicelab/haltest/pkg/hal"
)

const goodMatrix = `
hals:
  - name: vendor.foo
    optional: false
    versions: ["1.0", "2.1"]
    interfaces:
      - name: IFoo
        instances: [default, secondary]
  - name: vendor.bar
    optional: true
    versions: ["1.0"]
    interfaces:
      - name: IBar
`

const goodManifest = `
hals:
  - name: vendor.foo
    version: "1.2"
    transport: binderized
    interfaces:
      - name: IFoo
        instances: [default]
  - name: vendor.baz
    version: "2.0"
    transport: passthrough
    arch: "32+64"
    interfaces:
      - name: IBaz
`

func TestParseMatrix(t *testing.T) {
	m, err := ParseMatrix([]byte(goodMatrix))
	require.NoError(t, err)

	foos := m.HalsByName("vendor.foo")
	require.Len(t, foos, 1)
	require.False(t, foos[0].Optional)
	require.True(t, foos[0].ContainsVersion(hal.Version{Major: 2, Minor: 3}))
	require.False(t, foos[0].ContainsVersion(hal.Version{Major: 2, Minor: 0}))

	iface, ok := foos[0].Interface("IFoo")
	require.True(t, ok)
	require.Equal(t, []string{"default", "secondary"}, iface.Instances.Names())

	bars := m.HalsByName("vendor.bar")
	require.Len(t, bars, 1)
	require.True(t, bars[0].Optional)
	iface, ok = bars[0].Interface("IBar")
	require.True(t, ok)
	require.Empty(t, iface.Instances.Names())
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(goodManifest))
	require.NoError(t, err)

	foos := m.HalsByName("vendor.foo")
	require.Len(t, foos, 1)
	require.Equal(t, hal.TransportBinderized, foos[0].Transport)
	require.Equal(t, hal.Version{Major: 1, Minor: 2}, foos[0].Version)
	require.Equal(t, hal.ArchNone, foos[0].Arch)

	bazs := m.HalsByName("vendor.baz")
	require.Len(t, bazs, 1)
	require.Equal(t, hal.TransportPassthrough, bazs[0].Transport)
	require.Equal(t, hal.Arch3264, bazs[0].Arch)
}

func TestParseMatrixSchemaRejections(t *testing.T) {
	cases := map[string]string{
		"missing name": `
hals:
  - versions: ["1.0"]
    interfaces:
      - name: IFoo
`,
		"bad version format": `
hals:
  - name: vendor.foo
    versions: ["1.0.0"]
    interfaces:
      - name: IFoo
`,
		"empty interfaces": `
hals:
  - name: vendor.foo
    versions: ["1.0"]
    interfaces: []
`,
		"unknown field": `
hals:
  - name: vendor.foo
    versions: ["1.0"]
    transport: binderized
    interfaces:
      - name: IFoo
`,
		"no hals key": `{}`,
	}
	for name, doc := range cases {
		_, err := ParseMatrix([]byte(doc))
		require.Error(t, err, "case %q", name)
		require.ErrorContains(t, err, "schema validation", "case %q", name)
	}
}

func TestParseManifestSchemaRejections(t *testing.T) {
	cases := map[string]string{
		"bad transport": `
hals:
  - name: vendor.foo
    version: "1.0"
    transport: hwbinder
    interfaces:
      - name: IFoo
`,
		"bad arch": `
hals:
  - name: vendor.foo
    version: "1.0"
    transport: passthrough
    arch: "128"
    interfaces:
      - name: IFoo
`,
		"missing version": `
hals:
  - name: vendor.foo
    transport: binderized
    interfaces:
      - name: IFoo
`,
	}
	for name, doc := range cases {
		_, err := ParseManifest([]byte(doc))
		require.Error(t, err, "case %q", name)
	}
}

func TestParseManifestTransportArchConsistency(t *testing.T) {
	passthroughNoArch := `
hals:
  - name: vendor.foo
    version: "1.0"
    transport: passthrough
    interfaces:
      - name: IFoo
`
	_, err := ParseManifest([]byte(passthroughNoArch))
	require.ErrorContains(t, err, "passthrough entry must declare arch")

	binderizedWithArch := `
hals:
  - name: vendor.foo
    version: "1.0"
    transport: binderized
    arch: "64"
    interfaces:
      - name: IFoo
`
	_, err = ParseManifest([]byte(binderizedWithArch))
	require.ErrorContains(t, err, "arch is only valid for passthrough")
}

func TestLoadFromFiles(t *testing.T) {
	dir := t.TempDir()
	matrixPath := filepath.Join(dir, "matrix.yaml")
	manifestPath := filepath.Join(dir, "manifest.yaml")
	require.NoError(t, os.WriteFile(matrixPath, []byte(goodMatrix), 0600))
	require.NoError(t, os.WriteFile(manifestPath, []byte(goodManifest), 0600))

	m, err := LoadMatrix(matrixPath)
	require.NoError(t, err)
	require.NotNil(t, m)

	mf, err := LoadManifest(manifestPath)
	require.NoError(t, err)
	require.NotNil(t, mf)

	_, err = LoadMatrix(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestLoadErrorNamesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("hals: 42"), 0600))

	_, err := LoadMatrix(path)
	require.Error(t, err)
	require.ErrorContains(t, err, "bad.yaml")
}
