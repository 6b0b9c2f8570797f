package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte("name: demo\nimage: registry.example.com/app:v1\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultMountPath, cfg.MountPath)
	assert.Equal(t, ServicePort, cfg.ServicePort)
	assert.Equal(t, ListenerPort, cfg.ListenerPort)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)

	vm, svc, fn := cfg.TargetWeights()
	assert.Equal(t, 1, vm)
	assert.Equal(t, 1, svc)
	assert.Equal(t, 1, fn)
}

func TestParseExplicitZeroWeight(t *testing.T) {
	manifest := `
name: demo
image: registry.example.com/app:v1
weights:
  vm: 0
  service: 2
`
	cfg, err := Parse([]byte(manifest))
	require.NoError(t, err)

	vm, svc, fn := cfg.TargetWeights()
	assert.Equal(t, 0, vm, "explicit zero must survive defaulting")
	assert.Equal(t, 2, svc)
	assert.Equal(t, 1, fn, "omitted weight falls back to default")
}

func TestParseValidationFailures(t *testing.T) {
	tests := []struct {
		name     string
		manifest string
	}{
		{
			name:     "missing name",
			manifest: "image: app:v1\n",
		},
		{
			name:     "missing image",
			manifest: "name: demo\n",
		},
		{
			name:     "relative mount path",
			manifest: "name: demo\nimage: app:v1\nmountPath: data/app\n",
		},
		{
			name:     "negative weight",
			manifest: "name: demo\nimage: app:v1\nweights:\n  vm: -1\n",
		},
		{
			name:     "all weights zero",
			manifest: "name: demo\nimage: app:v1\nweights:\n  vm: 0\n  service: 0\n  function: 0\n",
		},
		{
			name:     "service port out of range",
			manifest: "name: demo\nimage: app:v1\nservicePort: 70000\n",
		},
		{
			name:     "unknown field",
			manifest: "name: demo\nimage: app:v1\nreplicas: 3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.manifest))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deploy.yaml")
	manifest := `
name: demo
image: registry.example.com/app:v1
network: prod-vpc
mountPath: /srv/shared
weights:
  function: 3
`
	require.NoError(t, os.WriteFile(path, []byte(manifest), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, "prod-vpc", cfg.Network)
	assert.Equal(t, "/srv/shared", cfg.MountPath)

	_, _, fn := cfg.TargetWeights()
	assert.Equal(t, 3, fn)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
