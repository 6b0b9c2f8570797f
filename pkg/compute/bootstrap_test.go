package compute

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildScript() []string {
	b := NewScriptBuilder()
	b.UpdateSystem()
	b.InstallStorageClient()
	b.MountStorage("fs-123", "ap-456", "/mnt/app")
	b.InstallToolchain()
	b.InstallRuntime()
	b.SeedApplication("/mnt/app")
	b.LaunchRuntime("/mnt/app", 3000)
	return b.Build()
}

func TestScriptOrdering(t *testing.T) {
	script := buildScript()
	require.NotEmpty(t, script)

	index := func(substr string) int {
		for i, cmd := range script {
			if strings.Contains(cmd, substr) {
				return i
			}
		}
		t.Fatalf("no command contains %q", substr)
		return -1
	}

	update := index("apt-get -y update")
	mount := index("mount -t efs")
	seed := index("cargo build")
	launch := index("spin up")

	assert.Less(t, update, mount, "OS update precedes the mount")
	assert.Less(t, mount, seed, "storage must be mounted before seeding")
	assert.Less(t, seed, launch, "seed precedes runtime launch")

	// The final step starts the runtime; nothing runs after it.
	assert.Equal(t, len(script)-1, launch)
}

func TestScriptMountUsesStorageIdentity(t *testing.T) {
	script := buildScript()
	joined := strings.Join(script, "\n")
	assert.Contains(t, joined, "accesspoint=ap-456")
	assert.Contains(t, joined, "fs-123:/ /mnt/app")
}

func TestScriptLaunchPort(t *testing.T) {
	script := buildScript()
	assert.Contains(t, script[len(script)-1], "0.0.0.0:3000")
}

func TestBuildReturnsCopy(t *testing.T) {
	b := NewScriptBuilder()
	b.UpdateSystem()

	first := b.Build()
	first[0] = "rm -rf /"

	again := b.Build()
	assert.Equal(t, "apt-get -y update", again[0])
}
