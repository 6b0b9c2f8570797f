package compute

import "fmt"

// ScriptBuilder assembles the VM worker's first-boot bootstrap procedure
// as an ordered command list. The finished script is opaque to the rest
// of the system: it runs once, emits no readiness signal, and its final
// step leaves the runtime engine listening on the service port.
type ScriptBuilder struct {
	commands []string
}

// NewScriptBuilder creates an empty bootstrap script
func NewScriptBuilder() *ScriptBuilder {
	return &ScriptBuilder{}
}

func (b *ScriptBuilder) add(commands ...string) {
	b.commands = append(b.commands, commands...)
}

// UpdateSystem refreshes and upgrades the guest OS packages
func (b *ScriptBuilder) UpdateSystem() {
	b.add(
		"apt-get -y update",
		"apt-get -y upgrade",
	)
}

// InstallStorageClient installs the shared-storage mount helper
func (b *ScriptBuilder) InstallStorageClient() {
	b.add(
		"apt-get -y install git binutils",
		"git clone https://github.com/aws/efs-utils",
		"cd efs-utils",
		"./build-deb.sh",
		"apt-get -y install ./build/amazon-efs-utils*deb",
		"cd -",
	)
}

// MountStorage mounts the shared filesystem through its access point.
// volumeID and accessPointID are reference tokens substituted by the
// engine before the script reaches the provider.
func (b *ScriptBuilder) MountStorage(volumeID, accessPointID, mountPath string) {
	b.add(
		fmt.Sprintf("mkdir -p %s", mountPath),
		fmt.Sprintf("mount -t efs -o tls,accesspoint=%s %s:/ %s",
			accessPointID, volumeID, mountPath),
	)
}

// InstallToolchain installs the language and build toolchain used to
// seed the application artifact
func (b *ScriptBuilder) InstallToolchain() {
	b.add(
		"apt-get -y install build-essential",
		"curl https://sh.rustup.rs -sSf | bash -s -- -y",
		"/root/.cargo/bin/rustup target add wasm32-wasi",
	)
}

// InstallRuntime installs the application runtime engine
func (b *ScriptBuilder) InstallRuntime() {
	b.add(
		"curl -L -O https://github.com/fermyon/spin/releases/download/v0.6.0/spin-v0.6.0-linux-amd64.tar.gz",
		"tar -zxvf spin-v0.6.0-linux-amd64.tar.gz",
		"mv spin /usr/local/bin/spin",
	)
}

// SeedApplication builds the application artifact onto shared storage.
// This is the one-time seed step the other workers depend on finding.
func (b *ScriptBuilder) SeedApplication(mountPath string) {
	b.add(
		fmt.Sprintf("cd %s", mountPath),
		"spin templates install --git https://github.com/fermyon/spin",
		"[[ -d app ]] || spin new http-rust app --value project-description='http service' --value http-base=/ --value http-path=/",
		"/root/.cargo/bin/cargo build --manifest-path ./app/Cargo.toml --target wasm32-wasi --release",
		"cd -",
	)
}

// LaunchRuntime starts the runtime engine on the service port. Launch is
// best-effort: nothing reports back whether the process came up.
func (b *ScriptBuilder) LaunchRuntime(mountPath string, port int) {
	b.add(
		fmt.Sprintf("spin up --listen 0.0.0.0:%d --disable-cache --file %s/app/spin.toml",
			port, mountPath),
	)
}

// Build returns the ordered command list. The returned slice is a copy;
// the script cannot be mutated through it.
func (b *ScriptBuilder) Build() []string {
	out := make([]string, len(b.commands))
	copy(out, b.commands)
	return out
}
