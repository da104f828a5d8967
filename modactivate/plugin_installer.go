package modactivate

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"
)

// pluginHandshake is the magic-cookie handshake module plugin binaries
// must present, mirroring pkg/plugins/grpc.handshakeConfig but scoped to
// the amplifier module protocol rather than hector's per-type LLM/DB/
// embedder/document-parser plugin kinds.
var pluginHandshake = goplugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "AMPLIFIER_MODULE_PLUGIN",
	MagicCookieValue: "amplifier_module_v1",
}

// PluginInstaller builds a module declaring a plugin.yaml marker into a
// standalone binary (`go build -o plugin .`) and performs a throwaway
// go-plugin handshake to confirm the binary actually speaks the module
// protocol before it's handed to the Coordinator for mounting. It leaves
// GoBuildInstaller to handle plain in-process source modules.
type PluginInstaller struct {
	Logger hclog.Logger
}

func (p PluginInstaller) logger() hclog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return hclog.New(&hclog.LoggerOptions{Name: "amplifier-module-activator", Level: hclog.Warn})
}

func (p PluginInstaller) Install(ctx context.Context, modulePath string) error {
	if !hasPluginMarker(modulePath) {
		return GoBuildInstaller{}.Install(ctx, modulePath)
	}

	binPath := filepath.Join(modulePath, pluginBinaryName)
	build := exec.CommandContext(ctx, "go", "build", "-o", binPath, ".")
	build.Dir = modulePath
	if out, err := build.CombinedOutput(); err != nil {
		return fmt.Errorf("build plugin binary: %w: %s", err, out)
	}

	if err := os.Chmod(binPath, 0o755); err != nil {
		return fmt.Errorf("chmod plugin binary: %w", err)
	}

	return p.verifyHandshake(binPath)
}

// verifyHandshake launches the freshly built plugin once to confirm it
// completes the go-plugin handshake, then tears it down — activation only
// needs to prove the binary is viable, not keep it running; the
// Coordinator (§4.5) owns the long-lived client used for actual mounting.
func (p PluginInstaller) verifyHandshake(binPath string) error {
	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig:  pluginHandshake,
		Plugins:          map[string]goplugin.Plugin{},
		Cmd:              exec.Command(binPath),
		Logger:           p.logger(),
		AllowedProtocols: []goplugin.Protocol{goplugin.ProtocolGRPC},
	})
	defer client.Kill()

	if _, err := client.Client(); err != nil {
		return fmt.Errorf("plugin handshake failed: %w", err)
	}
	return nil
}

const pluginBinaryName = "amplifier-module-plugin"
