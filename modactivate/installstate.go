// Package modactivate implements the Module Activator (§4.2): resolving a
// module's source URI to a local path, installing its toolchain
// dependencies exactly once per environment fingerprint, and tracking
// in-process vs out-of-process (plugin) activation.
//
// Grounded on original_source's amplifier_foundation/modules/activator.py
// and modules/install_state.py (fingerprint-gated installs keyed by
// toolchain version + mtime, invalidated wholesale on toolchain change).
package modactivate

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/amplifier-run/amplifier/internal/atomicfile"
)

const installStateVersion = 1

// ModuleFingerprint is the recorded fingerprint for one installed module:
// the content hash of its build manifest (go.mod, or a plugin.yaml marker)
// at the time dependencies were last installed.
type ModuleFingerprint struct {
	ManifestHash string `json:"manifest_hash"`
}

type installStateFile struct {
	Version        int                          `json:"version"`
	ToolchainValue string                       `json:"toolchain_version"`
	ToolchainMTime int64                         `json:"toolchain_mtime"`
	Modules        map[string]ModuleFingerprint `json:"modules"`
}

// InstallState tracks which modules have already had their dependencies
// installed for the current toolchain, persisted to
// $AMPLIFIER_HOME/cache/install-state.json via the atomic-write utility.
//
// Any mismatch between the recorded toolchain version/mtime and the
// current one invalidates every entry — "the whole environment is
// considered stale", matching install_state.py's python/python_mtime check.
type InstallState struct {
	path string

	mu    sync.Mutex
	state installStateFile
}

// LoadInstallState reads (or freshly initializes) the install state file
// under cacheDir.
func LoadInstallState(cacheDir string) *InstallState {
	path := filepath.Join(cacheDir, "install-state.json")
	s := &InstallState{path: path}

	toolchainVersion := runtime.Version()
	toolchainMTime := currentToolchainMTime()

	raw, err := os.ReadFile(path)
	if err != nil {
		s.state = freshState(toolchainVersion, toolchainMTime)
		return s
	}

	var loaded installStateFile
	if err := json.Unmarshal(raw, &loaded); err != nil {
		s.state = freshState(toolchainVersion, toolchainMTime)
		return s
	}

	if loaded.Version != installStateVersion ||
		loaded.ToolchainValue != toolchainVersion ||
		loaded.ToolchainMTime != toolchainMTime {
		s.state = freshState(toolchainVersion, toolchainMTime)
		return s
	}

	if loaded.Modules == nil {
		loaded.Modules = make(map[string]ModuleFingerprint)
	}
	s.state = loaded
	return s
}

func freshState(toolchainVersion string, toolchainMTime int64) installStateFile {
	return installStateFile{
		Version:        installStateVersion,
		ToolchainValue: toolchainVersion,
		ToolchainMTime: toolchainMTime,
		Modules:        make(map[string]ModuleFingerprint),
	}
}

// currentToolchainMTime returns the mtime of the running executable
// (os.Executable), our stand-in for install_state.py's sys.executable mtime
// check: if that binary changed, the whole cache is stale. Returns 0 (not
// an error) when it cannot be determined; a recorded mtime of 0 then still
// matches, so entries are kept.
func currentToolchainMTime() int64 {
	exe, err := os.Executable()
	if err != nil {
		return 0
	}
	info, err := os.Stat(exe)
	if err != nil {
		return 0
	}
	return info.ModTime().Unix()
}

// IsInstalled reports whether modulePath's dependencies were already
// installed with a fingerprint matching its current manifest contents.
func (s *InstallState) IsInstalled(modulePath string) bool {
	fp, err := fingerprintModule(modulePath)
	if err != nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	recorded, ok := s.state.Modules[modulePath]
	return ok && recorded.ManifestHash == fp.ManifestHash
}

// MarkInstalled records modulePath as installed at its current fingerprint.
func (s *InstallState) MarkInstalled(modulePath string) error {
	fp, err := fingerprintModule(modulePath)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Modules[modulePath] = fp
	return nil
}

// Invalidate removes a single module's recorded fingerprint, or every
// entry when modulePath is empty.
func (s *InstallState) Invalidate(modulePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if modulePath == "" {
		s.state.Modules = make(map[string]ModuleFingerprint)
		return
	}
	delete(s.state.Modules, modulePath)
}

// Save persists the current state to disk via an atomic write.
func (s *InstallState) Save() error {
	s.mu.Lock()
	raw, err := json.MarshalIndent(s.state, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return atomicfile.Write(s.path, raw, 0o644)
}

// fingerprintModule hashes a module's build manifest (go.mod, falling back
// to plugin.yaml for out-of-process plugins) so install state can detect
// when dependencies need reinstalling.
func fingerprintModule(modulePath string) (ModuleFingerprint, error) {
	for _, name := range []string{"go.mod", "plugin.yaml"} {
		raw, err := os.ReadFile(filepath.Join(modulePath, name))
		if err == nil {
			sum := sha256.Sum256(raw)
			return ModuleFingerprint{ManifestHash: hex.EncodeToString(sum[:])}, nil
		}
	}
	return ModuleFingerprint{}, os.ErrNotExist
}
