// Package storage provides persistent configuration storage using LittleFS.
// It handles atomic writes, version checking, and cleanup of temporary files.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/config"
	"github.com/tuffrabit/tinygo-ps2-bridge/pkg/logging"

	"tinygo.org/x/tinyfs"
	"tinygo.org/x/tinyfs/littlefs"
)

const (
	configDir  = "/config"
	deviceFile = "/config/device.bin"
	tempSuffix = ".tmp"

	// Encoded config plus LittleFS metadata and the directory entry.
	estimatedUsage = config.Size + 32 + 64
)

var (
	ErrConfigNotFound  = errors.New("device config not found")
	ErrFlashFull       = errors.New("insufficient flash space")
	ErrInvalidConfig   = errors.New("invalid config data")
	ErrVersionMismatch = errors.New("config version mismatch")
	ErrFilesystem      = errors.New("filesystem error")
)

// Manager handles config persistence using LittleFS.
type Manager struct {
	fs       *littlefs.LFS
	blockDev tinyfs.BlockDevice
	mounted  bool
	wiped    bool
}

// Stats provides information about storage usage.
type Stats struct {
	TotalSpace int64
	UsedSpace  int64
	FreeSpace  int64
	HasConfig  bool
	// Wiped is true if a config of another format version was removed at
	// mount time.
	Wiped bool
}

// New initializes the storage system with the given block device.
// It mounts the filesystem and performs boot-time cleanup.
// If format is true and mount fails, it will format the filesystem.
func New(blockDev tinyfs.BlockDevice, format bool) (*Manager, error) {
	lfs := littlefs.New(blockDev)

	// Configure LittleFS for RP2040 flash
	// These are conservative settings for reliability
	lfs.Configure(&littlefs.Config{
		CacheSize:     512,
		LookaheadSize: 128,
	})

	// Try to mount existing filesystem
	err := lfs.Mount()
	if err != nil {
		if !format {
			return nil, fmt.Errorf("%w: mount: %v", ErrFilesystem, err)
		}
		logging.Warn(logging.ComponentStorage, "mount failed, formatting", "err", err)
		if err := lfs.Format(); err != nil {
			return nil, fmt.Errorf("%w: format: %v", ErrFilesystem, err)
		}
		if err := lfs.Mount(); err != nil {
			return nil, fmt.Errorf("%w: mount: %v", ErrFilesystem, err)
		}
	}

	m := &Manager{
		fs:       lfs,
		blockDev: blockDev,
		mounted:  true,
	}

	// A failed cleanup leaves stray temp files but does not stop us.
	if err := m.bootCleanup(); err != nil {
		logging.Warn(logging.ComponentStorage, "boot cleanup failed", "err", err)
	}

	needsWipe, err := m.checkVersion()
	if err != nil {
		// Unreadable config is replaced by the defaults on next save.
		logging.Warn(logging.ComponentStorage, "version check failed", "err", err)
		needsWipe = false
	}

	if needsWipe {
		// The host tool must restore settings after a format change.
		logging.Info(logging.ComponentStorage, "config version changed, wiping")
		if err := m.wipeAll(); err != nil {
			return nil, err
		}
		m.wiped = true
	}

	return m, nil
}

// Close unmounts the filesystem.
func (m *Manager) Close() error {
	if m.mounted {
		m.mounted = false
		return m.fs.Unmount()
	}
	return nil
}

// bootCleanup removes temporary files left over from interrupted writes.
func (m *Manager) bootCleanup() error {
	entries, err := m.readDir(configDir)
	if err != nil {
		// Config dir might not exist yet
		if isNotExist(err) {
			return nil
		}
		return err
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, tempSuffix) {
			m.fs.Remove(path.Join(configDir, name))
		}
	}
	return nil
}

// readDir reads the directory entries at the given path.
func (m *Manager) readDir(dirPath string) ([]os.FileInfo, error) {
	f, err := m.fs.Open(dirPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if !f.IsDir() {
		return nil, errors.New("not a directory")
	}

	return f.Readdir(-1)
}

// checkVersion reads the device config and reports whether it was written
// by a firmware with another format version.
func (m *Manager) checkVersion() (bool, error) {
	var deviceCfg config.DeviceConfig
	if err := m.LoadDevice(&deviceCfg); err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			// First boot
			return false, nil
		}
		return false, err
	}

	return deviceCfg.Version != config.CurrentVersion, nil
}

// wipeAll removes all configuration files.
func (m *Manager) wipeAll() error {
	if err := m.fs.Remove(deviceFile); err != nil && !isNotExist(err) {
		return fmt.Errorf("%w: %v", ErrFilesystem, err)
	}
	return nil
}

// ensureDirs creates the config directory if it doesn't exist.
func (m *Manager) ensureDirs() error {
	if err := m.fs.Mkdir(configDir, 0755); err != nil && !isExist(err) {
		return err
	}
	return nil
}

// isExist checks if an error is "already exists".
// LittleFS errors don't always match os.IsExist, so we check the message too.
func isExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "already exists")
}

// isNotExist is isExist for missing entries.
func isNotExist(err error) bool {
	if err == nil {
		return false
	}
	if os.IsNotExist(err) {
		return true
	}
	return strings.Contains(err.Error(), "No directory entry")
}

// LoadDevice loads the device configuration.
func (m *Manager) LoadDevice(cfg *config.DeviceConfig) error {
	f, err := m.fs.Open(deviceFile)
	if err != nil {
		if isNotExist(err) {
			return ErrConfigNotFound
		}
		return err
	}
	defer f.Close()

	buf := make([]byte, config.Size)
	n, err := f.Read(buf)
	if err != nil {
		return err
	}
	if n != config.Size {
		return ErrInvalidConfig
	}

	return cfg.UnmarshalBinary(buf)
}

// LoadOrDefault returns the stored configuration, or the defaults when none
// is stored or the stored one does not validate.
func (m *Manager) LoadOrDefault() config.DeviceConfig {
	var cfg config.DeviceConfig
	if err := m.LoadDevice(&cfg); err != nil {
		if !errors.Is(err, ErrConfigNotFound) {
			logging.Warn(logging.ComponentStorage, "load failed, using defaults", "err", err)
		}
		return config.Default()
	}
	if err := cfg.Validate(); err != nil {
		logging.Warn(logging.ComponentStorage, "stored config invalid, using defaults", "err", err)
		return config.Default()
	}
	return cfg
}

// SaveDevice validates and saves the device configuration atomically.
func (m *Manager) SaveDevice(cfg *config.DeviceConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := m.ensureDirs(); err != nil {
		return err
	}

	// Set version
	cfg.Version = config.CurrentVersion

	data, err := cfg.MarshalBinary()
	if err != nil {
		return err
	}

	if !m.CanFit() {
		return ErrFlashFull
	}
	return m.atomicWrite(deviceFile, data)
}

// HasDevice reports whether a device config is stored.
func (m *Manager) HasDevice() bool {
	f, err := m.fs.Open(deviceFile)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// GetStats returns storage statistics.
func (m *Manager) GetStats() (*Stats, error) {
	// LittleFS doesn't have a direct "free space" call, so usage is
	// estimated from what we store.
	has := m.HasDevice()
	used := int64(64) // directory
	if has {
		used += estimatedUsage
	}

	total := m.blockDev.Size()

	return &Stats{
		TotalSpace: total,
		UsedSpace:  used,
		FreeSpace:  total - used,
		HasConfig:  has,
		Wiped:      m.wiped,
	}, nil
}

// CanFit estimates if a config write fits, including the temp copy.
// This is a conservative estimate.
func (m *Manager) CanFit() bool {
	stats, err := m.GetStats()
	if err != nil {
		return false
	}
	return stats.FreeSpace > 2*estimatedUsage+int64(m.blockDev.EraseBlockSize())
}

// atomicWrite writes data to a temporary file, syncs it, then renames.
// This ensures atomic updates - the original file is never in a partially written state.
func (m *Manager) atomicWrite(filepath string, data []byte) error {
	tempPath := filepath + tempSuffix

	// Remove temp file if it exists (from interrupted previous write)
	m.fs.Remove(tempPath)

	// Write to temp file
	f, err := m.fs.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		m.fs.Remove(tempPath)
		return err
	}

	// Sync ensures data hits flash
	if syncer, ok := f.(interface{ Sync() error }); ok {
		if err := syncer.Sync(); err != nil {
			f.Close()
			m.fs.Remove(tempPath)
			return err
		}
	}

	if err := f.Close(); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	// Remove existing file if present (LittleFS rename doesn't replace)
	m.fs.Remove(filepath)

	if err := m.fs.Rename(tempPath, filepath); err != nil {
		m.fs.Remove(tempPath)
		return err
	}

	return nil
}

// ForceWipe erases the stored configuration (factory reset).
func (m *Manager) ForceWipe() error {
	return m.wipeAll()
}
