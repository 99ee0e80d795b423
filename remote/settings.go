package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"remotectl/core"
)

// Settings are the user settings that survive a restart
type Settings struct {
	Brightness    uint8 `json:"brightness"`
	Volume        uint8 `json:"volume"`
	AutoThrottle  bool  `json:"auto_throttle"`
	Coast         bool  `json:"coast"`
	PowerMaster   bool  `json:"power_master"`
	MovieMode     bool  `json:"movie_mode"`
	ShowPeerSpeed bool  `json:"show_peer_speed"`
	Clicks        bool  `json:"clicks"`
	UpdateAvail   bool  `json:"update_avail"`
}

// SettingsStore persists Settings
type SettingsStore interface {
	Load() (Settings, error)
	Save(Settings) error
	ClearNetwork() error // Forget stored network configuration
}

// Settings write delays after the last change
const (
	BrightnessSaveDelay = 8 * time.Second
	VolumeSaveDelay     = 8 * time.Second
	ModesSaveDelay      = 3 * time.Second

	saveRetry = 100 * time.Millisecond
)

// FileStore keeps Settings in a JSON file
type FileStore struct {
	Path        string
	NetworkPath string // Network configuration removed by ClearNetwork
}

// Load reads the settings file. A missing file is not an error and
// yields zero Settings.
func (f *FileStore) Load() (Settings, error) {
	var s Settings

	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("read settings: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("parse settings: %w", err)
	}
	return s, nil
}

// Save writes the settings file atomically
func (f *FileStore) Save(s Settings) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".settings-*")
	if err != nil {
		return fmt.Errorf("save settings: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("save settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save settings: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("save settings: %w", err)
	}
	return nil
}

// ClearNetwork removes the network configuration file
func (f *FileStore) ClearNetwork() error {
	if f.NetworkPath == "" {
		return nil
	}
	err := os.Remove(f.NetworkPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// MemStore keeps Settings in memory
type MemStore struct {
	Settings Settings
	Saves    int
	Cleared  bool
}

// Load returns the stored settings
func (m *MemStore) Load() (Settings, error) {
	return m.Settings, nil
}

// Save stores s and counts the write
func (m *MemStore) Save(s Settings) error {
	m.Settings = s
	m.Saves++
	return nil
}

// ClearNetwork records the request
func (m *MemStore) ClearNetwork() error {
	m.Cleared = true
	return nil
}

// saveGroup is a set of settings written together after a delay
type saveGroup uint8

const (
	saveBrightness saveGroup = iota
	saveVolume
	saveModes
	numSaveGroups
)

var saveDelays = [numSaveGroups]time.Duration{
	saveBrightness: BrightnessSaveDelay,
	saveVolume:     VolumeSaveDelay,
	saveModes:      ModesSaveDelay,
}

// saver debounces settings writes on the control loop scheduler. A
// due write waits while the loop is busy with a sequence or the lever.
type saver struct {
	sched  *core.Scheduler
	clock  core.Clock
	timers [numSaveGroups]core.Timer
	idle   func() bool
	write  func()
}

func newSaver(sched *core.Scheduler, clock core.Clock, idle func() bool, write func()) *saver {
	s := &saver{sched: sched, clock: clock, idle: idle, write: write}
	for i := range s.timers {
		s.timers[i].Handler = s.fire
	}
	return s
}

func (s *saver) fire(t *core.Timer) uint8 {
	if !s.idle() {
		t.WakeTime = s.clock.Now().Add(saveRetry)
		return core.SF_RESCHEDULE
	}
	s.write()
	return core.SF_DONE
}

// touch (re)starts the delay of group g
func (s *saver) touch(g saveGroup, now time.Time) {
	s.sched.ScheduleAfter(&s.timers[g], now, saveDelays[g])
}

// pending reports whether any write is waiting
func (s *saver) pending() bool {
	for i := range s.timers {
		if s.sched.Pending(&s.timers[i]) {
			return true
		}
	}
	return false
}

// flush writes right away if anything is pending
func (s *saver) flush() {
	if !s.pending() {
		return
	}
	for i := range s.timers {
		s.sched.CancelTimer(&s.timers[i])
	}
	s.write()
}
