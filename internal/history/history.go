// Package history persists per-user state under ~/.eldersvr: recently used
// workspaces for the start menu, and a log of past deployment runs.
package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

const HistoryDir = ".eldersvr"
const WorkspacesFile = "workspaces.json"
const RunsFile = "runs.json"

// MaxRuns caps the run log so it never grows unbounded.
const MaxRuns = 50

type WorkspaceEntry struct {
	Path       string    `json:"path"`
	LastAccess time.Time `json:"last_access"`
}

type Workspaces struct {
	Entries []WorkspaceEntry `json:"entries"`
}

func GetHistoryDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, HistoryDir)
}

func workspacesPath() string {
	return filepath.Join(GetHistoryDir(), WorkspacesFile)
}

func runsPath() string {
	return filepath.Join(GetHistoryDir(), RunsFile)
}

func LoadWorkspaces() (*Workspaces, error) {
	path := workspacesPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Workspaces{Entries: []WorkspaceEntry{}}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var w Workspaces
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return &w, nil
}

func SaveWorkspaces(w *Workspaces) error {
	os.MkdirAll(GetHistoryDir(), 0755)
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(workspacesPath(), data, 0644)
}

// AddWorkspace records a workspace path, touching its access time when it is
// already known.
func AddWorkspace(path string) error {
	w, err := LoadWorkspaces()
	if err != nil {
		return err
	}
	for i, entry := range w.Entries {
		if entry.Path == path {
			w.Entries[i].LastAccess = time.Now()
			return SaveWorkspaces(w)
		}
	}
	w.Entries = append(w.Entries, WorkspaceEntry{
		Path:       path,
		LastAccess: time.Now(),
	})
	return SaveWorkspaces(w)
}

func RemoveWorkspace(path string) error {
	w, err := LoadWorkspaces()
	if err != nil {
		return err
	}
	for i, entry := range w.Entries {
		if entry.Path == path {
			w.Entries = append(w.Entries[:i], w.Entries[i+1:]...)
			break
		}
	}
	return SaveWorkspaces(w)
}

// SearchWorkspaces returns known workspace paths matching a case-insensitive
// substring query.
func SearchWorkspaces(query string) []string {
	w, err := LoadWorkspaces()
	if err != nil {
		return []string{}
	}
	var results []string
	for _, entry := range w.Entries {
		if strings.Contains(strings.ToLower(entry.Path), strings.ToLower(query)) {
			results = append(results, entry.Path)
		}
	}
	sort.Strings(results)
	return results
}

// RecentWorkspaces returns all known workspace paths, most recently used
// first.
func RecentWorkspaces() []string {
	w, err := LoadWorkspaces()
	if err != nil || len(w.Entries) == 0 {
		return []string{}
	}

	sort.Slice(w.Entries, func(i, j int) bool {
		return w.Entries[i].LastAccess.After(w.Entries[j].LastAccess)
	})

	var result []string
	for _, entry := range w.Entries {
		result = append(result, entry.Path)
	}
	return result
}

// RunRecord is one completed (or failed) engine run.
type RunRecord struct {
	ID         string    `json:"id"`
	Command    string    `json:"command"` // download, transfer, deploy
	Workspace  string    `json:"workspace"`
	Devices    []string  `json:"devices,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Succeeded  bool      `json:"succeeded"`
	Summary    string    `json:"summary,omitempty"`
}

type runLog struct {
	Runs []RunRecord `json:"runs"`
}

// NewRunRecord starts a record for a command invocation. The caller fills in
// the outcome and passes it to RecordRun.
func NewRunRecord(command, workspace string) RunRecord {
	return RunRecord{
		ID:        uuid.NewString(),
		Command:   command,
		Workspace: workspace,
		StartedAt: time.Now(),
	}
}

// RecordRun appends a finished run to the log, trimming it to MaxRuns.
func RecordRun(rec RunRecord) error {
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}

	log, err := loadRuns()
	if err != nil {
		return err
	}
	log.Runs = append(log.Runs, rec)
	if len(log.Runs) > MaxRuns {
		log.Runs = log.Runs[len(log.Runs)-MaxRuns:]
	}

	os.MkdirAll(GetHistoryDir(), 0755)
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(runsPath(), data, 0644)
}

// RecentRuns returns up to n runs, newest first.
func RecentRuns(n int) []RunRecord {
	log, err := loadRuns()
	if err != nil {
		return nil
	}
	runs := log.Runs
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if n > 0 && len(runs) > n {
		runs = runs[:n]
	}
	return runs
}

func loadRuns() (*runLog, error) {
	path := runsPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &runLog{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var log runLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, err
	}
	return &log, nil
}
