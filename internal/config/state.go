package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"eldersvr-cli/internal/util"
)

// TempDirName is the workspace-local scratch directory for logs, session
// state, and the download ledger.
const TempDirName = ".eldersvr_temp"

// LocalState represents the workspace session state in .eldersvr_temp/state.json
type LocalState struct {
	Session SessionState `json:"session"`
}

type SessionState struct {
	ID           string `json:"id,omitempty"` // Unique session identifier
	Token        string `json:"token,omitempty"`
	TokenSavedAt string `json:"token_saved_at,omitempty"`
	LastFetchAt  string `json:"last_fetch_at,omitempty"`
	LastDeployAt string `json:"last_deploy_at,omitempty"`
}

// LocalStatePath returns the path to .eldersvr_temp/state.json
func LocalStatePath() string {
	return filepath.Join(TempDirName, "state.json")
}

// LoadLocalState loads the session state from .eldersvr_temp/state.json
func LoadLocalState() (*LocalState, error) {
	statePath := LocalStatePath()

	// If state doesn't exist, return empty state
	if _, err := os.Stat(statePath); os.IsNotExist(err) {
		return &LocalState{}, nil
	}

	data, err := os.ReadFile(statePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	var state LocalState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse session state: %w", err)
	}

	return &state, nil
}

// Save writes the session state to .eldersvr_temp/state.json
func (ls *LocalState) Save() error {
	statePath := LocalStatePath()

	if err := os.MkdirAll(filepath.Dir(statePath), 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", TempDirName, err)
	}

	data, err := json.MarshalIndent(ls, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	if err := os.WriteFile(statePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}

	return nil
}

// EnsureSessionID ensures the state has a session ID, generating one if needed
func (ls *LocalState) EnsureSessionID() bool {
	if ls.Session.ID == "" {
		ls.Session.ID = uuid.NewString()
		util.Default.Printf("🆔 Started session: %s\n", ls.Session.ID)
		return true // State was modified
	}
	return false // State unchanged
}

// SetToken stores a backend token with its acquisition time.
func (ls *LocalState) SetToken(token string) {
	ls.Session.Token = token
	ls.Session.TokenSavedAt = time.Now().Format(time.RFC3339)
}

// ClearToken removes the stored backend token. Used by logout.
func (ls *LocalState) ClearToken() {
	ls.Session.Token = ""
	ls.Session.TokenSavedAt = ""
}

// GetOrCreateLocalState loads existing session state or creates a new one
// with a fresh session ID
func GetOrCreateLocalState() (*LocalState, error) {
	state, err := LoadLocalState()
	if err != nil {
		return nil, err
	}

	if state.EnsureSessionID() {
		if err := state.Save(); err != nil {
			return nil, fmt.Errorf("failed to save session state: %w", err)
		}
	}

	return state, nil
}
