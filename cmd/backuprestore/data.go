// Package backuprestore implements the 'data' command: encrypted snapshots
// of workspace state (config, credential, manifest) that can be moved
// between provisioning machines without exposing backend credentials.
package backuprestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/securestore"
	"eldersvr-cli/internal/util"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

// CollectionsDir holds one subdirectory per saved snapshot.
const CollectionsDir = ".eldersvr_collections"

const bundleName = "data.enc"

// errBack unwinds a submenu back to the action menu.
var errBack = errors.New("back selected")

// NewDataCmd returns the 'data' command with its save/load/delete menu.
func NewDataCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "data",
		Short: "Save, load, or delete encrypted workspace snapshots",
		Long: `Bundle eldersvr.yaml together with the credential file and manifest into
a password-protected snapshot, restore one into the current directory, or
delete saved snapshots. Snapshots live under ` + CollectionsDir + `/.`,
		Run: func(cmd *cobra.Command, args []string) {
			for {
				prompt := promptui.Select{
					Label: "? Action Mode",
					Items: []string{"save", "load", "delete", "exit"},
				}
				_, action, err := prompt.Run()
				if err != nil {
					util.Default.Printf("Prompt failed %v\n", err)
					return
				}

				switch action {
				case "save":
					if err := showSaveMenu(); err != nil {
						if errors.Is(err, errBack) {
							continue
						}
						util.Default.Printf("❌ Error saving snapshot: %v\n", err)
						continue
					}
					return
				case "load":
					if err := showLoadMenu(); err != nil {
						if errors.Is(err, errBack) {
							continue
						}
						util.Default.Printf("❌ Error loading snapshot: %v\n", err)
						continue
					}
					return
				case "delete":
					if err := showDeleteMenu(); err != nil {
						if errors.Is(err, errBack) {
							continue
						}
						util.Default.Printf("❌ Error deleting snapshot: %v\n", err)
					}
				case "exit":
					util.Default.Println("Goodbye!")
					return
				}
			}
		},
	}
}

// listCollections returns the snapshot names, sorted by ReadDir order.
func listCollections() ([]string, error) {
	entries, err := os.ReadDir(CollectionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			if _, err := os.Stat(filepath.Join(CollectionsDir, e.Name(), bundleName)); err == nil {
				names = append(names, e.Name())
			}
		}
	}
	return names, nil
}

// snapshotItems collects the files worth bundling from the workspace.
// eldersvr.yaml is mandatory; credential and manifest ride along when
// present.
func snapshotItems() ([]securestore.Item, error) {
	if _, err := os.Stat(config.ConfigFileName); err != nil {
		return nil, fmt.Errorf("no %s in current directory, nothing to save", config.ConfigFileName)
	}
	items := []securestore.Item{{SrcPath: config.ConfigFileName, ArchivePath: config.ConfigFileName}}

	cfg, err := config.LoadAndValidateConfig()
	if err != nil {
		util.Default.Printf("⚠️  Config not valid, bundling only %s: %v\n", config.ConfigFileName, err)
		return items, nil
	}

	for _, candidate := range []struct{ path, arc string }{
		{cfg.Paths.CredentialPath(), "credential.json"},
		{cfg.Paths.ManifestPath(), cfg.Paths.JSONFilename},
	} {
		if info, err := os.Stat(candidate.path); err == nil && !info.IsDir() {
			items = append(items, securestore.Item{SrcPath: candidate.path, ArchivePath: candidate.arc})
		}
	}
	return items, nil
}

func askPassword(label string) (string, error) {
	prompt := promptui.Prompt{Label: label, Mask: '*'}
	password, err := prompt.Run()
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}
	return password, nil
}

func showSaveMenu() error {
	names, err := listCollections()
	if err != nil {
		return fmt.Errorf("error reading %s: %v", CollectionsDir, err)
	}

	items := append(append([]string{}, names...), "New snapshot", "Back")
	prompt := promptui.Select{
		Label: "? Save snapshot",
		Items: items,
	}
	_, choice, err := prompt.Run()
	if err != nil {
		return err
	}
	if choice == "Back" {
		return errBack
	}

	name := choice
	if choice == "New snapshot" {
		namePrompt := promptui.Prompt{Label: "Enter snapshot name"}
		name, err = namePrompt.Run()
		if err != nil {
			return err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("snapshot name cannot be empty")
		}
		if strings.ContainsAny(name, `/\`) {
			return fmt.Errorf("snapshot name must not contain path separators")
		}
		if _, err := os.Stat(filepath.Join(CollectionsDir, name)); err == nil {
			return fmt.Errorf("snapshot '%s' already exists", name)
		}
	}

	bundleItems, err := snapshotItems()
	if err != nil {
		return err
	}

	password, err := askPassword("Set password")
	if err != nil {
		return err
	}

	dir := filepath.Join(CollectionsDir, name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating snapshot directory: %v", err)
	}

	encOut := filepath.Join(dir, bundleName)
	if err := securestore.Seal([]byte(password), bundleItems, encOut); err != nil {
		return fmt.Errorf("encrypt failed: %v", err)
	}

	util.Default.Printf("🔒 Encrypted snapshot created: %s\n", encOut)
	for _, it := range bundleItems {
		util.Default.Printf("   📄 %s\n", it.ArchivePath)
	}
	util.Default.Printf("✅ Snapshot saved as '%s'\n", name)
	return nil
}

func showLoadMenu() error {
	names, err := listCollections()
	if err != nil {
		return fmt.Errorf("error reading %s: %v", CollectionsDir, err)
	}
	if len(names) == 0 {
		util.Default.Println("⚠️  No snapshots found")
		return errBack
	}

	items := append(append([]string{}, names...), "Back")
	prompt := promptui.Select{
		Label: "? Load snapshot",
		Items: items,
	}
	_, choice, err := prompt.Run()
	if err != nil {
		return err
	}
	if choice == "Back" {
		return errBack
	}

	encPath := filepath.Join(CollectionsDir, choice, bundleName)
	password, err := askPassword("Password")
	if err != nil {
		return err
	}

	contents, err := securestore.List([]byte(password), encPath)
	if err != nil {
		if errors.Is(err, securestore.ErrBadPassword) {
			return fmt.Errorf("wrong password for snapshot '%s'", choice)
		}
		return err
	}

	util.Default.Printf("📦 Snapshot '%s' contains:\n", choice)
	overwrites := false
	for _, name := range contents {
		marker := ""
		if _, err := os.Stat(name); err == nil {
			marker = " (will overwrite)"
			overwrites = true
		}
		util.Default.Printf("   📄 %s%s\n", name, marker)
	}

	if overwrites {
		confirm := promptui.Prompt{
			Label:     "Existing files will be overwritten. Continue",
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			util.Default.Println("⏭️  Load cancelled")
			return errBack
		}
	}

	if err := securestore.Restore([]byte(password), encPath, "."); err != nil {
		return fmt.Errorf("restore failed: %v", err)
	}
	util.Default.Printf("✅ Snapshot '%s' restored into %s\n", choice, mustGetwd())
	return nil
}

func showDeleteMenu() error {
	names, err := listCollections()
	if err != nil {
		return fmt.Errorf("error reading %s: %v", CollectionsDir, err)
	}
	if len(names) == 0 {
		util.Default.Println("⚠️  No snapshots found")
		return errBack
	}

	items := append(append([]string{}, names...), "Back")
	prompt := promptui.Select{
		Label: "? Delete snapshot",
		Items: items,
	}
	_, choice, err := prompt.Run()
	if err != nil {
		return err
	}
	if choice == "Back" {
		return errBack
	}

	confirm := promptui.Prompt{
		Label:     fmt.Sprintf("Delete snapshot '%s'", choice),
		IsConfirm: true,
	}
	if _, err := confirm.Run(); err != nil {
		util.Default.Println("⏭️  Delete cancelled")
		return errBack
	}

	if err := os.RemoveAll(filepath.Join(CollectionsDir, choice)); err != nil {
		return fmt.Errorf("error deleting snapshot: %v", err)
	}
	util.Default.Printf("🗑️  Snapshot '%s' deleted\n", choice)
	return nil
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}
