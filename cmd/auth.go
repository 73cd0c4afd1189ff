package cmd

import (
	"fmt"
	"os"

	"eldersvr-cli/internal/api"
	"eldersvr-cli/internal/config"
	"eldersvr-cli/internal/util"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
)

var (
	authEmail    string
	authPassword string
	authCheck    bool
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authenticate with the EldersVR backend",
	Long:  `Log in against the configured backend and store the bearer token for this workspace. Credentials come from flags, eldersvr.yaml, or an interactive prompt.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadWorkspaceConfig()
		if err != nil {
			os.Exit(1)
		}

		if authCheck {
			if err := runAuthCheck(cfg); err != nil {
				os.Exit(1)
			}
			return
		}

		if _, err := runAuth(cmd, cfg, authEmail, authPassword); err != nil {
			os.Exit(1)
		}
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the stored backend session",
	Run: func(cmd *cobra.Command, args []string) {
		state, err := config.LoadLocalState()
		if err != nil {
			util.Default.Printf("❌ Failed to load session state: %v\n", err)
			os.Exit(1)
		}
		state.ClearToken()
		if err := state.Save(); err != nil {
			util.Default.Printf("❌ Failed to save session state: %v\n", err)
			os.Exit(1)
		}
		util.Default.Println("✅ Logged out successfully")
	},
}

// runAuth performs the login and persists the token. Shared by the auth
// command and the deploy pipeline.
func runAuth(cmd *cobra.Command, cfg *config.Config, email, password string) (*api.Client, error) {
	if email == "" {
		email = cfg.Auth.Email
	}
	if password == "" {
		password = cfg.Auth.Password
	}

	// last resort: ask, with the password masked
	if email == "" && stdinIsTTY() {
		prompt := promptui.Prompt{Label: "Email"}
		v, err := prompt.Run()
		if err != nil {
			return nil, err
		}
		email = v
	}
	if password == "" && stdinIsTTY() {
		prompt := promptui.Prompt{Label: "Password", Mask: '*'}
		v, err := prompt.Run()
		if err != nil {
			return nil, err
		}
		password = v
	}
	if email == "" || password == "" {
		util.Default.Println("❌ Email and password are required for authentication")
		return nil, fmt.Errorf("missing credentials")
	}

	util.Default.Printf("🔑 Authenticating with %s...\n", email)

	client := api.NewClient(cfg.Backend)
	if err := client.Login(cmd.Context(), email, password); err != nil {
		util.Default.Printf("❌ Authentication failed: %v\n", err)
		return nil, err
	}

	state, err := config.GetOrCreateLocalState()
	if err != nil {
		return nil, err
	}
	state.SetToken(client.Token())
	if err := state.Save(); err != nil {
		util.Default.Printf("⚠️  Token not persisted: %v\n", err)
	}

	user := client.User()
	company := client.Company()
	util.Default.Println("✅ Authentication successful!")
	util.Default.Printf("👤 User: %s (%s)\n", user.Name, user.Email)
	util.Default.Printf("🏢 Company: %s\n", company.Name)
	return client, nil
}

// runAuthCheck reports whether the workspace holds a token.
func runAuthCheck(cfg *config.Config) error {
	client := sessionClient(cfg)
	if !client.IsAuthenticated() {
		util.Default.Println("❌ No session found. Run 'eldersvr auth' first.")
		return api.ErrNotAuthenticated
	}
	state, _ := config.LoadLocalState()
	util.Default.Println("✅ Session token present")
	if state != nil && state.Session.TokenSavedAt != "" {
		util.Default.Printf("🕐 Acquired: %s\n", state.Session.TokenSavedAt)
	}
	return nil
}

func init() {
	authCmd.Flags().StringVar(&authEmail, "email", "", "email for authentication")
	authCmd.Flags().StringVar(&authPassword, "password", "", "password for authentication")
	authCmd.Flags().BoolVar(&authCheck, "check", false, "check the stored session instead of logging in")
}
