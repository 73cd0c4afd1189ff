package tui

import (
	"bufio"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"strings"

	"eldersvr-cli/internal/util"
)

// ConfirmDestructive guards operations that wipe device state (clean-device,
// clear-app-data). The given token must be typed back exactly; clean-device
// passes the device serial so the confirmation doubles as a target check. An
// empty token gets a short random one. Returns true when confirmed.
//
// The prompt is skipped entirely when stdin is not a TTY, or when
// ELDERSVR_FORCE_CAPTCHA is set to "false"/"0"/"no" (useful in scripts and
// CI provisioning runs).
func ConfirmDestructive(prompt, token string, attempts int) (bool, error) {
	if v := strings.ToLower(strings.TrimSpace(os.Getenv("ELDERSVR_FORCE_CAPTCHA"))); v == "false" || v == "0" || v == "no" {
		util.Default.Println("ℹ️  ELDERSVR_FORCE_CAPTCHA=false detected — skipping confirmation")
		return true, nil
	}
	if fi, _ := os.Stdin.Stat(); fi != nil && (fi.Mode()&os.ModeCharDevice) == 0 {
		util.Default.Println("ℹ️  Non-interactive stdin detected — skipping confirmation")
		return true, nil
	}

	if attempts <= 0 {
		attempts = 3
	}

	if token == "" {
		var err error
		token, err = confirmToken(6)
		if err != nil {
			return false, fmt.Errorf("failed to generate token: %v", err)
		}
	}

	reader := bufio.NewReader(os.Stdin)
	for i := 0; i < attempts; i++ {
		util.Default.Printf("⚠️  %s\n", prompt)
		util.Default.Printf("Type the token to confirm [%s]: ", token)
		line, err := reader.ReadString('\n')
		if err != nil {
			return false, fmt.Errorf("failed to read input: %v", err)
		}
		if strings.TrimSpace(line) == token {
			util.Default.Println("✅ Confirmation accepted")
			return true, nil
		}
		util.Default.Printf("❌ Token mismatch (%d/%d).\n", i+1, attempts)
	}
	util.Default.Println("⚠️  Confirmation failed — aborting")
	return false, nil
}

// confirmToken generates an uppercase alphanumeric token, excluding the
// characters that are easy to misread in a terminal (O/0, I/1).
func confirmToken(n int) (string, error) {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	out := make([]byte, n)
	max := big.NewInt(int64(len(charset)))
	for i := range out {
		r, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = charset[r.Int64()]
	}
	return string(out), nil
}
