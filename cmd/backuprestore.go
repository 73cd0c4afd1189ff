package cmd

import (
	"eldersvr-cli/cmd/backuprestore"
)

// dataCmd bundles workspace state into password-protected snapshots; the
// implementation lives in its own package to keep this one to wiring.
var dataCmd = backuprestore.NewDataCmd()
