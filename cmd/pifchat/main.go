// Command pifchat is the entry point for the PIF annual report assistant.
// It answers Arabic and English questions grounded in the Public Investment
// Fund's annual reports, via a CLI, an interactive chat, or an HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/ralmansi/pifchat/cmd/pifchat/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
