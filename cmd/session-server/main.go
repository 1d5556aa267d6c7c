package main

import (
	"os"

	"github.com/lewisedginton/whatsapp_session_manager/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
