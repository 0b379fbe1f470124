package main

import (
	"os"

	"github.com/pyautoupdate/pyautoupdate/client/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
