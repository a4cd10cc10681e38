package main

import (
	"os"

	cmd "github.com/webitel/rocrate-exporter/cmd/main"
)

func main() {
	os.Exit(cmd.Run())
}
