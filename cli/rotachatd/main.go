package main

import (
	"os"

	rotachatdcmder "github.com/rotaworks/rotachat/cmd/rotachatd"
)

func main() {
	cmd := rotachatdcmder.NewRotachatdCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
