package main

import (
	"os"

	rotachatcmder "github.com/rotaworks/rotachat/cmd/rotachat"
)

func main() {
	cmd := rotachatcmder.NewRotachatCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
