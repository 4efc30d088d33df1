package main

import (
	"fmt"
	"os"

	emmacmd "github.com/emma-cli/emma/pkg/emma/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := emmacmd.DefaultConfig()
	root := emmacmd.NewRootCommand(cfg)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintf(cfg.ErrorWriter, "Error: %v\n", err)
		return 1
	}
	return 0
}
