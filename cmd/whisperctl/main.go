// whisperctl - WhisperBridge store operations
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ashureev/whisperbridge/internal/cli"
)

func main() {
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
