// Command relatedq generates related questions for a keyword from the
// command line and prints them as JSON.
package main

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(bigkindsProvider).Execute(); err != nil {
		os.Exit(1)
	}
}
