package main

import (
	"os"

	"github.com/spigell/resume-tailor/cmd"

	"github.com/joho/godotenv"
)

func main() {
	// a .env file is optional
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
