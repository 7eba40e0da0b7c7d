package main

import (
	"flag"
	"fmt"
	"jamsync/internal/di"
	"jamsync/internal/structures"
	"os"
)

func main() {
	flags := &structures.CliFlags{}
	flag.StringVar(&flags.ConfigPath, "config", "./config.yml", "path to the configuration file")
	flag.BoolVar(&flags.DebugMode, "debug", false, "mirror logs to the console")
	flag.Parse()

	if _, err := di.InitApp(flags); err != nil {
		fmt.Fprintf(os.Stderr, "jamsync: %v\n", err)
		os.Exit(1)
	}
}
