package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/filekeeper/internal/flagx"
	"github.com/dmitrijs2005/filekeeper/internal/server"
	"github.com/dmitrijs2005/filekeeper/internal/server/config"
)

const defaultConfigFile = "config.json"

func main() {
	switch cmd := flagx.Subcommand(os.Args[1:], config.ValueFlags); cmd {
	case "":
		run()
	case "generate-config":
		generateConfig()
	case "test-config":
		testConfig()
	default:
		log.Fatalf("unknown command %q (expected generate-config or test-config)", cmd)
	}
}

func run() {
	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		os.Exit(1)
	}
}

// generateConfig writes the default configuration to the -c path.
func generateConfig() {
	path := flagx.JsonConfigFlags()
	if path == "" {
		path = defaultConfigFile
	}

	fs := flag.NewFlagSet("generate-config", flag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite an existing file")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-force"}))

	if err := config.WriteDefaults(path, *force); err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Printf("default configuration written to %s\n", path)
}

// testConfig loads the configuration the server would run with and prints it.
func testConfig() {
	defer func() {
		if r := recover(); r != nil {
			log.Fatalf("invalid configuration: %v", r)
		}
	}()

	cfg := config.LoadConfig()

	data, err := cfg.MarshalIndent(false)
	if err != nil {
		log.Fatalf("%v", err)
	}
	fmt.Println(string(data))
	fmt.Println("configuration is valid")
}
