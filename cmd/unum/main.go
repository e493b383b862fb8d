// Package main provides the entry point for the unum dev node.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/UnumOne/unum/pkg/config"
	"github.com/UnumOne/unum/pkg/genesis"
	"github.com/UnumOne/unum/pkg/rpc"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "", "path to JSON config file")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("unum-node version %s\n", Version)
		os.Exit(0)
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFromFile(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	world, err := genesis.Build(cfg)
	if err != nil {
		log.Fatalf("genesis: %v", err)
	}

	log.Printf("unum-node %s", Version)
	log.Printf("owner: %s", world.Accounts[0].Address.Hex())
	for _, acc := range world.Accounts {
		log.Printf("account: %s", acc.Address.Hex())
	}
	log.Printf("collateral: %v", world.Engine.Symbols())
	log.Printf("listening on %s", cfg.ServerAddr())

	server := rpc.NewServer(world.Engine, world.Oracle, world.Log)
	if err := http.ListenAndServe(cfg.ServerAddr(), server); err != nil {
		log.Fatalf("server: %v", err)
	}
}
