// Package main is the entry point for the accordionmidi API server
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/james-see/accordionmidi/pkg/api"
	"github.com/james-see/accordionmidi/pkg/config"
	"github.com/james-see/accordionmidi/pkg/converter"
	"github.com/james-see/accordionmidi/pkg/keyboard"
	"github.com/james-see/accordionmidi/pkg/sysex"
)

func main() {
	configPath := flag.String("config", "", "Config file (default is the user config dir)")
	addr := flag.String("addr", "", "Listen address (default from config)")
	bankPath := flag.String("bank", "", "Bank file loaded at start")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	if *addr == "" {
		*addr = cfg.Addr
	}
	if *bankPath == "" {
		*bankPath = cfg.BankPath
	}

	conv := converter.New(cfg.ChunkSize)
	bank := keyboard.Default()
	if *bankPath != "" {
		if bank, err = conv.ParseFile(*bankPath); err != nil {
			fmt.Fprintf(os.Stderr, "Bank error: %v\n", err)
			os.Exit(1)
		}
	}

	session := sysex.NewSession(bank,
		sysex.WithChunkSize(cfg.ChunkSize),
		sysex.WithLogger(log.New(os.Stderr, "[session] ", log.LstdFlags)),
	)

	fmt.Printf("Starting accordionmidi API server on %s...\n", *addr)
	fmt.Printf("Swagger docs available at http://localhost%s/swagger/index.html\n", *addr)

	if err := api.NewServer(session, conv, nil).Run(*addr); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
