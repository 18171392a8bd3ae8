// Package main runs one-shot battle maintenance sweeps.
package main

import (
	"context"
	"flag"
	"os"

	maintenancecmd "github.com/agorahq/arena/internal/cmd/maintenance"
	"github.com/agorahq/arena/internal/platform/config"
)

func main() {
	cfg, err := maintenancecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := maintenancecmd.Run(context.Background(), cfg); err != nil {
		config.Exitf("maintenance: %v", err)
	}
}
