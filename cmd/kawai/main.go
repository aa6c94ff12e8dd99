package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/kcache/kawai/internal/engine"
)

var (
	configPath = flag.String("config", "", "Path to a YAML/JSON/TOML configuration file (required)")
	logLevel   = flag.String("log.level", "", "Overrides log.level from the configuration file")
)

func main() {
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "Error: -config is required")
		flag.Usage()
		os.Exit(1)
	}

	options, err := loadOptions(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		options["log.level"] = *logLevel
	}

	e := engine.Instance()
	if err := e.Configure(options); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := e.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	waitForShutdown()

	if err := engine.CloseInstance(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadOptions reads the configuration file into the plain map[string]any
// Engine.Configure expects, letting viper handle the YAML/JSON/TOML
// dialects transparently.
func loadOptions(path string) (map[string]any, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return v.AllSettings(), nil
}

func waitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
}
