package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/meteosentry/meteosentry/internal/app"
	"github.com/meteosentry/meteosentry/internal/log"
	"github.com/meteosentry/meteosentry/pkg/config"
)

const version = "1.0-" + runtime.GOOS + "/" + runtime.GOARCH

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to configuration source:\n\t\t\t  YAML: config.yaml\n\t\t\t  SQLite: config.db")
	cfgBackend := flag.String("config-backend", "yaml", "Configuration backend type: 'yaml' for YAML files, 'sqlite' for SQLite databases")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	logFile := flag.String("log-file", "", "Also write logs to this rotating file")
	endFlag := flag.String("end", "", "Detection window end as RFC 3339 (default: now)")
	station := flag.String("station", "", "Restrict the run to one station ID")
	healthMode := flag.Bool("health", false, "Run the long-period health evaluation instead of anomaly detection")
	every := flag.Duration("every", 0, "Re-run the batch at this interval (e.g. 10m); 0 runs once")
	jsonOut := flag.Bool("json", false, "Emit the report as JSON")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("meteosentry %s\n", version)
		os.Exit(0)
	}

	// Set up logging
	if err := log.Init(*debug, *logFile); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	opts := app.Options{
		Station: *station,
		Health:  *healthMode,
		Every:   *every,
		JSON:    *jsonOut,
		Output:  os.Stdout,
	}
	if *endFlag != "" {
		end, err := time.Parse(time.RFC3339, *endFlag)
		if err != nil {
			log.Errorf("Invalid -end value %q: %v", *endFlag, err)
			os.Exit(1)
		}
		opts.End = end
	}

	provider, err := newProvider(*cfgFile, *cfgBackend)
	if err != nil {
		log.Errorf("Failed to load configuration: %v", err)
		os.Exit(1)
	}
	defer provider.Close()

	application := app.New(provider, log.GetSugaredLogger())
	if err := application.Run(context.Background(), opts); err != nil {
		log.Errorf("Application error: %v", err)
		os.Exit(1)
	}
}

func newProvider(cfgFile, cfgBackend string) (config.ConfigProvider, error) {
	filename, _ := filepath.Abs(cfgFile)

	switch cfgBackend {
	case "yaml":
		return config.NewYAMLProvider(filename), nil
	case "sqlite":
		provider, err := config.NewSQLiteProvider(filename)
		if err != nil {
			return nil, fmt.Errorf("error creating SQLite provider: %w", err)
		}
		return provider, nil
	}
	return nil, fmt.Errorf("unsupported configuration backend: %s. Use 'yaml' or 'sqlite'", cfgBackend)
}
