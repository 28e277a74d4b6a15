package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/akashrathod3565/Vendor-Automation-Application/internal/credential"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/logging"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/model"
	"github.com/akashrathod3565/Vendor-Automation-Application/internal/service"
)

func main() {
	_ = godotenv.Load()

	command := "tui"
	args := os.Args[1:]
	if len(args) > 0 && len(args[0]) > 0 && args[0][0] != '-' {
		command = args[0]
		args = args[1:]
	}

	var err error
	switch command {
	case "tui":
		err = handleTUI(args)
	case "serve":
		err = handleServe(args)
	case "fetch":
		err = handleFetch(args)
	case "send":
		err = handleSend(args)
	case "history":
		err = handleHistory(args)
	case "credentials":
		err = handleCredentials(args)
	case "open":
		err = handleOpen(args)
	case "init":
		err = handleInit(args)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`Vendor Automation

Usage:
  vendorauto [command] [options]

Commands:
  tui           Interactive console with scheduled fetches (default)
  serve         Run scheduled fetches headless, optionally exposing /metrics
  fetch         File vendor mail from the inbox once
  send          Create RFQ drafts (or send) for every vendor once
  history       Show recent activity from the run history
  credentials   Store the mail password in the system keyring
  open          Open a vendor folder in the file browser
  init          Write a default configuration file
  help          Show this help message

Examples:
  vendorauto init
  vendorauto fetch --manual buyer@example.com
  vendorauto send --subject "RFQ" --body-file body.html --attachment spec.pdf
  vendorauto history --limit 50 --action send_draft
  vendorauto serve --config /etc/vendorauto/config.yaml

Use 'vendorauto <command> --help' for more information about a command.
`)
}

// commonFlags registers the options every command accepts.
func commonFlags(fs *flag.FlagSet) *string {
	return fs.String("config", model.DefaultConfigPath(), "Path to YAML configuration file")
}

// runtime is what a command needs after configuration has been loaded.
type runtime struct {
	cfg     *model.AppConfig
	logger  *slog.Logger
	logFile *os.File
	svc     *service.Service
}

// setup loads configuration, builds the logger, pulls the mail password
// from the keyring when the environment does not supply one and wires
// the service. quietLogs keeps log output off the terminal for the
// console, which owns the screen.
func setup(configPath string, quietLogs bool) (*runtime, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logCfg := cfg.Logging
	if quietLogs && (logCfg.Output == "" || logCfg.Output == "stdout" || logCfg.Output == "stderr") {
		logCfg.Output = "discard"
		if logCfg.File != "" {
			logCfg.Output = "file"
		}
	}
	logger, logFile, err := logging.New(logCfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	if vault, err := credential.Open(); err != nil {
		logger.Warn("system keyring unavailable", "error", err)
	} else if err := vault.FillMailPassword(&cfg.Mail); err != nil {
		logger.Warn("reading mail password from keyring", "error", err)
	}

	svc, err := service.New(cfg, service.Options{Logger: logger})
	if err != nil {
		if logFile != nil {
			_ = logFile.Close()
		}
		return nil, err
	}

	return &runtime{cfg: cfg, logger: logger, logFile: logFile, svc: svc}, nil
}

func (r *runtime) close() {
	if err := r.svc.Close(); err != nil {
		r.logger.Warn("closing history store", "error", err)
	}
	if r.logFile != nil {
		_ = r.logFile.Close()
	}
}
