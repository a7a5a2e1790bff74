// Package main provides autobyteus-memory, an operator tool for inspecting
// and maintaining an agent's persisted memory directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/AutoByteus/autobyteus-sub006/pkg/agent/memory"
	"github.com/AutoByteus/autobyteus-sub006/pkg/config"
	"github.com/AutoByteus/autobyteus-sub006/pkg/logging"
)

const version = "0.1.0"

var errUsage = errors.New("usage")

// CLIConfig holds the flags shared by every command.
type CLIConfig struct {
	ConfigFile  string
	Dir         string
	Agent       string
	NoColor     bool
	ShowVersion bool
}

// cliEnv is what a command runs against.
type cliEnv struct {
	cfg     *config.Config
	baseDir string
	agentID string
	out     *printer
	errOut  io.Writer
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *cliEnv, args []string) error
}

var commands = []command{
	{name: "inspect", summary: "Print raw, episodic or semantic records", run: runInspect},
	{name: "archive", summary: "Print raw traces moved to the archive by compaction", run: runArchive},
	{name: "compact", summary: "Compact every turn outside the raw tail", run: runCompact},
	{name: "stats", summary: "Summarize record counts per agent", run: runStats},
	{name: "config", summary: "Print or write the effective configuration", run: runConfig},
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, stopping...")
		cancel()
	}()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
		os.Exit(2)
	}
	if err != nil {
		log.Printf("autobyteus-memory: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cli := &CLIConfig{}
	fs := flag.NewFlagSet("autobyteus-memory", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&cli.ConfigFile, "config", "", "Path to configuration file (YAML)")
	fs.StringVar(&cli.Dir, "dir", "", "Memory base directory (overrides $"+config.EnvMemoryDir+" and the config file)")
	fs.StringVar(&cli.Agent, "agent", "", "Agent id (defaults to memory.agent_id from the config)")
	fs.BoolVar(&cli.NoColor, "no-color", os.Getenv("NO_COLOR") != "", "Disable styled output")
	fs.BoolVar(&cli.ShowVersion, "version", false, "Show version and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "autobyteus-memory - inspect and maintain agent memory\n\n")
		fmt.Fprintf(stderr, "Usage: autobyteus-memory [options] <command> [command options]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		for _, c := range commands {
			fmt.Fprintf(stderr, "  %-8s %s\n", c.name, c.summary)
		}
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  autobyteus-memory -agent researcher inspect -turns 'turn_00{01,02}'\n")
		fmt.Fprintf(stderr, "  autobyteus-memory -config memory.yaml compact -extractive\n")
		fmt.Fprintf(stderr, "  autobyteus-memory stats -all\n")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if cli.ShowVersion {
		fmt.Fprintf(stdout, "autobyteus-memory v%s\n", version)
		if path, err := logging.SessionLogPath(); err == nil {
			fmt.Fprintf(stdout, "debug log: %s\n", path)
		}
		return nil
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	env := &cliEnv{
		cfg:     cfg,
		baseDir: cfg.MemoryDir(cli.Dir),
		agentID: cfg.Memory.AgentID,
		out:     newPrinter(stdout, !cli.NoColor),
		errOut:  stderr,
	}
	if cli.Agent != "" {
		env.agentID = cli.Agent
	}

	name := fs.Arg(0)
	for _, c := range commands {
		if c.name == name {
			return c.run(ctx, env, fs.Args()[1:])
		}
	}
	fs.Usage()
	return fmt.Errorf("unknown command %q: %w", name, errUsage)
}

// loadConfig loads the config file when one is given, otherwise defaults.
func loadConfig(cli *CLIConfig) (*config.Config, error) {
	if cli.ConfigFile == "" {
		return config.Default(), nil
	}
	return config.Load(cli.ConfigFile)
}

// openStore opens an existing agent directory. Commands never create one.
func (env *cliEnv) openStore() (*memory.FileStore, error) {
	if err := memory.ValidateAgentID(env.agentID); err != nil {
		return nil, err
	}
	info, err := os.Stat(env.agentDir())
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("no memory for agent %q under %s", env.agentID, env.baseDir)
	}
	return memory.NewFileStore(env.baseDir, env.agentID)
}

func (env *cliEnv) agentDir() string {
	return filepath.Join(env.baseDir, env.agentID)
}

// newCommandFlags returns a flag set for a command that reports errors
// instead of exiting.
func newCommandFlags(env *cliEnv, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(env.errOut)
	return fs
}
