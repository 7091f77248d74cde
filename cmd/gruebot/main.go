package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/gruebot/gruebot/internal/agent"
	"github.com/gruebot/gruebot/internal/config"
	"github.com/gruebot/gruebot/internal/knowledge"
	"github.com/gruebot/gruebot/internal/session"
	"github.com/gruebot/gruebot/internal/transport"
)

func main() {
	// Load .env if it exists; credentials usually live there.
	_ = godotenv.Load()

	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Fatalf("gruebot: %v", err)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gruebot", flag.ExitOnError)
	turns := fs.Int("turns", 50, "maximum number of turns to play")
	verbose := fs.Bool("v", false, "verbose logging")
	noAutosave := fs.Bool("no-autosave", false, "disable periodic game saves")
	saveFile := fs.String("save-file", "", "save file path (default <gamedir>/saves/<game>_autosave.qzl)")
	providerFlag := fs.String("provider", "", "agent provider: anthropic or ollama")
	model := fs.String("model", "", "model name override")
	endpoint := fs.String("endpoint", "", "base URL for the local model server")
	interpreter := fs.String("interpreter", "", "Z-machine interpreter binary (default dfrotz)")
	profilePath := fs.String("profile", "", "game profile YAML for non-default prompt/status conventions")
	restore := fs.Bool("restore", false, "resume from the save file without asking")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: gruebot [flags] <game-file>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return fmt.Errorf("expected exactly one game file argument")
	}

	cfg := config.Defaults()

	// Persisted user config first, then environment, then flags.
	if mgr, err := config.NewManager(); err == nil {
		if persisted, err := mgr.Load(); err == nil {
			persisted.Apply(cfg)
		} else {
			log.Printf("ignoring persisted config: %v", err)
		}
	}
	cfg.ApplyEnv()

	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["provider"] {
		cfg.Provider = strings.ToLower(*providerFlag)
	}
	if set["model"] {
		cfg.Model = *model
	}
	if set["endpoint"] {
		cfg.BaseURL = *endpoint
	}
	if set["interpreter"] {
		cfg.InterpreterPath = *interpreter
	}
	if set["save-file"] {
		cfg.SaveFile = *saveFile
	}
	cfg.GameFile = fs.Arg(0)
	cfg.MaxTurns = *turns
	cfg.Verbose = *verbose
	cfg.AutoSave = !*noAutosave
	cfg.ProfilePath = *profilePath
	cfg.AssumeRestore = *restore

	if err := cfg.Finish(); err != nil {
		return err
	}

	var profile *config.GameProfile
	if cfg.ProfilePath != "" {
		p, err := config.LoadProfile(cfg.ProfilePath)
		if err != nil {
			return fmt.Errorf("failed to load game profile: %w", err)
		}
		profile = p
	}

	if !cfg.AssumeRestore && saveExists(cfg.SaveFile) && stdinIsTerminal() {
		cfg.AssumeRestore = offerRestore(cfg.SaveFile)
	}

	provider, err := agent.New(ctx, cfg)
	if err != nil {
		return err
	}
	log.Printf("playing %s with %s (%s), %d turn budget", cfg.GameFile, provider.Name(), cfg.Model, cfg.MaxTurns)

	store := knowledge.NewStore(cfg.SnapshotPath(), cfg.Verbose)
	tr := transport.New(cfg, profile)

	transcript, err := session.OpenTranscript(ctx, cfg.TranscriptDB, cfg.GameFile)
	if err != nil {
		// Purely observational; play on without it.
		log.Printf("transcript disabled: %v", err)
		transcript = nil
	} else {
		defer transcript.Close()
		if cfg.Verbose {
			log.Printf("transcript session %s in %s", transcript.SessionID(), cfg.TranscriptDB)
		}
	}

	ctrl := session.New(cfg, profile, tr, provider, store, transcript)
	return ctrl.Run(ctx)
}

func saveExists(path string) bool {
	for _, candidate := range []string{path, path + ".qzl"} {
		if _, err := os.Stat(candidate); err == nil {
			return true
		}
	}
	return false
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func offerRestore(path string) bool {
	fmt.Printf("Found save file %s. Resume from it? (y/n) ", path)
	s := bufio.NewScanner(os.Stdin)
	if !s.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(s.Text()))
	return answer == "y" || answer == "yes"
}
