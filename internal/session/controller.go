// Package session runs the turn loop: command from the agent, response from
// the game, extraction into the knowledge store, periodic checkpoints. The
// loop is strictly sequential; no turn, checkpoint or child-process call
// ever overlaps another.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gruebot/gruebot/internal/agent"
	"github.com/gruebot/gruebot/internal/config"
	"github.com/gruebot/gruebot/internal/extract"
	"github.com/gruebot/gruebot/internal/knowledge"
	"github.com/gruebot/gruebot/internal/transport"
)

// State names the controller's position in the turn cycle.
type State int

const (
	Starting State = iota
	AwaitingCommand
	AwaitingGameResponse
	Ended
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case AwaitingCommand:
		return "awaiting-command"
	case AwaitingGameResponse:
		return "awaiting-game-response"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// checkpointInterval is how many turns pass between autosaves.
const checkpointInterval = 10

// emptyResponsePlaceholder stands in for a blank game reply so the agent
// and the transcript never see an empty turn.
const emptyResponsePlaceholder = "(no response from game)"

// GameTransport is the slice of the transport the controller uses. Tests
// substitute a scripted implementation.
type GameTransport interface {
	Start(ctx context.Context) (string, error)
	Send(ctx context.Context, command string) (string, error)
	SaveGame(ctx context.Context, path string) (string, error)
	RestoreGame(ctx context.Context, path string) (string, error)
	Terminate()
}

// Controller owns the session: turn counter, conversation history and the
// wiring between transport, agent and knowledge store.
type Controller struct {
	cfg        *config.Config
	profile    *config.GameProfile
	transport  GameTransport
	provider   agent.Provider
	store      *knowledge.Store
	transcript *Transcript // optional

	state      State
	turn       int
	history    []agent.Message
	lastOutput string
	processUp  bool
}

// New wires a controller together. transcript may be nil; transcript
// failures are never fatal anyway.
func New(cfg *config.Config, profile *config.GameProfile, tr GameTransport, provider agent.Provider, store *knowledge.Store, transcript *Transcript) *Controller {
	return &Controller{
		cfg:        cfg,
		profile:    profile,
		transport:  tr,
		provider:   provider,
		store:      store,
		transcript: transcript,
		state:      Starting,
	}
}

// State reports where the controller currently is.
func (c *Controller) State() State { return c.state }

// Turn reports the number of completed turns.
func (c *Controller) Turn() int { return c.turn }

// Run plays the session to completion.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.start(ctx); err != nil {
		return err
	}
	defer c.transport.Terminate()

	for c.state != Ended {
		if err := c.playTurn(ctx); err != nil {
			return err
		}
	}

	c.finalCheckpoint(ctx)
	log.Printf("session ended after %d turns in %q", c.turn, c.store.CurrentLocation())
	return nil
}

// start launches the interpreter, optionally restores a prior save and
// loads the knowledge snapshot.
func (c *Controller) start(ctx context.Context) error {
	opening, err := c.transport.Start(ctx)
	if err != nil {
		return fmt.Errorf("failed to start interpreter: %w", err)
	}
	c.processUp = true
	c.lastOutput = opening

	if c.cfg.AssumeRestore {
		look, err := c.transport.RestoreGame(ctx, c.cfg.SaveFile)
		switch {
		case err == nil:
			c.lastOutput = look
			log.Printf("resumed from save %s", c.cfg.SaveFile)
		case errors.Is(err, transport.ErrNoSave):
			c.debugf("no save to resume from, starting fresh")
		default:
			return fmt.Errorf("failed to restore save: %w", err)
		}
	}

	loaded, err := c.store.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("failed to load knowledge snapshot: %w", err)
	}
	if loaded {
		c.debugf("loaded knowledge snapshot: %d locations visited", c.store.VisitedCount())
	}

	// Seed the store with whatever the opening text reveals.
	c.store.Record(extract.Extract(c.lastOutput, "", c.profile), c.turn)

	c.state = AwaitingCommand
	return nil
}

// playTurn advances the state machine by one full turn.
func (c *Controller) playTurn(ctx context.Context) error {
	c.turn++
	c.state = AwaitingCommand

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	command, err := c.provider.NextCommand(reqCtx, c.store.PromptContext(), c.history, c.lastOutput)
	cancel()
	if err != nil {
		// Local providers degrade internally; an error here means the
		// hosted provider cannot answer and the session cannot proceed.
		return fmt.Errorf("provider %s failed on turn %d: %w", c.provider.Name(), c.turn, err)
	}

	honoredQuit := false
	if isQuit(command) {
		if c.quitAllowed() {
			honoredQuit = true
		} else {
			c.debugf("suppressing premature quit %q, playing %s instead", command, agent.FallbackCommand)
			command = agent.FallbackCommand
		}
	}

	c.history = append(c.history,
		agent.Message{Role: agent.RoleUser, Content: agent.UserTurn(c.lastOutput)},
		agent.Message{Role: agent.RoleAssistant, Content: command},
	)

	c.state = AwaitingGameResponse
	response, err := c.transport.Send(ctx, command)
	switch {
	case errors.Is(err, transport.ErrProcessExited):
		c.processUp = false
		c.state = Ended
		c.recordTranscript(ctx, command, response)
		return nil
	case errors.Is(err, transport.ErrTurnTimeout):
		c.debugf("turn %d timed out waiting for the game", c.turn)
		response = ""
	case err != nil:
		return fmt.Errorf("send failed on turn %d: %w", c.turn, err)
	}

	// QUIT and RESTART both make the game ask for confirmation. Answer
	// yes and treat the confirmation's output as this turn's response.
	if (honoredQuit || isRestart(command)) && endsWithQuestion(response) {
		confirm, cerr := c.transport.Send(ctx, "Y")
		switch {
		case cerr == nil:
			response = confirm
		case errors.Is(cerr, transport.ErrProcessExited):
			c.processUp = false
		case errors.Is(cerr, transport.ErrTurnTimeout):
			c.debugf("no output after confirmation on turn %d", c.turn)
		default:
			return fmt.Errorf("confirmation failed on turn %d: %w", c.turn, cerr)
		}
	}

	if strings.TrimSpace(response) == "" {
		response = emptyResponsePlaceholder
	}

	// Play the exchange to the console so a run is watchable.
	log.Printf("turn %d> %s\n%s", c.turn, command, response)

	c.store.Record(extract.Extract(response, command, c.profile), c.turn)
	c.recordTranscript(ctx, command, response)
	c.lastOutput = response

	if honoredQuit || !c.processUp || c.turn >= c.cfg.MaxTurns {
		c.state = Ended
		return nil
	}

	if c.cfg.AutoSave && c.turn%checkpointInterval == 0 {
		c.checkpoint(ctx)
	}

	c.state = AwaitingCommand
	return nil
}

// checkpoint saves the game and the knowledge snapshot. The save's LOOK
// output becomes the next turn's baseline so the agent resumes from a
// clean description.
func (c *Controller) checkpoint(ctx context.Context) {
	look, err := c.transport.SaveGame(ctx, c.cfg.SaveFile)
	if err != nil {
		log.Printf("checkpoint save failed on turn %d: %v", c.turn, err)
	} else if look != "" {
		c.lastOutput = look
	}
	if err := c.store.SaveSnapshot(); err != nil {
		log.Printf("knowledge snapshot failed on turn %d: %v", c.turn, err)
	}
}

// finalCheckpoint runs at session end. The game save is skipped when the
// process is already gone; the knowledge snapshot always gets written.
func (c *Controller) finalCheckpoint(ctx context.Context) {
	if c.cfg.AutoSave && c.processUp {
		if _, err := c.transport.SaveGame(ctx, c.cfg.SaveFile); err != nil {
			log.Printf("final save failed: %v", err)
		}
	}
	if err := c.store.SaveSnapshot(); err != nil {
		log.Printf("final knowledge snapshot failed: %v", err)
	}
}

// quitAllowed implements the quit suppression policy: a quit goes through
// only at the turn budget or after a death signature in the last output.
func (c *Controller) quitAllowed() bool {
	if c.turn >= c.cfg.MaxTurns {
		return true
	}
	return extract.IsDeathSignature(c.lastOutput, c.profile)
}

func (c *Controller) recordTranscript(ctx context.Context, command, response string) {
	if c.transcript == nil {
		return
	}
	if err := c.transcript.RecordTurn(ctx, c.turn, command, response); err != nil {
		c.debugf("transcript write failed: %v", err)
	}
}

func (c *Controller) debugf(format string, args ...any) {
	if c.cfg.Verbose {
		log.Printf("session: "+format, args...)
	}
}

func isQuit(command string) bool {
	upper := strings.ToUpper(strings.TrimSpace(command))
	return upper == "QUIT" || upper == "Q"
}

func isRestart(command string) bool {
	return strings.ToUpper(strings.TrimSpace(command)) == "RESTART"
}

// endsWithQuestion reports whether the reply's last non-empty line is a
// question, the shape of the interpreter's confirmation prompts.
func endsWithQuestion(reply string) bool {
	lines := strings.Split(reply, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return strings.HasSuffix(line, "?")
		}
	}
	return false
}
