// Package transport owns the Z-machine interpreter child process. All
// subprocess control flow (pipes, prompt synchronization, timeouts, kill)
// lives here; callers see Start/Send/Terminate and verbatim game text.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gruebot/gruebot/internal/config"
)

// Sentinel errors callers match with errors.Is.
var (
	ErrStartTimeout  = errors.New("interpreter produced no prompt before the start timeout")
	ErrTurnTimeout   = errors.New("interpreter produced no prompt before the turn timeout")
	ErrProcessExited = errors.New("interpreter process exited")
	ErrNoSave        = errors.New("no save file found")
)

// chunk is one stdout read handed from the reader goroutine to Send/Start.
type chunk struct {
	data string
	err  error
}

// Transport runs one interpreter process and synchronizes on its turn
// prompt. Reads are prompt-synchronized: every call drains output until the
// prompt rune appears at the start of the final line, so callers always get
// exactly one turn's worth of text.
type Transport struct {
	interpreter string
	gameFile    string
	promptRune  string
	startWait   time.Duration
	turnWait    time.Duration
	verbose     bool

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	chunks chan chunk

	mu     sync.Mutex
	killed bool
}

// New builds a transport from the resolved config. Nothing is launched
// until Start.
func New(cfg *config.Config, profile *config.GameProfile) *Transport {
	prompt := ">"
	if profile != nil && profile.PromptRune != "" {
		prompt = profile.PromptRune
	}
	return &Transport{
		interpreter: cfg.InterpreterPath,
		gameFile:    cfg.GameFile,
		promptRune:  prompt,
		startWait:   cfg.StartTimeout,
		turnWait:    cfg.TurnTimeout,
		verbose:     cfg.Verbose,
	}
}

// Start launches the interpreter and returns its opening text (banner plus
// first room description), trimmed.
func (t *Transport) Start(ctx context.Context) (string, error) {
	cmd := exec.Command(t.interpreter, t.gameFile)
	// New process group so Terminate can kill the interpreter and anything
	// it forked with one signal.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return "", fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("failed to launch %s: %w", t.interpreter, err)
	}

	t.cmd = cmd
	t.stdin = stdin
	t.chunks = make(chan chunk, 16)

	go t.pump(stdout)

	opening, err := t.readUntilPrompt(ctx, t.startWait)
	if err != nil {
		t.Terminate()
		if errors.Is(err, ErrTurnTimeout) {
			return "", fmt.Errorf("%w (interpreter %s, game %s)", ErrStartTimeout, t.interpreter, t.gameFile)
		}
		return "", err
	}

	t.debugf("interpreter up, pid %d", cmd.Process.Pid)
	return opening, nil
}

// Send writes one command and returns everything the game printed before
// the next prompt, trimmed.
func (t *Transport) Send(ctx context.Context, command string) (string, error) {
	if t.cmd == nil {
		return "", ErrProcessExited
	}
	if _, err := io.WriteString(t.stdin, command+"\n"); err != nil {
		return "", fmt.Errorf("%w: %v", ErrProcessExited, err)
	}
	t.debugf("sent %q", command)
	return t.readUntilPrompt(ctx, t.turnWait)
}

// Terminate kills the interpreter's process group and reaps it. Safe to
// call more than once and on a transport that never started.
func (t *Transport) Terminate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cmd == nil || t.killed {
		return
	}
	t.killed = true

	if t.stdin != nil {
		t.stdin.Close()
	}
	if t.cmd.Process != nil {
		syscall.Kill(-t.cmd.Process.Pid, syscall.SIGKILL)
	}
	t.cmd.Wait()
	t.debugf("interpreter terminated")
}

// pump moves stdout bytes onto the chunk channel until the pipe closes.
func (t *Transport) pump(stdout io.Reader) {
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			t.chunks <- chunk{data: string(buf[:n])}
		}
		if err != nil {
			t.chunks <- chunk{err: err}
			close(t.chunks)
			return
		}
	}
}

// stopFunc inspects the accumulated buffer and reports whether a complete
// reply has arrived, returning the text to hand back when it has.
type stopFunc func(buf string) (bool, string)

// readUntilPrompt accumulates chunks until the last line of the buffer
// starts with the prompt rune, then returns the buffer with the prompt
// stripped. The deadline bounds the whole accumulation, not each read.
func (t *Transport) readUntilPrompt(ctx context.Context, wait time.Duration) (string, error) {
	return t.readUntil(ctx, wait, func(buf string) (bool, string) {
		return promptReached(buf, t.promptRune)
	})
}

func (t *Transport) readUntil(ctx context.Context, wait time.Duration, stop stopFunc) (string, error) {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	var sb strings.Builder
	for {
		if done, out := stop(sb.String()); done {
			return out, nil
		}
		select {
		case c, ok := <-t.chunks:
			if !ok || c.err != nil {
				// Whatever arrived before EOF is still worth returning.
				if done, out := stop(sb.String()); done {
					return out, nil
				}
				return "", fmt.Errorf("%w while waiting for prompt", ErrProcessExited)
			}
			sb.WriteString(c.data)
		case <-deadline.C:
			return "", fmt.Errorf("%w after %s", ErrTurnTimeout, wait)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// promptReached reports whether buf ends at a turn prompt and, if so,
// returns the text before it with outer whitespace trimmed.
func promptReached(buf, prompt string) (bool, string) {
	idx := strings.LastIndex(buf, "\n")
	last := buf
	if idx >= 0 {
		last = buf[idx+1:]
	}
	if !strings.HasPrefix(strings.TrimLeft(last, " "), prompt) {
		return false, ""
	}
	if idx < 0 {
		return true, ""
	}
	return true, strings.TrimSpace(buf[:idx])
}

func (t *Transport) debugf(format string, args ...any) {
	if t.verbose {
		log.Printf("transport: "+format, args...)
	}
}
