package transport

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// saveVerifyWait bounds how long SaveGame waits for the save file to show
// up on disk after the interpreter reports success.
const saveVerifyWait = 3 * time.Second

// SaveGame drives the interpreter's SAVE dialog: SAVE, answer the filename
// prompt with path, answer an overwrite question with "y" if one comes, then
// verify the file landed on disk and refresh the scene with LOOK. The LOOK
// output is returned so the caller can use it as the next turn's baseline.
func (t *Transport) SaveGame(ctx context.Context, path string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create save directory: %w", err)
	}

	// Watch for the file-create event before starting the dialog so the
	// event cannot slip past between write and watch.
	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		if werr := watcher.Add(filepath.Dir(path)); werr != nil {
			watcher.Close()
			watcher = nil
		}
	} else {
		watcher = nil
	}
	if watcher != nil {
		defer watcher.Close()
	}

	if err := t.runFileDialog(ctx, "SAVE", path); err != nil {
		return "", fmt.Errorf("save dialog failed: %w", err)
	}

	if err := t.awaitSaveFile(watcher, path); err != nil {
		return "", err
	}
	t.debugf("saved game to %s", path)

	look, err := t.Send(ctx, "LOOK")
	if err != nil {
		return "", fmt.Errorf("post-save LOOK failed: %w", err)
	}
	return look, nil
}

// RestoreGame drives the RESTORE dialog against an existing save file and
// returns a fresh LOOK of the restored scene. Returns ErrNoSave when neither
// the bare path nor the interpreter-suffixed variant exists.
func (t *Transport) RestoreGame(ctx context.Context, path string) (string, error) {
	onDisk, ok := existingSavePath(path)
	if !ok {
		return "", fmt.Errorf("%w at %s", ErrNoSave, path)
	}

	if err := t.runFileDialog(ctx, "RESTORE", onDisk); err != nil {
		return "", fmt.Errorf("restore dialog failed: %w", err)
	}
	t.debugf("restored game from %s", onDisk)

	look, err := t.Send(ctx, "LOOK")
	if err != nil {
		return "", fmt.Errorf("post-restore LOOK failed: %w", err)
	}
	return look, nil
}

// runFileDialog sends verb, answers the filename prompt with path, and
// answers an overwrite/confirmation question with "y" when one appears.
func (t *Transport) runFileDialog(ctx context.Context, verb, path string) error {
	if t.cmd == nil {
		return ErrProcessExited
	}

	if err := t.writeLine(verb); err != nil {
		return err
	}
	if _, err := t.readUntil(ctx, t.turnWait, filenamePromptReached); err != nil {
		return fmt.Errorf("no filename prompt after %s: %w", verb, err)
	}

	if err := t.writeLine(path); err != nil {
		return err
	}

	// The reply is either a confirmation question (overwrite an existing
	// file) or goes straight back to the turn prompt.
	reply, err := t.readUntil(ctx, t.turnWait, func(buf string) (bool, string) {
		if done, out := promptReached(buf, t.promptRune); done {
			return true, out
		}
		return questionReached(buf)
	})
	if err != nil {
		return fmt.Errorf("no reply after filename: %w", err)
	}

	if isQuestion(reply) {
		if err := t.writeLine("y"); err != nil {
			return err
		}
		if _, err := t.readUntilPrompt(ctx, t.turnWait); err != nil {
			return fmt.Errorf("no prompt after confirmation: %w", err)
		}
	}
	return nil
}

func (t *Transport) writeLine(s string) error {
	if _, err := fmt.Fprintf(t.stdin, "%s\n", s); err != nil {
		return fmt.Errorf("%w: %v", ErrProcessExited, err)
	}
	return nil
}

// awaitSaveFile confirms the save landed on disk, preferring the watcher's
// create event and falling back to polling stat when no watcher is
// available.
func (t *Transport) awaitSaveFile(watcher *fsnotify.Watcher, path string) error {
	if _, ok := existingSavePath(path); ok {
		return nil
	}
	if watcher == nil {
		return t.pollSaveFile(path)
	}

	deadline := time.NewTimer(saveVerifyWait)
	defer deadline.Stop()
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return t.pollSaveFile(path)
			}
			if ev.Has(fsnotify.Create) && matchesSavePath(ev.Name, path) {
				return nil
			}
		case <-watcher.Errors:
			return t.pollSaveFile(path)
		case <-deadline.C:
			// One last stat in case the event raced the timer.
			if _, ok := existingSavePath(path); ok {
				return nil
			}
			return fmt.Errorf("save file never appeared at %s", path)
		}
	}
}

func (t *Transport) pollSaveFile(path string) error {
	deadline := time.Now().Add(saveVerifyWait)
	for time.Now().Before(deadline) {
		if _, ok := existingSavePath(path); ok {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("save file never appeared at %s", path)
}

// existingSavePath resolves path against the interpreter's habit of
// appending its own extension, returning whichever variant exists.
func existingSavePath(path string) (string, bool) {
	for _, candidate := range []string{path, path + ".qzl"} {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false
		}
	}
	return "", false
}

func matchesSavePath(name, path string) bool {
	return name == path || name == path+".qzl"
}

// filenamePromptReached detects the interpreter asking for a filename: the
// last non-empty line ends with ':' or ']'.
func filenamePromptReached(buf string) (bool, string) {
	line := lastNonEmptyLine(buf)
	if line == "" {
		return false, ""
	}
	if strings.HasSuffix(line, ":") || strings.HasSuffix(line, "]") {
		return true, strings.TrimSpace(buf)
	}
	return false, ""
}

// questionReached detects a yes/no question such as an overwrite
// confirmation.
func questionReached(buf string) (bool, string) {
	if isQuestion(strings.TrimSpace(buf)) {
		return true, strings.TrimSpace(buf)
	}
	return false, ""
}

func isQuestion(reply string) bool {
	line := lastNonEmptyLine(reply)
	return strings.HasSuffix(line, "?")
}

func lastNonEmptyLine(buf string) string {
	lines := strings.Split(buf, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
