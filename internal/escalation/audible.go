package escalation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

const bell = "\a"

// ToneNotifier rings the terminal bell and, when a player command is set,
// pipes the rendered tone to it as a WAV file. Playback is asynchronous so the
// poll loop is never held for the tone's duration.
type ToneNotifier struct {
	Tone       Tone
	SampleRate int
	Out        io.Writer
	Player     []string

	wg sync.WaitGroup
}

func (*ToneNotifier) Name() string { return "tone" }

func (n *ToneNotifier) Notify(ctx context.Context, ev Event) error {
	if n.Out != nil {
		if _, err := io.WriteString(n.Out, bell); err != nil {
			return fmt.Errorf("error ringing bell: %w", err)
		}
	}
	if len(n.Player) == 0 {
		return nil
	}

	rate := n.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}
	var wav bytes.Buffer
	if err := n.Tone.WriteWAV(&wav, rate); err != nil {
		return fmt.Errorf("error rendering tone: %w", err)
	}

	cmd := exec.Command(n.Player[0], n.Player[1:]...)
	cmd.Stdin = &wav
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("error starting player: %w", err)
	}

	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := cmd.Wait(); err != nil {
			slog.Warn("tone player exited with error", "player", n.Player[0], "error", err)
		}
	}()
	return nil
}

// Wait blocks until every started playback has finished.
func (n *ToneNotifier) Wait() {
	n.wg.Wait()
}
