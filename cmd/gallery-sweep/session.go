package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/gallery-sweep/internal/cli"
	"github.com/fpang/gallery-sweep/internal/metrics"
	"github.com/fpang/gallery-sweep/internal/prefs"
	"github.com/fpang/gallery-sweep/internal/triage"
)

const instructionsHead = `How to sweep your gallery

  Photos and videos are shown one at a time, newest first.
  Press k to keep an item or d to discard it. Either moves to the next one.
  Use n and p to move without marking.
  Press x to delete everything marked for discard.`

const instructionsTail = `
  Press s for a summary, i to see this again and q to quit.`

// instructions explains the session. Only a library that trashes deleted
// items may promise they can be recovered.
func instructions(recoverable bool) string {
	deletion := `
  Deleted items are removed for good and cannot be recovered.`
	if recoverable {
		deletion = `
  Deleted items are moved to the trash, so nothing is lost until you empty it.`
	}
	return instructionsHead + deletion + instructionsTail
}

const commandHelp = "k keep  d discard  n next  p previous  x delete  r reload  i help  s summary  q quit"

// session is one interactive pass over the library.
type session struct {
	store       *triage.Store
	prefs       prefs.Store
	in          *bufio.Reader
	out         io.Writer
	interactive bool
	showAlways  bool
	recoverable bool

	viewed  map[string]bool
	started time.Time
}

// run shows the onboarding screen, loads the first page and reads commands
// until the user quits or input ends.
func (s *session) run(ctx context.Context) error {
	s.onboard(ctx)

	if err := s.store.LoadPage(ctx, false); err != nil {
		return err
	}

	for {
		s.render()
		if s.interactive {
			fmt.Fprint(s.out, "> ")
		}
		line, err := s.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("read command: %w", err)
		}
		quit := s.handle(ctx, strings.TrimSpace(strings.ToLower(line)))
		if quit || errors.Is(err, io.EOF) {
			s.printSummaryLine()
			return nil
		}
	}
}

// handle runs one command and reports whether the session should end.
// Store failures are already reported through the notifier.
func (s *session) handle(ctx context.Context, cmd string) bool {
	var err error
	switch cmd {
	case "k", "keep":
		err = s.markAndAdvance(ctx, triage.StatusKeep)
	case "d", "discard":
		err = s.markAndAdvance(ctx, triage.StatusDiscard)
	case "n", "next":
		err = s.store.Advance(ctx)
	case "p", "prev", "previous":
		s.store.Retreat()
	case "x", "delete":
		_, err = s.store.DeleteDiscarded(ctx)
	case "r", "reload":
		err = s.store.Reset(ctx)
	case "i", "help", "?":
		fmt.Fprintln(s.out, instructions(s.recoverable))
	case "s", "summary":
		fmt.Fprintln(s.out, summaryTable(s.store.Snapshot()))
	case "q", "quit", "exit":
		return true
	case "":
	default:
		fmt.Fprintln(s.out, commandHelp)
	}
	if err != nil {
		log.Debug().Err(err).Str("command", cmd).Msg("Command failed")
	}
	return false
}

func (s *session) markAndAdvance(ctx context.Context, status triage.Status) error {
	if _, err := s.store.MarkCurrent(status); err != nil {
		return err
	}
	return s.store.Advance(ctx)
}

// onboard shows the instructions unless the user asked not to see them
// again. Only an interactive session can ask that question.
func (s *session) onboard(ctx context.Context) {
	suppressed, err := s.prefs.Load(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load preferences, showing instructions")
	}
	if suppressed && !s.showAlways {
		return
	}
	if !s.interactive && !s.showAlways {
		return
	}

	fmt.Fprintln(s.out, instructions(s.recoverable))
	fmt.Fprintln(s.out)
	if !s.interactive {
		return
	}

	fmt.Fprint(s.out, "Don't show this again? (y/N): ")
	answer, _ := s.in.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer != "y" && answer != "yes" {
		return
	}
	if err := s.prefs.Save(ctx, true); err != nil {
		log.Warn().Err(err).Msg("Failed to save preferences")
		fmt.Fprintln(s.out, "Could not save the preference; the instructions will show next time.")
	}
}

func (s *session) render() {
	snap := s.store.Snapshot()
	if cur, ok := snap.Current(); ok {
		s.viewed[cur.ID] = true
	}
	fmt.Fprint(s.out, renderSnapshot(snap))
}

func (s *session) printSummaryLine() {
	fmt.Fprintf(s.out, "Viewed %d, kept %d, discarded %d in %s\n",
		len(s.viewed), s.store.KeptCount(), s.store.DiscardedCount(),
		cli.FormatElapsed(time.Since(s.started)))
}

// recordSummary flushes the session totals as one EMF document.
func (s *session) recordSummary(rec *metrics.Recorder) {
	rec.Dimension("Operation", "Session").
		Metric("Kept", float64(s.store.KeptCount()), metrics.UnitCount).
		Metric("Discarded", float64(s.store.DiscardedCount()), metrics.UnitCount).
		Metric("Viewed", float64(len(s.viewed)), metrics.UnitCount).
		Since("SessionMs", s.started).
		Flush()
}
