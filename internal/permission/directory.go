package permission

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"
)

// DirectoryGate guards a library directory. The filesystem must allow
// read, write and traversal, and the user must agree once per process.
type DirectoryGate struct {
	root     string
	prompter Prompter
	access   func(path string, mode uint32) error

	mu      sync.Mutex
	granted bool
	refused bool
}

// NewDirectoryGate creates a gate for root that asks through prompter.
func NewDirectoryGate(root string, prompter Prompter) *DirectoryGate {
	return &DirectoryGate{root: root, prompter: prompter, access: unix.Access}
}

func (g *DirectoryGate) probe() error {
	return g.access(g.root, unix.R_OK|unix.W_OK|unix.X_OK)
}

func (g *DirectoryGate) Query(ctx context.Context) (State, error) {
	if err := g.probe(); err != nil {
		log.Debug().Err(err).Str("directory", g.root).Msg("Directory not accessible")
		return State{Status: StatusDenied, CanAskAgain: false}, nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case g.granted:
		return State{Status: StatusGranted, CanAskAgain: true}, nil
	case g.refused:
		return State{Status: StatusDenied, CanAskAgain: false}, nil
	default:
		return State{Status: StatusUndetermined, CanAskAgain: true}, nil
	}
}

func (g *DirectoryGate) Request(ctx context.Context) (Status, error) {
	if err := g.probe(); err != nil {
		return StatusDeniedPermanently, nil
	}
	g.mu.Lock()
	granted, refused := g.granted, g.refused
	g.mu.Unlock()
	if granted {
		return StatusGranted, nil
	}
	if refused {
		return StatusDeniedPermanently, nil
	}
	if g.prompter == nil {
		return StatusDenied, nil
	}

	ok, err := g.prompter.Confirm(ctx, "Allow access to your photos",
		fmt.Sprintf("gallery-sweep needs access to %s to show your photos and videos and to move the ones you discard to the trash.", g.root))
	if err != nil {
		return "", err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if ok {
		g.granted = true
		return StatusGranted, nil
	}
	g.refused = true
	return StatusDenied, nil
}

// OpenSettings explains filesystem problems or, when the directory is
// accessible, offers to grant access again after a refusal.
func (g *DirectoryGate) OpenSettings(ctx context.Context) error {
	if g.prompter == nil {
		return errors.New("no prompter configured")
	}
	if err := g.probe(); err != nil {
		return g.prompter.Inform(ctx, "Permission required", g.ManualInstructions())
	}
	ok, err := g.prompter.Confirm(ctx, "Permission required",
		fmt.Sprintf("Access to %s was refused earlier. Allow it now?", g.root))
	if err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if ok {
		g.granted, g.refused = true, false
	}
	return nil
}

func (g *DirectoryGate) ManualInstructions() string {
	return fmt.Sprintf("gallery-sweep cannot read and write %s.\n"+
		"Make sure the directory exists and that your user owns it, for example:\n"+
		"  chmod u+rwx %q", g.root, g.root)
}
