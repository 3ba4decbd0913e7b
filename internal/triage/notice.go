package triage

import "github.com/rs/zerolog/log"

// Level classifies a Notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is a user-facing message produced by a store operation.
type Notice struct {
	Level   Level
	Title   string
	Message string
}

// Notifier receives notices. Implementations must not call back into the
// store synchronously with a blocking operation.
type Notifier interface {
	Notify(n Notice)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Notice)

func (f NotifierFunc) Notify(n Notice) { f(n) }

// NopNotifier discards notices.
type NopNotifier struct{}

func (NopNotifier) Notify(Notice) {}

// LogNotifier writes notices to the global zerolog logger.
type LogNotifier struct{}

func (LogNotifier) Notify(n Notice) {
	ev := log.Info()
	if n.Level == LevelError {
		ev = log.Error()
	}
	ev.Str("title", n.Title).Msg(n.Message)
}

// Notice texts shown to the user.
const (
	titleError         = "Error"
	titleNothingMarked = "No photos marked"
	titleDeleted       = "Photos deleted"
	msgLoadFailed      = "Could not load the gallery"
	msgNothingMarked   = "There are no photos marked for discard"
	msgDeleteRefused   = "Could not delete the photos"
	msgDeleteFailed    = "An error occurred while deleting the photos"
	msgDeletedTemplate = "Deleted %d item(s). They were moved to the trash in case you need them."
	msgPurgedTemplate  = "Deleted %d item(s) permanently."
)
