package log

import (
	"context"

	"github.com/coreos/go-systemd/v22/journal"
)

// InitJournalHandler makes the log package print to the journal if stderr is connected to the journal.
// pgsctl runs from provisioning units, where this keeps priorities intact.
func InitJournalHandler(force bool) {
	if !force {
		isJournalStream, err := journal.StderrIsJournalStream()
		if err != nil {
			Warningf(context.Background(), "Error checking if stderr is connected to the journal: %v", err)
			return
		}
		if !isJournalStream {
			return
		}
	}

	SetHandler(func(_ context.Context, level Level, format string, args ...any) {
		_ = journal.Print(mapPriority(level), format, args...)
	})
}

func mapPriority(level Level) journal.Priority {
	switch {
	case level <= DebugLevel:
		return journal.PriDebug
	case level <= InfoLevel:
		return journal.PriInfo
	case level <= NoticeLevel:
		return journal.PriNotice
	case level <= WarnLevel:
		return journal.PriWarning
	case level <= ErrorLevel:
		return journal.PriErr
	}
	return journal.PriCrit
}
