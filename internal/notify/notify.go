// Package notify carries mutation notifications from the stores to whatever
// surface shows them (the CLI prints them; a UI would toast them).
package notify

import "log"

type Notification struct {
	Title  string
	Detail string
	// Old/NewProgress are set on progress-changing updates so the surface
	// can show the delta.
	OldProgress *int
	NewProgress *int
}

type Notifier interface {
	Notify(n Notification)
}

// Discard drops notifications.
type Discard struct{}

func (Discard) Notify(Notification) {}

// Logger writes notifications to a standard logger.
type Logger struct {
	Log *log.Logger
}

func (l Logger) Notify(n Notification) {
	out := l.Log
	if out == nil {
		out = log.Default()
	}
	if n.Detail != "" {
		out.Printf("%s: %s", n.Title, n.Detail)
		return
	}
	out.Print(n.Title)
}
