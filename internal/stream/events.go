package stream

import "fmt"

// EventKind tags a transcript event delivered by the realtime session.
type EventKind int

const (
	KindSessionBegins EventKind = iota
	KindPartial
	KindFinal
	KindClosed
	KindError
)

func (k EventKind) String() string {
	switch k {
	case KindSessionBegins:
		return "session-begins"
	case KindPartial:
		return "partial"
	case KindFinal:
		return "final"
	case KindClosed:
		return "closed"
	case KindError:
		return "error"
	default:
		return fmt.Sprintf("event-kind(%d)", int(k))
	}
}

// Event is one entry in the ordered transcript event sequence. Text is set
// for partial and final transcripts, Err only for KindError.
type Event struct {
	Kind      EventKind
	Text      string
	SessionID string
	Err       error
}
