package model

import "time"

type ReadAction string

const (
	ActionOpened    ReadAction = "opened"
	ActionRead      ReadAction = "read"
	ActionStarred   ReadAction = "starred"
	ActionDismissed ReadAction = "dismissed"
)

// Validate checks if the action is valid
func (a ReadAction) Validate() error {
	switch a {
	case ActionOpened, ActionRead, ActionStarred, ActionDismissed:
		return nil
	default:
		return ErrInvalidAction
	}
}

// strength orders actions for state reduction. A stronger action wins over
// a weaker one regardless of order in the log.
func (a ReadAction) strength() int {
	switch a {
	case ActionStarred:
		return 4
	case ActionRead:
		return 3
	case ActionOpened:
		return 2
	case ActionDismissed:
		return 1
	default:
		return 0
	}
}

// ReadingEvent is one entry of the append-only reading history log.
type ReadingEvent struct {
	ArticleID ArticleID
	Action    ReadAction
	At        time.Time
	Duration  time.Duration
}

// ReadState is the reduced per-article state derived from the event log.
type ReadState string

const (
	StateNone      ReadState = "none"
	StateOpened    ReadState = "opened"
	StateRead      ReadState = "read"
	StateStarred   ReadState = "starred"
	StateDismissed ReadState = "dismissed"
)

// Read reports whether the state counts as read history for discovery.
func (s ReadState) Read() bool {
	return s == StateRead || s == StateStarred
}

// ReduceEvents derives an article's current state from its event sequence.
// The strongest action wins (starred > read > opened > dismissed); equal
// strength is broken by the most recent timestamp. An empty sequence
// reduces to StateNone.
func ReduceEvents(events []ReadingEvent) ReadState {
	var winner *ReadingEvent
	for i := range events {
		ev := &events[i]
		if winner == nil {
			winner = ev
			continue
		}
		ws, es := winner.Action.strength(), ev.Action.strength()
		if es > ws || (es == ws && ev.At.After(winner.At)) {
			winner = ev
		}
	}
	if winner == nil {
		return StateNone
	}
	switch winner.Action {
	case ActionStarred:
		return StateStarred
	case ActionRead:
		return StateRead
	case ActionOpened:
		return StateOpened
	case ActionDismissed:
		return StateDismissed
	}
	return StateNone
}

// ReduceEventLog groups a full event log by article and reduces each
// article's sequence.
func ReduceEventLog(events []ReadingEvent) map[ArticleID]ReadState {
	byArticle := map[ArticleID][]ReadingEvent{}
	for _, ev := range events {
		byArticle[ev.ArticleID] = append(byArticle[ev.ArticleID], ev)
	}
	states := make(map[ArticleID]ReadState, len(byArticle))
	for id, evs := range byArticle {
		states[id] = ReduceEvents(evs)
	}
	return states
}
