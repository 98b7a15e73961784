package tracker

import "fmt"

// Reaction is the client's current reaction to a post.
type Reaction int

const (
	Neutral Reaction = iota
	Liked
	Disliked
)

func (r Reaction) String() string {
	switch r {
	case Neutral:
		return "neutral"
	case Liked:
		return "liked"
	case Disliked:
		return "disliked"
	default:
		return fmt.Sprintf("reaction(%d)", int(r))
	}
}

// Event is a user-triggered reaction change.
type Event int

const (
	EventLike Event = iota
	EventDislike
)

func (e Event) String() string {
	switch e {
	case EventLike:
		return "like"
	case EventDislike:
		return "dislike"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

type transitionKey struct {
	from  Reaction
	event Event
}

// transition describes what an event does from a given reaction. When call
// is false the event is a no-op and no request is sent.
type transition struct {
	to   Reaction
	call bool
}

var transitions = map[transitionKey]transition{
	{Neutral, EventLike}:     {to: Liked, call: true},
	{Disliked, EventLike}:    {to: Liked, call: true},
	{Liked, EventLike}:       {to: Liked, call: false},
	{Neutral, EventDislike}:  {to: Disliked, call: true},
	{Liked, EventDislike}:    {to: Disliked, call: true},
	{Disliked, EventDislike}: {to: Disliked, call: false},
}

func next(from Reaction, event Event) (transition, error) {
	tr, ok := transitions[transitionKey{from: from, event: event}]
	if !ok {
		return transition{}, fmt.Errorf("tracker: no transition for %s on %s", event, from)
	}
	return tr, nil
}
