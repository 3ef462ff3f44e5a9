package model

import "github.com/shopspring/decimal"

// EventKind names the variant of an interaction event.
type EventKind string

const (
	KindReferral EventKind = "referral"
	KindOneToOne EventKind = "one_to_one"
	KindTYFCB    EventKind = "tyfcb"
)

// Event is a resolved interaction event. The set of implementations is
// closed: Referral, OneToOne and TYFCB.
type Event interface {
	Kind() EventKind
	EventPeriod() Period
	// Participants returns every member the event references.
	Participants() []MemberKey
	sealed()
}

// Referral is a referral passed from Giver to Receiver.
type Referral struct {
	Giver    MemberKey `json:"giver"`
	Receiver MemberKey `json:"receiver"`
	Period   Period    `json:"period"`
}

func (Referral) Kind() EventKind { return KindReferral }
func (e Referral) EventPeriod() Period { return e.Period }
func (e Referral) Participants() []MemberKey { return []MemberKey{e.Giver, e.Receiver} }
func (Referral) sealed() {}

// OneToOne is a one-to-one meeting between A and B. It is undirected.
type OneToOne struct {
	A      MemberKey `json:"a"`
	B      MemberKey `json:"b"`
	Period Period    `json:"period"`
}

func (OneToOne) Kind() EventKind { return KindOneToOne }
func (e OneToOne) EventPeriod() Period { return e.Period }
func (e OneToOne) Participants() []MemberKey { return []MemberKey{e.A, e.B} }
func (OneToOne) sealed() {}

// TYFCB ("thank you for closed business") attributes a closed amount to
// Receiver. Giver is set only for inside-chapter business; outside slips
// leave it empty whatever their From column holds.
type TYFCB struct {
	Receiver MemberKey       `json:"receiver"`
	Giver    MemberKey       `json:"giver,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Inside   bool            `json:"inside"`
	Period   Period          `json:"period"`
}

func (TYFCB) Kind() EventKind { return KindTYFCB }
func (e TYFCB) EventPeriod() Period { return e.Period }
func (e TYFCB) Participants() []MemberKey {
	if e.Giver == "" {
		return []MemberKey{e.Receiver}
	}
	return []MemberKey{e.Giver, e.Receiver}
}
func (TYFCB) sealed() {}

// RawEvent is an event as delivered by an event source: attributed to raw
// name strings and not yet resolved to members.
type RawEvent struct {
	Kind   EventKind `json:"kind"`
	From   string    `json:"from"`             // giver, or first meeting party
	To     string    `json:"to"`               // receiver, or second meeting party
	Amount string    `json:"amount,omitempty"` // TYFCB only, unparsed
	Inside bool      `json:"inside,omitempty"` // TYFCB only
	Period Period    `json:"period"`
	Line   int       `json:"line,omitempty"` // source row, for error messages
}

// FilterPeriod returns the events that belong to period.
func FilterPeriod(events []Event, period Period) []Event {
	out := make([]Event, 0, len(events))
	for _, e := range events {
		if e.EventPeriod() == period {
			out = append(out, e)
		}
	}
	return out
}
