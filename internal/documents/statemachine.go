package documents

// Trigger identifies who may perform a transition.
type Trigger int

const (
	// TriggerUser is a direct status change requested by a user.
	TriggerUser Trigger = iota
	// TriggerConversion is the quotation -> invoice workflow.
	TriggerConversion
	// TriggerVersioning is the proposal versioning workflow.
	TriggerVersioning
	// TriggerClock is the time-based invoice overdue transition.
	TriggerClock
)

type edge struct {
	from Status
	to   Status
}

var machines = map[Kind]map[edge]Trigger{
	KindQuotation: {
		{StatusPending, StatusApproved}:   TriggerUser,
		{StatusPending, StatusRejected}:   TriggerUser,
		{StatusApproved, StatusPending}:   TriggerUser,
		{StatusApproved, StatusRejected}:  TriggerUser,
		{StatusRejected, StatusPending}:   TriggerUser,
		{StatusRejected, StatusApproved}:  TriggerUser,
		{StatusApproved, StatusConverted}: TriggerConversion,
	},
	KindProposal: {
		{StatusDraft, StatusSent}:       TriggerUser,
		{StatusSent, StatusAccepted}:    TriggerUser,
		{StatusSent, StatusRejected}:    TriggerUser,
		{StatusSent, StatusRevised}:     TriggerVersioning,
		{StatusAccepted, StatusRevised}: TriggerVersioning,
		{StatusRejected, StatusRevised}: TriggerVersioning,
	},
	KindInvoice: {
		{StatusDraft, StatusSent}:        TriggerUser,
		{StatusSent, StatusPaid}:         TriggerUser,
		{StatusSent, StatusCancelled}:    TriggerUser,
		{StatusSent, StatusOverdue}:      TriggerClock,
		{StatusOverdue, StatusPaid}:      TriggerUser,
		{StatusOverdue, StatusCancelled}: TriggerUser,
	},
}

var initialStatus = map[Kind]Status{
	KindQuotation: StatusPending,
	KindProposal:  StatusDraft,
	KindInvoice:   StatusDraft,
}

// editable lists the statuses in which content (client, items, amounts,
// narrative) may still be replaced.
var editable = map[Kind][]Status{
	KindQuotation: {StatusPending, StatusRejected},
	KindProposal:  {StatusDraft},
	KindInvoice:   {StatusDraft},
}

var terminal = map[Kind][]Status{
	KindQuotation: {StatusConverted},
	KindProposal:  {StatusRevised},
	KindInvoice:   {StatusPaid, StatusCancelled},
}

// InitialStatus returns the status new documents of kind start in.
func InitialStatus(kind Kind) Status {
	return initialStatus[kind]
}

// CheckTransition validates moving a document of kind from -> to by trigger.
func CheckTransition(kind Kind, from, to Status, trigger Trigger) error {
	allowed, ok := machines[kind][edge{from, to}]
	if !ok || allowed != trigger {
		return &TransitionError{Kind: kind, From: from, To: to}
	}
	return nil
}

// IsTerminal reports whether status admits no further change.
func IsTerminal(kind Kind, status Status) bool {
	for _, s := range terminal[kind] {
		if s == status {
			return true
		}
	}
	return false
}

// IsEditable reports whether content edits are permitted in status.
func IsEditable(kind Kind, status Status) bool {
	for _, s := range editable[kind] {
		if s == status {
			return true
		}
	}
	return false
}

// Statuses returns every status known for kind, in lifecycle order.
func Statuses(kind Kind) []Status {
	switch kind {
	case KindQuotation:
		return []Status{StatusPending, StatusApproved, StatusRejected, StatusConverted}
	case KindProposal:
		return []Status{StatusDraft, StatusSent, StatusAccepted, StatusRejected, StatusRevised}
	case KindInvoice:
		return []Status{StatusDraft, StatusSent, StatusPaid, StatusOverdue, StatusCancelled}
	}
	return nil
}

// ParseStatus validates s against the statuses of kind.
func ParseStatus(kind Kind, s string) (Status, error) {
	for _, st := range Statuses(kind) {
		if string(st) == s {
			return st, nil
		}
	}
	return "", newValidationError("status", "unknown "+string(kind)+" status "+s)
}
