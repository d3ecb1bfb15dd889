package documents

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckTransitionTriggers(t *testing.T) {
	tests := []struct {
		kind    Kind
		from    Status
		to      Status
		trigger Trigger
		ok      bool
	}{
		{KindQuotation, StatusPending, StatusApproved, TriggerUser, true},
		{KindQuotation, StatusRejected, StatusPending, TriggerUser, true},
		{KindQuotation, StatusApproved, StatusConverted, TriggerUser, false},
		{KindQuotation, StatusApproved, StatusConverted, TriggerConversion, true},
		{KindQuotation, StatusPending, StatusConverted, TriggerConversion, false},
		{KindQuotation, StatusConverted, StatusPending, TriggerUser, false},
		{KindQuotation, StatusPending, StatusPending, TriggerUser, false},
		{KindProposal, StatusDraft, StatusSent, TriggerUser, true},
		{KindProposal, StatusDraft, StatusAccepted, TriggerUser, false},
		{KindProposal, StatusAccepted, StatusRevised, TriggerUser, false},
		{KindProposal, StatusAccepted, StatusRevised, TriggerVersioning, true},
		{KindProposal, StatusRevised, StatusRevised, TriggerVersioning, false},
		{KindProposal, StatusDraft, StatusRevised, TriggerVersioning, false},
		{KindInvoice, StatusSent, StatusOverdue, TriggerUser, false},
		{KindInvoice, StatusSent, StatusOverdue, TriggerClock, true},
		{KindInvoice, StatusOverdue, StatusPaid, TriggerUser, true},
		{KindInvoice, StatusPaid, StatusSent, TriggerUser, false},
		{KindInvoice, StatusDraft, StatusPaid, TriggerUser, false},
	}

	for _, tt := range tests {
		err := CheckTransition(tt.kind, tt.from, tt.to, tt.trigger)
		if tt.ok {
			assert.NoError(t, err, "%s %s -> %s", tt.kind, tt.from, tt.to)
			continue
		}
		var terr *TransitionError
		if assert.ErrorAs(t, err, &terr, "%s %s -> %s", tt.kind, tt.from, tt.to) {
			assert.Equal(t, tt.from, terr.From)
			assert.Equal(t, tt.to, terr.To)
			assert.ErrorIs(t, err, ErrValidation)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for kind, statuses := range terminal {
		for _, s := range statuses {
			assert.True(t, IsTerminal(kind, s))
			assert.False(t, IsEditable(kind, s))
			for e := range machines[kind] {
				assert.NotEqual(t, s, e.from, "%s %s must be terminal", kind, s)
			}
		}
	}
}

func TestTransitionErrorMessage(t *testing.T) {
	err := CheckTransition(KindInvoice, StatusPaid, StatusDraft, TriggerUser)
	require.Error(t, err)
	assert.Equal(t, "illegal invoice transition paid -> draft", err.Error())
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(KindProposal, "accepted")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, s)

	_, err = ParseStatus(KindQuotation, "accepted")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEffectiveInvoiceStatus(t *testing.T) {
	now := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	assert.Equal(t, StatusOverdue, EffectiveInvoiceStatus(StatusSent, &past, now))
	assert.Equal(t, StatusSent, EffectiveInvoiceStatus(StatusSent, &future, now))
	assert.Equal(t, StatusSent, EffectiveInvoiceStatus(StatusSent, nil, now))
	assert.Equal(t, StatusPaid, EffectiveInvoiceStatus(StatusPaid, &past, now))
	assert.Equal(t, StatusDraft, EffectiveInvoiceStatus(StatusDraft, &past, now))
}
