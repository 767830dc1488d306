package orderitem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusPending, StatusAccepted}:   true,
		{StatusPending, StatusRejected}:   true,
		{StatusAccepted, StatusCompleted}: true,
		{StatusAccepted, StatusRejected}:  true,
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			assert.Equal(t, allowed[[2]Status{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	for _, s := range AllStatuses {
		assert.Equal(t, s.IsTerminal(), len(Transitions(s)) == 0, s.String())
	}
}

func TestTransitionsReturnsCopy(t *testing.T) {
	next := Transitions(StatusPending)
	next[0] = StatusCompleted

	assert.Equal(t, []Status{StatusAccepted, StatusRejected}, Transitions(StatusPending))
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus(" Accepted ")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, s)

	_, err = ParseStatus("shipped")
	assert.ErrorIs(t, err, ErrInvalidStatus)
	assert.False(t, Status("updating").Valid())
}
