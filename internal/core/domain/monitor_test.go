package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonitorStateCardSeated(t *testing.T) {
	assert.False(t, StateNoReader.CardSeated())
	assert.False(t, StateReaderIdle.CardSeated())
	assert.True(t, StateCardPresent.CardSeated())
	assert.True(t, StateCardPresentCached.CardSeated())
}

func TestMonitorStateString(t *testing.T) {
	cases := map[MonitorState]string{
		StateNoReader:          "no_reader",
		StateReaderIdle:        "reader_idle",
		StateCardPresent:       "card_present",
		StateCardPresentCached: "card_present_cached",
		MonitorState(99):       "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}

func TestFaultClassification(t *testing.T) {
	wrapped := fmt.Errorf("read field cid: %w", ErrConnectionLost)
	assert.True(t, IsAbsenceFault(wrapped))
	assert.True(t, IsReadFault(wrapped))

	assert.True(t, IsAbsenceFault(ErrNoCard))
	assert.False(t, IsAbsenceFault(ErrDataRead))
	assert.False(t, IsAbsenceFault(ErrCommand))

	assert.True(t, IsReadFault(ErrDataRead))
	assert.True(t, IsReadFault(ErrCommand))
	assert.False(t, IsReadFault(ErrNoReader))
	assert.False(t, IsReadFault(fmt.Errorf("unrelated")))
}
