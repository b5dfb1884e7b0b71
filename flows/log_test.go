package flows

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iluxa/sflow-rt/filter"
)

func TestLogAfterWithFilter(t *testing.T) {
	l := NewLog(16)
	l.Append(&CompletedFlow{Name: "tcp", FlowKeys: "10.1.1.1,10.2.2.2", EndReason: EndIdle})
	l.Append(&CompletedFlow{Name: "udp", FlowKeys: "10.1.1.1,10.3.3.3", EndReason: EndIdle})
	l.Append(&CompletedFlow{Name: "tcp", FlowKeys: "10.4.4.4,10.2.2.2", EndReason: EndEvicted})

	all := l.After(0, 0, nil)
	require.Len(t, all, 3)
	assert.Equal(t, uint64(1), all[0].FlowID)
	assert.Equal(t, uint64(3), all[2].FlowID)
	assert.Equal(t, uint64(3), l.LastID())

	f, err := filter.Parse("name=tcp")
	require.NoError(t, err)
	assert.Len(t, l.After(0, 0, f), 2)

	f, err = filter.Parse("key0=10.1.*&endReason=idle")
	require.NoError(t, err)
	got := l.After(0, 0, f)
	require.Len(t, got, 2)
	assert.Equal(t, "tcp", got[0].Name)
	assert.Equal(t, "udp", got[1].Name)
}

func TestLogPollWakesOnMatch(t *testing.T) {
	l := NewLog(16)
	f, err := filter.Parse("name=udp")
	require.NoError(t, err)

	go func() {
		time.Sleep(20 * time.Millisecond)
		l.Append(&CompletedFlow{Name: "tcp"})
		time.Sleep(20 * time.Millisecond)
		l.Append(&CompletedFlow{Name: "udp"})
	}()

	got := l.Poll(context.Background(), 0, 0, 2*time.Second, f)
	require.Len(t, got, 1)
	assert.Equal(t, "udp", got[0].Name)
}
