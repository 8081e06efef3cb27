package debounce_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/recall/pkg/utils/debounce"
)

func TestDebouncerCollapsesBursts(t *testing.T) {
	var calls atomic.Int32
	d := debounce.New(100*time.Millisecond, func() { calls.Add(1) })

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(5 * time.Millisecond)
	}
	gt.True(t, d.Pending())
	gt.Equal(t, calls.Load(), int32(0))

	time.Sleep(400 * time.Millisecond)
	gt.Equal(t, calls.Load(), int32(1))
	gt.False(t, d.Pending())
}

func TestDebouncerFlush(t *testing.T) {
	var calls atomic.Int32
	d := debounce.New(time.Hour, func() { calls.Add(1) })

	d.Flush()
	gt.Equal(t, calls.Load(), int32(0))

	d.Trigger()
	d.Flush()
	gt.Equal(t, calls.Load(), int32(1))
	gt.False(t, d.Pending())
}

func TestDebouncerCancel(t *testing.T) {
	var calls atomic.Int32
	d := debounce.New(20*time.Millisecond, func() { calls.Add(1) })

	d.Trigger()
	gt.True(t, d.Cancel())
	gt.False(t, d.Cancel())

	time.Sleep(80 * time.Millisecond)
	gt.Equal(t, calls.Load(), int32(0))
}
