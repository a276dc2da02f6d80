package pool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimerPool_GetPut(t *testing.T) {
	timer := GetTimer(10 * time.Millisecond)
	require.NotNil(t, timer)
	<-timer.C

	PutTimer(timer)

	timer2 := GetTimer(10 * time.Millisecond)
	require.NotNil(t, timer2)
	<-timer2.C
	PutTimer(timer2)
}

func TestTimerPool_ReusedTimerFiresFresh(t *testing.T) {
	timer := GetTimer(20 * time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	PutTimer(timer) // returned while still active

	begin := time.Now()
	timer2 := GetTimer(50 * time.Millisecond)

	select {
	case tick := <-timer2.C:
		require.GreaterOrEqual(t, tick.Sub(begin), 40*time.Millisecond,
			"reused timer must fire on the new duration, not the stale one")
	case <-time.After(200 * time.Millisecond):
		t.Fatal("reused timer never fired")
	}
	PutTimer(timer2)
}

func TestTimerPool_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			timer := GetTimer(5 * time.Millisecond)
			defer PutTimer(timer)
			<-timer.C
		}()
	}
	wg.Wait()
}
