package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryRecorder_Counts(t *testing.T) {
	m := NewInMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncAuthAttempt("jwt", OutcomeSuccess)
		}()
	}
	wg.Wait()

	m.IncAuthAttempt("api_key", OutcomeRejected)
	m.ObserveAuthDuration(2 * time.Millisecond)
	m.ObserveAuthDuration(3 * time.Millisecond)
	m.IncAPIKeyCacheHit()
	m.IncAPIKeyCacheMiss()
	m.IncAPIKeyCacheMiss()
	m.IncTokenIssued()
	m.IncAuditEventPublished(OutcomeSuccess)
	m.IncAuditEventPublished(OutcomeDropped)
	m.IncAuditEventPublished(OutcomeDropped)

	if got := m.AuthAttempts("jwt", OutcomeSuccess); got != 50 {
		t.Errorf("jwt success = %d, want 50", got)
	}

	snap := m.Snapshot()
	if len(snap.AuthAttempts) != 2 {
		t.Fatalf("expected 2 attempt series, got %d", len(snap.AuthAttempts))
	}
	if snap.AuthAttempts[0].Method != "api_key" {
		t.Errorf("attempts not sorted: %+v", snap.AuthAttempts)
	}
	if snap.AuthDurationCount != 2 || snap.AuthDurationTotalNs != int64(5*time.Millisecond) {
		t.Errorf("duration = %d/%d", snap.AuthDurationCount, snap.AuthDurationTotalNs)
	}
	if snap.APIKeyCacheHits != 1 || snap.APIKeyCacheMisses != 2 {
		t.Errorf("cache hits/misses = %d/%d", snap.APIKeyCacheHits, snap.APIKeyCacheMisses)
	}
	if snap.TokensIssued != 1 {
		t.Errorf("tokens issued = %d", snap.TokensIssued)
	}
	if snap.AuditPublished != 1 || snap.AuditDropped != 2 {
		t.Errorf("audit published/dropped = %d/%d", snap.AuditPublished, snap.AuditDropped)
	}
}

func TestNoopRecorder(t *testing.T) {
	r := NewNoop()
	r.IncAuthAttempt("jwt", OutcomeError)
	r.ObserveAuthDuration(time.Second)
	r.IncAPIKeyCacheHit()
	r.IncAPIKeyCacheMiss()
	r.IncTokenIssued()
	r.IncAuditEventPublished(OutcomeDropped)
}
