package account

import (
	"sync"
	"testing"
	"time"
)

func TestReserveRelease(t *testing.T) {
	s := NewStore(10000)

	if err := s.Reserve(3000); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	st := s.Snapshot()
	if st.Available != 7000 || st.Committed != 3000 || st.OpenCount != 1 {
		t.Fatalf("unexpected state after reserve: %+v", st)
	}

	s.Release(3000)
	st = s.Snapshot()
	if st.Available != 10000 || st.Committed != 0 || st.OpenCount != 0 {
		t.Fatalf("unexpected state after release: %+v", st)
	}
}

func TestReserveInsufficient(t *testing.T) {
	s := NewStore(1000)
	if err := s.Reserve(1500); err != ErrInsufficient {
		t.Fatalf("expected ErrInsufficient, got %v", err)
	}
	st := s.Snapshot()
	if st.Available != 1000 || st.OpenCount != 0 {
		t.Fatalf("failed reserve must not change state: %+v", st)
	}
}

// 并发抢占同一笔资金，总占用不能超过可用资金
func TestReserveConcurrent(t *testing.T) {
	s := NewStore(1000)

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Reserve(300); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if accepted != 3 {
		t.Fatalf("expected exactly 3 accepted reservations, got %d", accepted)
	}
	st := s.Snapshot()
	if st.Committed != 900 || st.Available != 100 {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestRealizedRollover(t *testing.T) {
	clock := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC) // 周一
	s := NewStoreWithClock(10000, func() time.Time { return clock })

	s.ApplyRealized(-200)
	st := s.Snapshot()
	if st.RealizedDay != -200 || st.RealizedWeek != -200 {
		t.Fatalf("unexpected realized: %+v", st)
	}

	// 跨日但未跨周
	clock = clock.Add(26 * time.Hour)
	st = s.Snapshot()
	if st.RealizedDay != 0 {
		t.Fatalf("daily window should reset, got %v", st.RealizedDay)
	}
	if st.RealizedWeek != -200 {
		t.Fatalf("weekly window should survive, got %v", st.RealizedWeek)
	}

	// 跨周
	clock = clock.Add(7 * 24 * time.Hour)
	st = s.Snapshot()
	if st.RealizedWeek != 0 {
		t.Fatalf("weekly window should reset, got %v", st.RealizedWeek)
	}
}

// 权益随已实现盈亏变动，后续规模和限额都按最新权益算
func TestRealizedMovesCapital(t *testing.T) {
	s := NewStore(10000)
	if err := s.Reserve(3000); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	s.ApplyRealized(-1000)
	st := s.Snapshot()
	if st.Capital != 9000 {
		t.Fatalf("capital must track realized loss, got %v", st.Capital)
	}
	if st.Available+st.Committed != st.Capital {
		t.Fatalf("available+committed must equal capital: %+v", st)
	}

	s.ApplyRealized(400)
	st = s.Snapshot()
	if st.Capital != 9400 {
		t.Fatalf("capital must track realized gain, got %v", st.Capital)
	}
	if st.Available+st.Committed != st.Capital {
		t.Fatalf("available+committed must equal capital: %+v", st)
	}
}

func TestPartialRelease(t *testing.T) {
	s := NewStore(10000)
	if err := s.Reserve(4000); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	s.ReleasePartial(2000)
	st := s.Snapshot()
	// 部分释放不注销仓位
	if st.Committed != 2000 || st.OpenCount != 1 {
		t.Fatalf("unexpected state after partial release: %+v", st)
	}
}
