package cache

import (
	"sync"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	if _, ok := s.Read("audio_stats"); ok {
		t.Fatal("expected miss on empty store")
	}
	s.Write("audio_stats", 3)
	if v, ok := s.Read("audio_stats"); !ok || v.(int) != 3 {
		t.Fatalf("unexpected read %v %v", v, ok)
	}
	s.Delete("audio_stats")
	s.Delete("audio_stats")
	if _, ok := s.Read("audio_stats"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestMemoryStoreConcurrentAccess(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				s.Write("k", i*j)
				s.Read("k")
				if j%10 == 0 {
					s.Delete("k")
				}
			}
		}()
	}
	wg.Wait()
}
