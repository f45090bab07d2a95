package db

import (
	"testing"
	"time"
)

type fakeStat struct {
	total, idle, acquired, max int32
	count                      int64
	dur                        time.Duration
}

func (f fakeStat) TotalConns() int32              { return f.total }
func (f fakeStat) IdleConns() int32               { return f.idle }
func (f fakeStat) AcquiredConns() int32           { return f.acquired }
func (f fakeStat) MaxConns() int32                { return f.max }
func (f fakeStat) AcquireCount() int64            { return f.count }
func (f fakeStat) AcquireDuration() time.Duration { return f.dur }

func TestStatsFrom_Healthy(t *testing.T) {
	s := statsFrom(fakeStat{
		total:    4,
		idle:     2,
		acquired: 2,
		max:      10,
		count:    120,
		dur:      250 * time.Millisecond,
	})

	if !s.Healthy {
		t.Error("expected healthy with open connections")
	}
	if s.TotalConns != 4 || s.IdleConns != 2 || s.AcquiredConns != 2 || s.MaxConns != 10 {
		t.Errorf("unexpected counts: %+v", s)
	}
	if s.AcquireCount != 120 {
		t.Errorf("expected acquire count 120, got %d", s.AcquireCount)
	}
	if s.AcquireDuration != "250ms" {
		t.Errorf("expected acquire duration 250ms, got %q", s.AcquireDuration)
	}
}

func TestStatsFrom_NoConnectionsIsUnhealthy(t *testing.T) {
	s := statsFrom(fakeStat{max: 10})
	if s.Healthy {
		t.Error("expected unhealthy with zero open connections")
	}
}
