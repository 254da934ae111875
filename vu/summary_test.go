package vu

import "testing"

func TestSummaryBasic(t *testing.T) {
	s := NewSummary()
	s.Update(10)
	s.Update(5)
	s.Update(20)

	if s.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", s.Count())
	}
	if s.Sum() != 35 {
		t.Fatalf("Sum() = %f, want 35", s.Sum())
	}
	if min, ok := s.Min(); !ok || min != 5 {
		t.Fatalf("Min() = (%f, %v), want (5, true)", min, ok)
	}
	if max, ok := s.Max(); !ok || max != 20 {
		t.Fatalf("Max() = (%f, %v), want (20, true)", max, ok)
	}
	avg, ok := s.Average()
	if !ok {
		t.Fatalf("Average() ok = false, want true")
	}
	want := 35.0 / 3.0
	if diff := avg - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("Average() = %f, want %f", avg, want)
	}
}

func TestSummaryOptionalUpdates(t *testing.T) {
	s := NewSummary()
	fifteen := 15.0
	five := 5.0
	s.UpdateOptional(&fifteen)
	s.UpdateOptional(nil)
	s.UpdateOptional(&five)

	if s.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", s.Count())
	}
	if s.Sum() != 20 {
		t.Fatalf("Sum() = %f, want 20", s.Sum())
	}
	if min, _ := s.Min(); min != 5 {
		t.Fatalf("Min() = %f, want 5", min)
	}
	if max, _ := s.Max(); max != 15 {
		t.Fatalf("Max() = %f, want 15", max)
	}
}

func TestSummaryEmpty(t *testing.T) {
	s := NewSummary()
	if _, ok := s.Min(); ok {
		t.Fatalf("Min() on empty returned ok = true")
	}
	if _, ok := s.Max(); ok {
		t.Fatalf("Max() on empty returned ok = true")
	}
	if _, ok := s.Average(); ok {
		t.Fatalf("Average() on empty returned ok = true")
	}
	if s.Sum() != 0 {
		t.Fatalf("Sum() on empty = %f, want 0", s.Sum())
	}
}

func TestMergeSummary(t *testing.T) {
	dest := NewSummary()
	dest.Update(10)
	dest.Update(20)

	src := NewSummary()
	src.Update(5)
	src.Update(30)

	mergeSummary(&dest, src)

	if dest.Count() != 4 {
		t.Fatalf("Count() = %d, want 4", dest.Count())
	}
	if min, _ := dest.Min(); min != 5 {
		t.Fatalf("Min() = %f, want 5", min)
	}
	if max, _ := dest.Max(); max != 30 {
		t.Fatalf("Max() = %f, want 30", max)
	}
	if dest.Sum() != 65 {
		t.Fatalf("Sum() = %f, want 65", dest.Sum())
	}
}

func TestMergeEmptySummaryIsIdentity(t *testing.T) {
	dest := NewSummary()
	dest.Update(10)
	dest.Update(20)
	before := dest

	empty := NewSummary()
	mergeSummary(&dest, empty)

	if dest != before {
		t.Fatalf("merging empty Summary changed dest: got %+v, want %+v", dest, before)
	}
}
