package domain

import (
	"testing"
	"time"
)

func TestDate_NormalizesAndCompares(t *testing.T) {
	d := NewDate(2023, time.December, 32)
	if d != (Date{Year: 2024, Month: time.January, Day: 1}) {
		t.Fatalf("NewDate did not normalize: %v", d)
	}
	if !NewDate(2024, 1, 1).Before(NewDate(2024, 1, 2)) {
		t.Fatalf("Before")
	}
	if !NewDate(2025, 1, 1).After(NewDate(2024, 12, 31)) {
		t.Fatalf("After")
	}
	if NewDate(2024, 3, 1).Compare(NewDate(2024, 3, 1)) != 0 {
		t.Fatalf("Compare equal")
	}
	if got := NewDate(2024, 2, 28).AddDays(1); got != NewDate(2024, 2, 29) {
		t.Fatalf("AddDays leap = %v", got)
	}
	if got := NewDate(2024, 12, 30).DaysUntil(NewDate(2025, 1, 2)); got != 3 {
		t.Fatalf("DaysUntil = %d", got)
	}
}

func TestDate_ScanVariants(t *testing.T) {
	want := NewDate(2024, time.July, 4)
	inputs := []any{
		"2024-07-04",
		[]byte("2024-07-04"),
		"2024-07-04 00:00:00+00:00",
		time.Date(2024, 7, 4, 0, 0, 0, 0, time.UTC),
	}
	for _, in := range inputs {
		var d Date
		if err := d.Scan(in); err != nil {
			t.Fatalf("Scan(%v): %v", in, err)
		}
		if d != want {
			t.Fatalf("Scan(%v) = %v", in, d)
		}
	}

	var d Date
	if err := d.Scan(42); err == nil {
		t.Fatalf("expected error for int")
	}
	if err := d.Scan("not-a-date"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestDate_ValueAndText(t *testing.T) {
	d := NewDate(2024, time.March, 9)
	v, err := d.Value()
	if err != nil || v != "2024-03-09" {
		t.Fatalf("Value = %v, %v", v, err)
	}
	b, _ := d.MarshalText()
	var back Date
	if err := back.UnmarshalText(b); err != nil || back != d {
		t.Fatalf("text round trip = %v, %v", back, err)
	}
	if got := d.Format("02.01.06"); got != "09.03.24" {
		t.Fatalf("Format = %q", got)
	}
}

func TestDate_ZeroText(t *testing.T) {
	b, err := Date{}.MarshalText()
	if err != nil || len(b) != 0 {
		t.Fatalf("zero MarshalText = %q, %v", b, err)
	}
	d := NewDate(2024, 1, 1)
	if err := d.UnmarshalText(nil); err != nil || !d.IsZero() {
		t.Fatalf("empty UnmarshalText = %v, %v", d, err)
	}
}
