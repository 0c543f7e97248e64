package services

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	ref := time.Date(2026, 2, 14, 10, 0, 0, 0, testLoc)
	date := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, testLoc) }

	tests := []struct {
		in      string
		want    time.Time
		wantErr error
	}{
		{"сьогодні", date(2026, 2, 14), nil},
		{"Завтра ввечері", date(2026, 2, 15), nil},
		{"післязавтра", date(2026, 2, 16), nil},
		{"today", date(2026, 2, 14), nil},
		{"15.02", date(2026, 2, 15), nil},
		{"1.3", date(2026, 3, 1), nil},
		{"13.02", date(2027, 2, 13), nil},
		{"виїзд 05/03", date(2026, 3, 5), nil},
		{"20.03.26", date(2026, 3, 20), nil},
		{"20.03.2027", date(2027, 3, 20), nil},
		{"10.02.2026", date(2026, 2, 10), nil},
		{"31.02", time.Time{}, ErrInvalidDate},
		{"12.13", time.Time{}, ErrInvalidDate},
		{"00.05", time.Time{}, ErrInvalidDate},
		{"коли завгодно", time.Time{}, ErrNoDate},
		{"", time.Time{}, ErrNoDate},
	}
	for _, tt := range tests {
		got, err := DefaultTextParser{}.ParseDate(tt.in, ref)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ParseDate(%q) error = %v, want %v", tt.in, err, tt.wantErr)
			}
			continue
		}
		if err != nil || !got.Equal(tt.want) {
			t.Errorf("ParseDate(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestParseTime(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"18:00", "18:00", true},
		{"9:30", "09:30", true},
		{"виїзд о 7:05", "07:05", true},
		{"09:00 - 10:00", "09:00-10:00", true},
		{"18:00-18:30", "18:00-18:30", true},
		{"о 20-45", "20:45", true},
		{"Виїзд 6-30", "06:30", true},
		{"завтра, в 9-15", "09:15", true},
		{"до 20-45", "", false},
		{"від 20-45", "", false},
		{"Малин–Київ 20-45", "", false},
		{"25:00", "", false},
		{"18:75", "", false},
		{"not a time", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := DefaultTextParser{}.ParseTime(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseTime(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPhoneValidation(t *testing.T) {
	valid := []string{"0501234567", "+380501234567", "380501234567", "+380 50 123 45 67", "(050) 123-45-67", "38-050-123-45-67"}
	for _, p := range valid {
		if !IsValidPhone(p) {
			t.Errorf("IsValidPhone(%q) = false, want true", p)
		}
	}
	invalid := []string{"", "12345", "abc", "050123456a", "+38050123456789", "phone: 0501234567"}
	for _, p := range invalid {
		if IsValidPhone(p) {
			t.Errorf("IsValidPhone(%q) = true, want false", p)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := map[string]string{
		"0501234567":        "380501234567",
		"+380501234567":     "380501234567",
		"+380 50 123 45 67": "380501234567",
		"(050) 123-45-67":   "380501234567",
		"38-050-123-45-67":  "380501234567",
		"48601234567":       "48601234567",
	}
	for in, want := range tests {
		if got := NormalizePhone(in); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTemplateHelpers(t *testing.T) {
	if got := RouteName("Kyiv-Malyn-Irpin"); got != "Київ → Малин (через Ірпінь)" {
		t.Errorf("RouteName = %q", got)
	}
	if got := RouteName("Lviv-Odesa"); got != "Lviv-Odesa" {
		t.Errorf("unknown route should be returned unchanged, got %q", got)
	}
	d := time.Date(2026, 2, 5, 0, 0, 0, 0, testLoc)
	if got := FormatDate(d); got != "05.02.2026" {
		t.Errorf("FormatDate = %q", got)
	}
	if got := DateKey(d); got != "2026-02-05" {
		t.Errorf("DateKey = %q", got)
	}
}
