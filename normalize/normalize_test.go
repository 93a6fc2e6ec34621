package normalize

import (
	"reflect"
	"testing"
)

func TestScalar(t *testing.T) {
	tests := []struct {
		name   string
		in     any
		want   string
		wantOK bool
	}{
		{"trimmed string", "  Fine Oak \n", "Fine Oak", true},
		{"empty string", "   ", "", false},
		{"nil", nil, "", false},
		{"number", float64(42), "42", true},
		{"bool", true, "true", true},
		{"slice is not scalar", []any{"a"}, "", false},
		{"map is not scalar", map[string]any{"a": 1}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Scalar(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Scalar(%v) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestArray(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"nil", nil, nil},
		{"single scalar", " Red ", []string{"Red"}},
		{"empty scalar", "", nil},
		{"string slice", []string{"Red", " ", "Blue"}, []string{"Red", "Blue"}},
		{"any slice", []any{"Red", nil, "Blue", "Red"}, []string{"Red", "Blue", "Red"}},
		{"nested", []any{[]any{"A"}, "B"}, []string{"A", "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Array(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Array(%v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestArrayNeverYieldsNullString(t *testing.T) {
	for _, s := range Array([]any{nil, nil}) {
		if s == "null" || s == "<nil>" {
			t.Fatalf("Array produced %q from nil", s)
		}
	}
}

func TestDedup(t *testing.T) {
	got := Dedup([]string{"Red", "red", "Red", "Blue"})
	want := []string{"Red", "red", "Blue"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Dedup = %v, want %v", got, want)
	}
}

func TestParseFinishLabel(t *testing.T) {
	tests := []struct {
		label string
		want  Finish
	}{
		{"#38 Fine Velvet", Finish{Code: "#38", Name: "Fine Velvet"}},
		{"  #07   Matte ", Finish{Code: "#07", Name: "Matte"}},
		{"#12", Finish{Code: "#12"}},
		{"Gloss", Finish{Name: "Gloss"}},
		{"No. 5 Satin", Finish{Name: "No. 5 Satin"}},
	}
	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			if got := ParseFinishLabel(tt.label); got != tt.want {
				t.Errorf("ParseFinishLabel(%q) = %+v, want %+v", tt.label, got, tt.want)
			}
		})
	}
}

func TestFinishes(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []Finish
	}{
		{"nil", nil, nil},
		{"bare label", "#38 Fine Velvet", []Finish{{Code: "#38", Name: "Fine Velvet"}}},
		{
			"object array",
			[]any{
				map[string]any{"code": "#12", "name": "Matte"},
				map[string]any{"name": "Gloss"},
				map[string]any{"code": nil, "name": ""},
			},
			[]Finish{{Code: "#12", Name: "Matte"}, {Name: "Gloss"}},
		},
		{"single object", map[string]any{"code": "#60", "name": "Soft Grain"}, []Finish{{Code: "#60", Name: "Soft Grain"}}},
		{
			"legacy code map",
			map[string]any{"#38": "Fine Velvet", "#12": "Matte"},
			[]Finish{{Code: "#12", Name: "Matte"}, {Code: "#38", Name: "Fine Velvet"}},
		},
		{
			"legacy label set",
			map[string]any{"#38 Fine Velvet": true},
			[]Finish{{Code: "#38", Name: "Fine Velvet"}},
		},
		{"typed slice", []Finish{{Code: "#1"}, {}}, []Finish{{Code: "#1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Finishes(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Finishes = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDedupFinishes(t *testing.T) {
	in := []Finish{
		{Code: "#38", Name: "Fine Velvet"},
		{Code: "#38", Name: "fine velvet"},
		{Code: "#12", Name: "Matte"},
		{Name: "Matte"},
	}
	got := DedupFinishes(in)
	if len(got) != 3 {
		t.Fatalf("DedupFinishes: got %d entries, want 3: %+v", len(got), got)
	}
	if got[0].Name != "Fine Velvet" {
		t.Errorf("first entry: got %q, want %q", got[0].Name, "Fine Velvet")
	}
}

func TestCode(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"y0385", "Y0385"},
		{" Y 03 85\t", "Y0385"},
		{"ab…", "AB..."},
		{"Ｙ０３８５", "Y0385"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := Code(tt.raw); got != tt.want {
				t.Errorf("Code(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(nil); got != "" {
		t.Errorf("CodeOf(nil) = %q, want empty", got)
	}
	if got := CodeOf(" d354 "); got != "D354" {
		t.Errorf("CodeOf = %q, want D354", got)
	}
}

func TestSizeOf(t *testing.T) {
	s, ok := SizeOf(map[string]any{"width": float64(60), "height": "144"})
	if !ok {
		t.Fatal("SizeOf: got !ok")
	}
	if s.Width != 60 || s.Height != 144 {
		t.Errorf("SizeOf = %+v, want 60x144", s)
	}
	if _, ok := SizeOf(map[string]any{"width": 0, "height": 10}); ok {
		t.Error("SizeOf zero width: got ok")
	}
	if _, ok := SizeOf("60x144"); ok {
		t.Error("SizeOf string: got ok")
	}
	if r := (Size{Width: 60, Height: 120}).Ratio(); r != 0.5 {
		t.Errorf("Ratio = %v, want 0.5", r)
	}
}
