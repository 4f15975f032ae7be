package programs

import "testing"

func TestValid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "exact", in: "Cooking Show", want: true},
		{name: "case differs", in: "cooking show", want: false},
		{name: "padded", in: " Cooking Show", want: false},
		{name: "unknown", in: "Weather", want: false},
		{name: "empty", in: "", want: false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Valid(tt.in); got != tt.want {
				t.Fatalf("Valid(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestAllReturnsCopy(t *testing.T) {
	got := All()
	got[0] = "mutated"
	if All()[0] == "mutated" {
		t.Fatalf("All must not expose the catalogue")
	}
}

func TestSlug(t *testing.T) {
	if got := Slug("Sports Highlights"); got != "Sports_Highlights" {
		t.Fatalf("Slug = %q", got)
	}
}
