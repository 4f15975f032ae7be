package object

import (
	"errors"
	"testing"
)

func TestCleanKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		key     string
		want    string
		wantErr bool
	}{
		{name: "simple", key: "Cooking_Show/text/a.txt", want: "Cooking_Show/text/a.txt"},
		{name: "dot segments", key: "Cooking_Show/./text/../text/a.txt", want: "Cooking_Show/text/a.txt"},
		{name: "backslashes", key: `Cooking_Show\voice\a.ogg`, want: "Cooking_Show/voice/a.ogg"},
		{name: "absolute", key: "/etc/passwd", wantErr: true},
		{name: "traversal", key: "../secret", wantErr: true},
		{name: "empty", key: "  ", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := CleanKey(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKey) {
					t.Fatalf("CleanKey(%q) error = %v, want ErrInvalidKey", tt.key, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("CleanKey(%q) = %q, %v; want %q", tt.key, got, err, tt.want)
			}
		})
	}
}
