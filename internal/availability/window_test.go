package availability

import (
	"slices"
	"testing"
)

func TestSubtract(t *testing.T) {
	tests := []struct {
		name        string
		windows     []Window
		obstruction Window
		want        []Window
	}{
		{
			name:        "splits inner obstruction",
			windows:     []Window{{Start: hm(9, 0), End: hm(17, 0)}},
			obstruction: Window{Start: hm(12, 0), End: hm(13, 0)},
			want:        []Window{{Start: hm(9, 0), End: hm(12, 0)}, {Start: hm(13, 0), End: hm(17, 0)}},
		},
		{
			name:        "touching obstruction keeps window",
			windows:     []Window{{Start: hm(9, 0), End: hm(12, 0)}},
			obstruction: Window{Start: hm(12, 0), End: hm(13, 0)},
			want:        []Window{{Start: hm(9, 0), End: hm(12, 0)}},
		},
		{
			name:        "trims head",
			windows:     []Window{{Start: hm(9, 0), End: hm(12, 0)}},
			obstruction: Window{Start: hm(8, 0), End: hm(10, 0)},
			want:        []Window{{Start: hm(10, 0), End: hm(12, 0)}},
		},
		{
			name:        "trims tail",
			windows:     []Window{{Start: hm(9, 0), End: hm(12, 0)}},
			obstruction: Window{Start: hm(11, 0), End: hm(14, 0)},
			want:        []Window{{Start: hm(9, 0), End: hm(11, 0)}},
		},
		{
			name:        "covers window",
			windows:     []Window{{Start: hm(9, 0), End: hm(12, 0)}, {Start: hm(14, 0), End: hm(15, 0)}},
			obstruction: Window{Start: hm(8, 0), End: hm(12, 30)},
			want:        []Window{{Start: hm(14, 0), End: hm(15, 0)}},
		},
		{
			name:        "empty obstruction",
			windows:     []Window{{Start: hm(9, 0), End: hm(12, 0)}},
			obstruction: Window{Start: hm(10, 0), End: hm(10, 0)},
			want:        []Window{{Start: hm(9, 0), End: hm(12, 0)}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Subtract(tt.windows, tt.obstruction)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("Subtract = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize_MergesAndSorts(t *testing.T) {
	got := Normalize([]Window{
		{Start: hm(13, 0), End: hm(17, 0)},
		{Start: hm(9, 0), End: hm(12, 0)},
		{Start: hm(11, 0), End: hm(12, 30)},
		{Start: hm(17, 0), End: hm(18, 0)},
		{Start: hm(20, 0), End: hm(19, 0)},
	})
	want := []Window{
		{Start: hm(9, 0), End: hm(12, 30)},
		{Start: hm(13, 0), End: hm(18, 0)},
	}
	if !slices.Equal(got, want) {
		t.Fatalf("Normalize = %v, want %v", got, want)
	}
}
