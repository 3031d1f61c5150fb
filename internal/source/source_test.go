package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanHeader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    []string
		trim   bool
		rename map[string]string
		want   []string
	}{
		{
			name: "bom_and_trim",
			raw:  []string{"\uFEFFREGIÓN", " Especie "},
			trim: true,
			want: []string{"REGIÓN", "Especie"},
		},
		{
			name: "no_trim_keeps_space",
			raw:  []string{"Especie "},
			want: []string{"Especie "},
		},
		{
			name:   "rename_untrimmed_label",
			raw:    []string{"Region", "Especie "},
			trim:   true,
			rename: map[string]string{"Especie ": "Species"},
			want:   []string{"Region", "Species"},
		},
		{
			name:   "rename_trimmed_label",
			raw:    []string{" Region "},
			trim:   true,
			rename: map[string]string{"Region": "REGIÓN"},
			want:   []string{"REGIÓN"},
		},
		{
			name:   "renamed_label_is_not_trimmed",
			raw:    []string{"a"},
			trim:   true,
			rename: map[string]string{"a": " b "},
			want:   []string{" b "},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, CleanHeader(tc.raw, tc.trim, tc.rename))
		})
	}
}
