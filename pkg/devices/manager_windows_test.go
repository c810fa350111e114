package devices

import (
	"strings"
	"testing"
	"unicode/utf16"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/windows"

	"github.com/xcp-ng/xenclean/pkg/descriptor"
)

func TestToGUIDMatchesWindowsParsing(t *testing.T) {
	tests := []struct {
		name  string
		class uuid.UUID
	}{
		{"System", descriptor.ClassSystem},
		{"Net", descriptor.ClassNet},
		{"HIDClass", descriptor.ClassHIDClass},
		{"SCSIAdapter", descriptor.ClassSCSIAdapter},
		{"HDC", descriptor.ClassHDC},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := windows.GUIDFromString("{" + strings.ToUpper(tt.class.String()) + "}")
			require.NoError(t, err)
			assert.Equal(t, want, toGUID(tt.class))
		})
	}
}

func TestSplitMultiSz(t *testing.T) {
	buf := utf16.Encode([]rune("PCI\\A\x00XENVIF\\B\x00\x00"))

	assert.Equal(t, []string{"PCI\\A", "XENVIF\\B"}, splitMultiSz(buf))
	assert.Nil(t, splitMultiSz([]uint16{0, 0}))
}
