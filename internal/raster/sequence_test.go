package raster

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequenceValidate(t *testing.T) {
	tests := []struct {
		name    string
		seq     Sequence
		wantErr string
	}{
		{name: "empty", seq: Sequence{}, wantErr: "no images in sequence"},
		{name: "nil entry", seq: Sequence{New(2, 2, color.White), nil}, wantErr: "segment 1 is nil"},
		{name: "valid", seq: Sequence{New(2, 2, color.White), New(2, 3, color.White)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.seq.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSequenceMaxHeight(t *testing.T) {
	assert.Equal(t, 0, Sequence{}.MaxHeight())

	seq := Sequence{New(2, 10, color.White), New(2, 25, color.White), New(2, 5, color.White)}
	assert.Equal(t, 25, seq.MaxHeight())
}

func TestSequenceTotalPixels(t *testing.T) {
	seq := Sequence{New(10, 10, color.White), New(20, 5, color.White)}
	assert.Equal(t, int64(200), seq.TotalPixels())
}
