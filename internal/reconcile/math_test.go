package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagetrak/stagetrak-backend/pkg/db/models"
	"github.com/stagetrak/stagetrak-backend/pkg/errors"
)

func TestEffectiveLoss(t *testing.T) {
	tests := []struct {
		name string
		row  models.DefectRow
		want int
	}{
		{
			name: "reworkable counts only the unreworked remainder",
			row:  models.DefectRow{Reworkable: true, Qty: 10, QtyRework: 7, QtyNoGood: 3},
			want: 3,
		},
		{
			name: "fully reworked row loses nothing",
			row:  models.DefectRow{Reworkable: true, Qty: 5, QtyRework: 5},
			want: 0,
		},
		{
			name: "non-reworkable loses the full quantity",
			row:  models.DefectRow{Reworkable: false, Qty: 4, QtyNoGood: 4},
			want: 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveLoss(tt.row))
		})
	}
}

func TestOutput(t *testing.T) {
	rows := []models.DefectRow{
		{Reworkable: true, Qty: 10, QtyRework: 6, QtyNoGood: 4},
		{Reworkable: false, Qty: 2, QtyNoGood: 2},
	}
	// 100 - (10-6) - 2 = 94
	assert.Equal(t, 94, Output(100, rows))
}

func TestOutputWithReplacement(t *testing.T) {
	rows := []models.DefectRow{
		{Reworkable: false, Qty: 6, QtyNoGood: 6, QtyReplacement: 6},
	}
	// Replacement on the first stage backfills the loss.
	assert.Equal(t, 100, Output(100, rows))
}

func TestOutputFlooredAtZero(t *testing.T) {
	rows := []models.DefectRow{
		{Reworkable: false, Qty: 50, QtyNoGood: 50},
	}
	assert.Equal(t, 0, Output(10, rows))
}

func TestOutputEmptyLedger(t *testing.T) {
	assert.Equal(t, 42, Output(42, nil))
}

func TestValidateQuantities(t *testing.T) {
	tests := []struct {
		name       string
		q          Quantities
		reworkable bool
		firstStage bool
		wantErr    bool
	}{
		{
			name:       "valid reworkable split",
			q:          Quantities{Qty: 10, QtyRework: 7, QtyNoGood: 3},
			reworkable: true,
		},
		{
			name:       "valid non-reworkable",
			q:          Quantities{Qty: 5, QtyNoGood: 5},
			reworkable: false,
		},
		{
			name:       "valid replacement on first stage",
			q:          Quantities{Qty: 4, QtyNoGood: 4, QtyReplacement: 4},
			firstStage: true,
		},
		{
			name:    "negative quantity",
			q:       Quantities{Qty: -1},
			wantErr: true,
		},
		{
			name:       "split does not add up",
			q:          Quantities{Qty: 10, QtyRework: 5, QtyNoGood: 3},
			reworkable: true,
			wantErr:    true,
		},
		{
			name:       "non-reworkable with rework",
			q:          Quantities{Qty: 5, QtyRework: 2, QtyNoGood: 3},
			reworkable: false,
			wantErr:    true,
		},
		{
			name:       "replacement off the first stage",
			q:          Quantities{Qty: 4, QtyNoGood: 4, QtyReplacement: 1},
			firstStage: false,
			wantErr:    true,
		},
		{
			name:       "replacement exceeds quantity",
			q:          Quantities{Qty: 2, QtyNoGood: 2, QtyReplacement: 3},
			firstStage: true,
			wantErr:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateQuantities(tt.q, tt.reworkable, tt.firstStage)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.HasCode(err, errors.CodeInvariantViolation))
				return
			}
			require.NoError(t, err)
		})
	}
}
