package services

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/younegotiate/settlement-engine/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuildPlan(t *testing.T) {
	tests := []struct {
		name        string
		total       string
		monthly     string
		wantN       int
		wantLast    string
		wantPerRows int
	}{
		{
			name:  "remainder under ten merges into last installment",
			total: "758", monthly: "75",
			wantN: 9, wantLast: "83", wantPerRows: 10,
		},
		{
			name:  "remainder of ten or more stays its own installment",
			total: "733", monthly: "75",
			wantN: 9, wantLast: "58", wantPerRows: 10,
		},
		{
			name:  "even division has no trailing installment",
			total: "750", monthly: "75",
			wantN: 10, wantLast: "0", wantPerRows: 10,
		},
		{
			name:  "single installment when monthly exceeds total",
			total: "50", monthly: "75",
			wantN: 0, wantLast: "50", wantPerRows: 1,
		},
		{
			name:  "tiny total below the merge threshold stays one payment",
			total: "5", monthly: "20",
			wantN: 0, wantLast: "5", wantPerRows: 1,
		},
		{
			name:  "cent-level remainder merges",
			total: "300.05", monthly: "100",
			wantN: 2, wantLast: "100.05", wantPerRows: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := BuildPlan(d(tt.total), d(tt.monthly))
			require.NoError(t, err)

			assert.Equal(t, tt.wantN, plan.N)
			assert.True(t, plan.Last.Equal(d(tt.wantLast)), "last: got %s want %s", plan.Last, tt.wantLast)
			assert.Equal(t, tt.wantPerRows, plan.Installments())

			// Monthly*N + Last must reproduce the total to the cent.
			sum := plan.Monthly.Mul(decimal.NewFromInt(int64(plan.N))).Add(plan.Last)
			assert.True(t, sum.Equal(plan.Total), "sum: got %s want %s", sum, plan.Total)
		})
	}
}

func TestBuildPlan_Invalid(t *testing.T) {
	_, err := BuildPlan(decimal.Zero, d("75"))
	assert.ErrorIs(t, err, ErrInvalidTotalPayable)

	_, err = BuildPlan(d("750"), decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidMonthlyAmount)

	_, err = BuildPlan(d("750"), d("-5"))
	assert.ErrorIs(t, err, ErrInvalidMonthlyAmount)
}

func TestNextScheduleDate(t *testing.T) {
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, base.AddDate(0, 0, 7), NextScheduleDate(base, model.CadenceWeekly, false))
	assert.Equal(t, base.AddDate(0, 0, 15), NextScheduleDate(base, model.CadenceBimonthly, false))
	assert.Equal(t, base.AddDate(0, 1, 0), NextScheduleDate(base, model.CadenceMonthly, false))
}

func TestNextScheduleDate_MonthlyClampsShortMonths(t *testing.T) {
	// A Jan 30 anchor must not skip February.
	jan30 := time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), NextScheduleDate(jan30, model.CadenceMonthly, false))

	jan30leap := time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), NextScheduleDate(jan30leap, model.CadenceMonthly, false))

	// May 31 steps to Jun 30, not Jul 1.
	may31 := time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC), NextScheduleDate(may31, model.CadenceMonthly, false))
}

func TestNextScheduleDate_MonthEndSnap(t *testing.T) {
	jan31 := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	feb := NextScheduleDate(jan31, model.CadenceMonthly, true)
	assert.Equal(t, time.Date(2025, 2, 28, 0, 0, 0, 0, time.UTC), feb)

	mar := NextScheduleDate(feb, model.CadenceMonthly, true)
	assert.Equal(t, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC), mar)

	// Leap year lands on Feb 29.
	jan31leap := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), NextScheduleDate(jan31leap, model.CadenceMonthly, true))
}

func TestMaterializeSchedule(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	plan, err := BuildPlan(d("758"), d("75"))
	require.NoError(t, err)

	negotiation := &model.NegotiationRecord{
		ID:           7,
		ConsumerID:   42,
		Type:         model.NegotiationTypeInstallment,
		Cadence:      model.CadenceMonthly,
		FirstPayDate: time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
	}

	rows := MaterializeSchedule(plan, negotiation, d("12"), now)
	require.Len(t, rows, 10)

	total := decimal.Zero
	for i, row := range rows {
		assert.Equal(t, int64(42), row.ConsumerID)
		assert.Equal(t, int64(7), row.NegotiationID)
		assert.Equal(t, model.ScheduleStatusScheduled, row.Status)
		assert.True(t, row.RevenueSharePercentage.Equal(d("12")))
		if i > 0 {
			assert.True(t, row.ScheduleDate.After(rows[i-1].ScheduleDate))
		}
		total = total.Add(row.Amount)
	}
	assert.True(t, total.Equal(d("758")), "scheduled total: got %s", total)
	assert.True(t, rows[9].Amount.Equal(d("83")))
}

func TestMaterializeSchedule_FirstDateInPastFallsBackToNow(t *testing.T) {
	now := time.Date(2025, 6, 20, 8, 0, 0, 0, time.UTC)

	plan, err := BuildPlan(d("200"), d("100"))
	require.NoError(t, err)

	negotiation := &model.NegotiationRecord{
		ID:           3,
		ConsumerID:   9,
		Cadence:      model.CadenceWeekly,
		FirstPayDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	rows := MaterializeSchedule(plan, negotiation, d("10"), now)
	require.Len(t, rows, 2)
	assert.Equal(t, now, rows[0].ScheduleDate)
	assert.Equal(t, now.AddDate(0, 0, 7), rows[1].ScheduleDate)
}

func TestMaterializeSchedule_MonthEndAnchor(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	plan, err := BuildPlan(d("300"), d("100"))
	require.NoError(t, err)

	negotiation := &model.NegotiationRecord{
		ID:           5,
		ConsumerID:   11,
		Cadence:      model.CadenceMonthly,
		FirstPayDate: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
	}

	rows := MaterializeSchedule(plan, negotiation, d("10"), now)
	require.Len(t, rows, 3)
	assert.Equal(t, 31, rows[0].ScheduleDate.Day())
	assert.Equal(t, 28, rows[1].ScheduleDate.Day())
	assert.Equal(t, 31, rows[2].ScheduleDate.Day())
}
