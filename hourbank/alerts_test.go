package hourbank_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronon/attendance-engine/core"
	"github.com/chronon/attendance-engine/hourbank"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func bankWith(balance int64) *hourbank.HourBank {
	return &hourbank.HourBank{
		EmployeeID:         "emp-1",
		CurrentBalance:     core.NewMinutes(balance),
		MaxPositiveBalance: core.NewMinutes(2400),
		MaxNegativeBalance: core.NewMinutes(1200),
	}
}

func alertTypes(alerts []hourbank.Alert) []hourbank.AlertType {
	types := make([]hourbank.AlertType, len(alerts))
	for i, a := range alerts {
		types[i] = a.Type
	}
	return types
}

var asOf = core.NewDayDate(2025, time.June, 15)

// =============================================================================
// CAP THRESHOLD TESTS
// =============================================================================

func TestAlerts_HealthyBalance_NoAlerts(t *testing.T) {
	assert.Empty(t, hourbank.GenerateAlerts(bankWith(600), asOf))
}

func TestAlerts_ApproachingPositiveCap(t *testing.T) {
	// GIVEN: Balance at 2000 of a 2400 cap (83%)
	// WHEN: Evaluating alerts
	// THEN: approaching_limit fires as a warning

	alerts := hourbank.GenerateAlerts(bankWith(2000), asOf)

	require.Len(t, alerts, 1)
	assert.Equal(t, hourbank.AlertApproachingLimit, alerts[0].Type)
	assert.Equal(t, hourbank.SeverityWarning, alerts[0].Severity)
}

func TestAlerts_BelowThreshold_NoApproachingAlert(t *testing.T) {
	// GIVEN: Balance at 1900 of a 2400 cap (79%)
	// THEN: Below the 80% threshold, nothing fires

	assert.Empty(t, hourbank.GenerateAlerts(bankWith(1900), asOf))
}

func TestAlerts_ExceededPositiveCap(t *testing.T) {
	// GIVEN: Balance at 2500 over a 2400 cap
	// THEN: exceeded_limit fires as an error, not approaching_limit

	alerts := hourbank.GenerateAlerts(bankWith(2500), asOf)

	require.Len(t, alerts, 1)
	assert.Equal(t, hourbank.AlertExceededLimit, alerts[0].Type)
	assert.Equal(t, hourbank.SeverityError, alerts[0].Severity)
}

func TestAlerts_NegativeBalance_Warning(t *testing.T) {
	// GIVEN: Balance of -300 within the 1200 negative cap
	// THEN: negative_balance warning only

	alerts := hourbank.GenerateAlerts(bankWith(-300), asOf)

	require.Len(t, alerts, 1)
	assert.Equal(t, hourbank.AlertNegativeBalance, alerts[0].Type)
	assert.Equal(t, hourbank.SeverityWarning, alerts[0].Severity)
}

func TestAlerts_ExceededNegativeCap_Error(t *testing.T) {
	// GIVEN: Balance of -1300 beyond the 1200 negative cap
	// THEN: exceeded_limit error replaces the plain negative warning

	alerts := hourbank.GenerateAlerts(bankWith(-1300), asOf)

	require.Len(t, alerts, 1)
	assert.Equal(t, hourbank.AlertExceededLimit, alerts[0].Type)
	assert.Equal(t, hourbank.SeverityError, alerts[0].Severity)
}

// =============================================================================
// COMPENSATION DUE TESTS
// =============================================================================

func TestAlerts_CompensationDue_Window(t *testing.T) {
	// GIVEN: Active periods ending 10, 7, and 3 days out
	// WHEN: Evaluating alerts
	// THEN: Only the ones within 7 days fire; <=3 days is an error

	bank := bankWith(0)
	bank.Periods = []hourbank.CompensationPeriod{
		{ID: "cp-far", Status: hourbank.PeriodActive, EndDate: asOf.AddDays(10)},
		{ID: "cp-week", Status: hourbank.PeriodActive, EndDate: asOf.AddDays(7)},
		{ID: "cp-urgent", Status: hourbank.PeriodActive, EndDate: asOf.AddDays(3)},
	}

	alerts := hourbank.GenerateAlerts(bank, asOf)
	require.Len(t, alerts, 2)
	assert.Equal(t, hourbank.SeverityWarning, alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "cp-week")
	assert.Equal(t, hourbank.SeverityError, alerts[1].Severity)
	assert.Contains(t, alerts[1].Message, "cp-urgent")
}

func TestAlerts_ResolvedPeriods_Silent(t *testing.T) {
	// GIVEN: Completed and expired periods ending imminently
	// THEN: Only active periods alert

	bank := bankWith(0)
	bank.Periods = []hourbank.CompensationPeriod{
		{ID: "cp-done", Status: hourbank.PeriodCompleted, EndDate: asOf.AddDays(1)},
		{ID: "cp-gone", Status: hourbank.PeriodExpired, EndDate: asOf.AddDays(1)},
	}

	assert.Empty(t, hourbank.GenerateAlerts(bank, asOf))
}

func TestAlerts_SeveralRulesFireTogether(t *testing.T) {
	// GIVEN: An over-cap negative balance plus an imminent period
	// WHEN: Evaluating alerts
	// THEN: Both independent rules fire

	bank := bankWith(-1300)
	bank.Periods = []hourbank.CompensationPeriod{
		{ID: "cp-1", Status: hourbank.PeriodActive, EndDate: asOf.AddDays(2)},
	}

	types := alertTypes(hourbank.GenerateAlerts(bank, asOf))
	assert.Contains(t, types, hourbank.AlertExceededLimit)
	assert.Contains(t, types, hourbank.AlertCompensationDue)
}
