package hourbank

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/chronon/attendance-engine/core"
)

// =============================================================================
// ALERTS - Pure evaluation over current bank state
// =============================================================================

type AlertType string

const (
	AlertApproachingLimit AlertType = "approaching_limit"
	AlertExceededLimit    AlertType = "exceeded_limit"
	AlertNegativeBalance  AlertType = "negative_balance"
	AlertCompensationDue  AlertType = "compensation_due"
)

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

type Alert struct {
	Type     AlertType    `json:"type"`
	Severity Severity     `json:"severity"`
	Message  string       `json:"message"`
	Balance  core.Minutes `json:"balance"`
}

var approachingThreshold = decimal.NewFromFloat(0.8)

// GenerateAlerts evaluates the alert rules over the bank's current state.
// Pure function: each rule is evaluated independently and several alerts
// may fire at once.
//
// Rules:
//   - balance at >= 80% of the positive cap: approaching_limit (warning),
//     at >= 100%: exceeded_limit (error)
//   - balance below zero: negative_balance (warning), or exceeded_limit
//     (error) when the magnitude exceeds the negative cap
//   - any active compensation period with <= 7 days remaining:
//     compensation_due, error when <= 3 days, warning otherwise
func GenerateAlerts(bank *HourBank, asOf core.DayDate) []Alert {
	var alerts []Alert
	balance := bank.CurrentBalance

	if balance.IsPositive() && bank.MaxPositiveBalance.IsPositive() {
		ratio := balance.Ratio(bank.MaxPositiveBalance)
		switch {
		case ratio.GreaterThanOrEqual(decimal.NewFromInt(1)):
			alerts = append(alerts, Alert{
				Type:     AlertExceededLimit,
				Severity: SeverityError,
				Message: fmt.Sprintf("balance %s exceeds positive cap %s",
					balance.FormatSigned(), bank.MaxPositiveBalance.FormatSigned()),
				Balance: balance,
			})
		case ratio.GreaterThanOrEqual(approachingThreshold):
			alerts = append(alerts, Alert{
				Type:     AlertApproachingLimit,
				Severity: SeverityWarning,
				Message: fmt.Sprintf("balance %s is at %s%% of positive cap %s",
					balance.FormatSigned(), ratio.Mul(decimal.NewFromInt(100)).Round(0),
					bank.MaxPositiveBalance.FormatSigned()),
				Balance: balance,
			})
		}
	}

	if balance.IsNegative() {
		if bank.MaxNegativeBalance.IsPositive() && balance.Abs().GreaterThan(bank.MaxNegativeBalance) {
			alerts = append(alerts, Alert{
				Type:     AlertExceededLimit,
				Severity: SeverityError,
				Message: fmt.Sprintf("balance %s exceeds negative cap %s",
					balance.FormatSigned(), bank.MaxNegativeBalance.FormatSigned()),
				Balance: balance,
			})
		} else {
			alerts = append(alerts, Alert{
				Type:     AlertNegativeBalance,
				Severity: SeverityWarning,
				Message:  fmt.Sprintf("balance is negative: %s", balance.FormatSigned()),
				Balance:  balance,
			})
		}
	}

	for _, p := range bank.Periods {
		if p.Status != PeriodActive {
			continue
		}
		remaining := asOf.DaysUntil(p.EndDate)
		if remaining > 7 {
			continue
		}
		severity := SeverityWarning
		if remaining <= 3 {
			severity = SeverityError
		}
		alerts = append(alerts, Alert{
			Type:     AlertCompensationDue,
			Severity: severity,
			Message: fmt.Sprintf("compensation period %s ends %s (%d days remaining)",
				p.ID, p.EndDate, remaining),
			Balance: balance,
		})
	}

	return alerts
}
