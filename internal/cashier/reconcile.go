package cashier

import "math"

// tolerance absorbs cent-level float noise when comparing sums.
const tolerance = 0.005

// reconcile compares the manually entered report against its own breakdown
// rows and against the timeline totals for the same day and location. Every
// discrepancy becomes a warning; nothing here mutates state.
func reconcile(report Report, lines []ReportLine, payments []ReportPayment, ledgerIncome, ledgerExpense float64, ledgerPayments map[int64]float64) []Warning {
	var warnings []Warning

	var lineIncome, lineExpense float64
	for _, line := range lines {
		switch line.Type {
		case LineIncome:
			lineIncome += line.Amount
		case LineExpense:
			lineExpense += line.Amount
		}
	}
	if len(lines) > 0 {
		if !near(lineIncome, report.TotalIncome) {
			warnings = append(warnings, Warning{Code: WarnLineTotalIncome, Field: "total_income", Expected: round(lineIncome), Actual: report.TotalIncome})
		}
		if !near(lineExpense, report.TotalExpenses) {
			warnings = append(warnings, Warning{Code: WarnLineTotalExpense, Field: "total_expenses", Expected: round(lineExpense), Actual: report.TotalExpenses})
		}
	}

	expectedClosing := report.OpeningBalance + report.TotalIncome - report.TotalExpenses
	if !near(expectedClosing, report.ClosingBalance) {
		warnings = append(warnings, Warning{Code: WarnBalanceEquation, Field: "closing_balance", Expected: round(expectedClosing), Actual: report.ClosingBalance})
	}

	if !near(ledgerIncome, report.TotalIncome) {
		warnings = append(warnings, Warning{Code: WarnLedgerIncome, Field: "total_income", Expected: round(ledgerIncome), Actual: report.TotalIncome})
	}
	if !near(ledgerExpense, report.TotalExpenses) {
		warnings = append(warnings, Warning{Code: WarnLedgerExpense, Field: "total_expenses", Expected: round(ledgerExpense), Actual: report.TotalExpenses})
	}

	for _, payment := range payments {
		if !near(ledgerPayments[payment.PaymentMethodID], payment.Amount) {
			warnings = append(warnings, Warning{Code: WarnPaymentMethod, Field: "payment_method_id", Expected: round(ledgerPayments[payment.PaymentMethodID]), Actual: payment.Amount})
		}
	}
	return warnings
}

func near(a, b float64) bool {
	return math.Abs(a-b) < tolerance
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
