package notifier

import (
	"fmt"
	"html"
	"math"
	"strings"

	"MediaSentiment/internal/recorder"
)

// FormatRunReport formats a successful run into a Telegram message.
func FormatRunReport(run *recorder.RunRecord) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📈 <b>Sentiment forecast</b> | %s\n\n", run.FinishedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Model: ARIMA%s on <code>%s</code>\n", run.Order, html.EscapeString(run.Endog))
	fmt.Fprintf(&b, "Training %d-%d: %d rows, RMSE %s\n", run.TrainFrom, run.TrainTo-1, run.TrainRows, formatFloat(run.TrainRMSE))
	fmt.Fprintf(&b, "Testing ≥%d: %d rows, RMSE %s\n", run.TrainTo, run.TestRows, formatFloat(run.TestRMSE))

	if m := run.Model; m != nil {
		b.WriteString("\n<b>Coefficients:</b>\n")
		for _, c := range m.Coefficients() {
			fmt.Fprintf(&b, "  %s: %+.4f\n", html.EscapeString(c.Name), c.Value)
		}
		fmt.Fprintf(&b, "  log-lik %.2f | AIC %.2f\n", m.LogLik, m.AIC)
	}

	if run.OutputPath != "" {
		fmt.Fprintf(&b, "\nOutput: <code>%s</code>\n", html.EscapeString(run.OutputPath))
	}
	fmt.Fprintf(&b, "Run %s (%.1fs)", run.ID, run.Duration().Seconds())
	return b.String()
}

// FormatFailure formats a failed run.
func FormatFailure(run *recorder.RunRecord) string {
	return fmt.Sprintf("❌ <b>Sentiment forecast failed</b> | %s\n\n%s\n\nRun %s",
		run.FinishedAt.Format("2006-01-02 15:04"), html.EscapeString(run.Error), run.ID)
}

// FormatRun picks the report or the failure message for run.
func FormatRun(run *recorder.RunRecord) string {
	if run.Status == recorder.StatusSuccess {
		return FormatRunReport(run)
	}
	return FormatFailure(run)
}

// FormatHelp lists the supported commands.
func FormatHelp() string {
	return "Available commands:\n• /run - run the forecast now\n• /last - show the last run"
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.4f", v)
}
