package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/credit-engine/internal/lifecycle"
	"github.com/Veraticus/credit-engine/internal/model"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"
)

// ErrReviewQuit is returned when the reviewer ends the session early.
var ErrReviewQuit = errors.New("review ended by user")

// Decision is the reviewer's choice for one opportunity. An empty Action means skipped.
type Decision struct {
	OpportunityID string
	Action        string
	Reason        string
}

// Skipped reports whether no action was chosen.
func (d Decision) Skipped() bool {
	return d.Action == ""
}

// ReviewStats summarizes a review session.
type ReviewStats struct {
	ConfirmedCredit decimal.Decimal
	Duration        time.Duration
	Reviewed        int
	Confirmed       int
	Rejected        int
	Resolved        int
	Skipped         int
}

type reviewOption struct {
	key   string
	label string
}

// Reviewer walks a human through pending opportunities one at a time.
type Reviewer struct {
	startTime   time.Time
	writer      io.Writer
	reader      *NonBlockingReader
	progressBar *progressbar.ProgressBar
	stats       ReviewStats
	total       int
	statsMutex  sync.RWMutex
}

// NewReviewer creates a reviewer reading answers from reader.
func NewReviewer(reader io.Reader, writer io.Writer) *Reviewer {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}

	return &Reviewer{
		reader:    NewNonBlockingReader(reader),
		writer:    writer,
		startTime: time.Now(),
		stats:     ReviewStats{ConfirmedCredit: decimal.Zero},
	}
}

// SetTotal sets the number of opportunities in the session and starts the progress bar.
func (r *Reviewer) SetTotal(total int) {
	r.total = total
	r.progressBar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(r.writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription("Reviewing opportunities"),
	)
}

// Reviewable reports whether a review session can act on the opportunity.
func Reviewable(opp *model.CreditOpportunity) bool {
	return opp.Status == model.StatusIdentified || opp.Status == model.StatusAnalyzing
}

// Review shows one opportunity and asks what to do with it.
func (r *Reviewer) Review(ctx context.Context, opp *model.CreditOpportunity) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	decision := Decision{OpportunityID: opp.ID}
	if !Reviewable(opp) {
		r.record(opp, decision)
		return decision, nil
	}

	if _, err := fmt.Fprintln(r.writer, RenderBox(ReviewIcon+" Credit Opportunity", formatOpportunity(opp))); err != nil {
		return Decision{}, fmt.Errorf("failed to write opportunity box: %w", err)
	}

	var options []reviewOption
	switch {
	case opp.Status == model.StatusAnalyzing:
		options = append(options, reviewOption{"i", "Analysis done, mark as identified"})
	case opp.RetentionRequired:
		options = append(options, reviewOption{"c", "Confirm credit"})
	}
	options = append(options,
		reviewOption{"r", "Reject with reason"},
		reviewOption{"s", "Skip for now"},
		reviewOption{"q", "Quit review"},
	)

	valid := make([]string, 0, len(options))
	for _, o := range options {
		if _, err := fmt.Fprintf(r.writer, "  [%s] %s\n", strings.ToUpper(o.key), o.label); err != nil {
			return Decision{}, fmt.Errorf("failed to write options: %w", err)
		}
		valid = append(valid, o.key)
	}

	choice, err := r.promptChoice(ctx, "Choice", valid)
	if err != nil {
		return Decision{}, err
	}

	switch choice {
	case "c":
		decision.Action = lifecycle.ActionConfirm
	case "i":
		decision.Action = lifecycle.ActionResolve
	case "r":
		reason, err := r.promptReason(ctx)
		if err != nil {
			return Decision{}, err
		}
		decision.Action = lifecycle.ActionReject
		decision.Reason = reason
	case "s":
	case "q":
		return Decision{}, ErrReviewQuit
	}

	r.record(opp, decision)
	return decision, nil
}

func (r *Reviewer) record(opp *model.CreditOpportunity, decision Decision) {
	r.statsMutex.Lock()
	defer r.statsMutex.Unlock()

	r.stats.Reviewed++
	switch decision.Action {
	case lifecycle.ActionConfirm:
		r.stats.Confirmed++
		r.stats.ConfirmedCredit = r.stats.ConfirmedCredit.Add(opp.TotalCredit())
	case lifecycle.ActionReject:
		r.stats.Rejected++
	case lifecycle.ActionResolve:
		r.stats.Resolved++
	default:
		r.stats.Skipped++
	}

	if r.progressBar != nil {
		if err := r.progressBar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
}

// Stats returns statistics about the review session.
func (r *Reviewer) Stats() ReviewStats {
	r.statsMutex.RLock()
	defer r.statsMutex.RUnlock()

	stats := r.stats
	stats.Duration = time.Since(r.startTime)
	return stats
}

// ShowCompletion displays the session summary.
func (r *Reviewer) ShowCompletion() {
	if r.progressBar != nil {
		if err := r.progressBar.Finish(); err != nil {
			slog.Warn("Failed to finish progress bar", "error", err)
		}
		if _, err := fmt.Fprintln(r.writer); err != nil {
			slog.Warn("Failed to write newline", "error", err)
		}
	}

	stats := r.Stats()
	summary := fmt.Sprintf("  • Reviewed: %d of %d\n", stats.Reviewed, r.total) +
		fmt.Sprintf("  • Confirmed: %d (%s)\n", stats.Confirmed, FormatBRL(stats.ConfirmedCredit)) +
		fmt.Sprintf("  • Rejected: %d\n", stats.Rejected) +
		fmt.Sprintf("  • Back to identified: %d\n", stats.Resolved) +
		fmt.Sprintf("  • Skipped: %d\n", stats.Skipped) +
		fmt.Sprintf("  • Time taken: %s\n", stats.Duration.Round(time.Second))

	if _, err := fmt.Fprintln(r.writer, RenderBox("Review Complete", summary)); err != nil {
		slog.Warn("Failed to write completion box", "error", err)
	}
}

func formatOpportunity(opp *model.CreditOpportunity) string {
	status := InfoStyle.Render(string(opp.Status))
	if opp.Status == model.StatusAnalyzing {
		status = WarningStyle.Render(string(opp.Status) + " (manual analysis required)")
	}

	return fmt.Sprintf("  Payment: %s\n", opp.PaymentID) +
		fmt.Sprintf("  Supplier: %s\n", opp.SupplierID) +
		fmt.Sprintf("  Rule: %s\n", opp.ApplicableRule) +
		fmt.Sprintf("  Rate: %s%%\n", opp.RetentionRate.String()) +
		fmt.Sprintf("  Retention: %s\n", FormatBRL(opp.RetentionAmount)) +
		fmt.Sprintf("  Correction: %s\n", FormatBRL(opp.CorrectionAmount)) +
		fmt.Sprintf("  Total credit: %s\n", FormatMoney(opp.TotalCredit())) +
		fmt.Sprintf("  Confidence: %d%%\n", opp.Confidence) +
		fmt.Sprintf("  Status: %s", status)
}

func (r *Reviewer) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		if _, err := fmt.Fprint(r.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := r.reader.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("input terminated: %w", ErrReviewQuit)
			}
			return "", err
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}

		if _, err := fmt.Fprintln(r.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}

func (r *Reviewer) promptReason(ctx context.Context) (string, error) {
	for {
		if _, err := fmt.Fprint(r.writer, FormatPrompt("Rejection reason")); err != nil {
			return "", fmt.Errorf("failed to write reason prompt: %w", err)
		}

		input, err := r.reader.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("input terminated: %w", ErrReviewQuit)
			}
			return "", err
		}

		if input != "" {
			return input, nil
		}

		if _, err := fmt.Fprintln(r.writer, FormatError("A reason is required to reject a credit.")); err != nil {
			slog.Warn("Failed to write empty reason error", "error", err)
		}
	}
}
