package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/contact-sync/internal/engine"
	"github.com/Veraticus/contact-sync/internal/model"
	"github.com/Veraticus/contact-sync/internal/normalize"
	"github.com/Veraticus/contact-sync/internal/resolve"
)

var _ engine.Prompter = (*Prompter)(nil)

// Prompter asks the user to resolve conflicts one at a time on a terminal.
type Prompter struct {
	writer      io.Writer
	reader      *NonBlockingReader
	progressBar *progressbar.ProgressBar
	countryCode string
	lastIndex   int
}

// NewPrompter creates a prompter reading answers from reader. Nil arguments
// default to stdin and stdout.
func NewPrompter(reader io.Reader, writer io.Writer, countryCode string) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		reader:      NewNonBlockingReader(reader),
		writer:      writer,
		countryCode: countryCode,
		lastIndex:   -1,
	}
}

// SetTotal starts the progress bar for total conflicts.
func (p *Prompter) SetTotal(total int) {
	if total <= 0 {
		p.progressBar = nil
		return
	}
	p.progressBar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Resolving conflicts...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			p.println()
		}),
	)
}

// Finish completes the progress bar.
func (p *Prompter) Finish() {
	if p.progressBar == nil {
		return
	}
	if err := p.progressBar.Finish(); err != nil {
		slog.Warn("Failed to finish progress bar", "error", err)
	}
}

// ResolveConflict shows one conflict and reads the decision.
func (p *Prompter) ResolveConflict(ctx context.Context, conflict *resolve.Conflict, progress engine.Progress) (model.ConflictResolution, error) {
	if err := ctx.Err(); err != nil {
		return model.ConflictResolution{}, err
	}

	if conflict.Index != p.lastIndex {
		p.lastIndex = conflict.Index
		p.advance()
	}

	title := fmt.Sprintf("Conflict %d of %d: %s", progress.Position, progress.Total, describeType(conflict.Type))
	p.println(RenderBox(title, p.formatConflict(conflict)))

	choices := []string{"i", "m", "c", "s"}
	p.println(FormatPrompt("Options:"))
	if target := conflict.Target(); target != nil {
		choices = append([]string{"k"}, choices...)
		p.printf("  [K] Keep registry: %s %s\n", SuccessStyle.Render(target.Name), p.phone(target.Phone))
	}
	p.println("  [I] Use imported data")
	p.println("  [M] Enter name and phone manually")
	p.println("  [C] Create a new registry identity")
	p.println("  [S] Skip this and all remaining conflicts")
	p.println()

	choice, err := p.promptChoice(ctx, "Choice", choices)
	if err != nil {
		return model.ConflictResolution{}, err
	}

	res := model.ConflictResolution{RecordIndex: conflict.Index}
	switch choice {
	case "k":
		res.Action = model.ActionKeepRegistry
	case "i":
		res.Action = model.ActionUseImported
	case "m":
		res.Action = model.ActionManualEdit
		if res.ManualName, err = p.promptLine(ctx, "Name", conflict.Cluster.IdentityName); err != nil {
			return model.ConflictResolution{}, err
		}
		if res.ManualPhone, err = p.promptLine(ctx, "Phone", conflict.Cluster.PrimaryPhone); err != nil {
			return model.ConflictResolution{}, err
		}
	case "c":
		res.Action = model.ActionCreateIdentity
		if !normalize.ValidatePhone(conflict.Cluster.PrimaryPhone).Valid {
			if res.ManualPhone, err = p.promptLine(ctx, "Phone for the new identity", ""); err != nil {
				return model.ConflictResolution{}, err
			}
		}
	case "s":
		return model.ConflictResolution{}, engine.ErrSkipRemaining
	}
	return res, nil
}

// ShowRejection explains why a decision was refused.
func (p *Prompter) ShowRejection(_ context.Context, conflict *resolve.Conflict, err error) {
	p.println(FormatError(fmt.Sprintf("Could not apply decision for %s: %v", conflict.Cluster.IdentityName, err)))
}

// ShowSkipped lists the defaults applied to skipped conflicts.
func (p *Prompter) ShowSkipped(_ context.Context, defaults []resolve.SkipDefault) {
	if len(defaults) == 0 {
		return
	}
	p.println(FormatWarning(fmt.Sprintf("Skipped %d conflicts with default decisions:", len(defaults))))
	for _, d := range defaults {
		p.printf("  • %s → %s\n", d.Name, d.Action)
	}
}

func (p *Prompter) formatConflict(c *resolve.Conflict) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s Imported: %s\n", ContactIcon, BoldStyle.Render(c.Cluster.IdentityName))
	if phones := c.Cluster.Phones(); len(phones) > 0 {
		display := make([]string, len(phones))
		for i, ph := range phones {
			display[i] = normalize.DisplayPhone(ph, p.countryCode)
		}
		fmt.Fprintf(&b, "  Phones: %s\n", strings.Join(display, ", "))
	} else {
		b.WriteString("  Phones: none\n")
	}
	if !c.Cluster.TotalOutstanding.IsZero() {
		fmt.Fprintf(&b, "  Total: %s\n", c.Cluster.TotalOutstanding.StringFixed(2))
	}
	fmt.Fprintf(&b, "  Rows (%d):\n", len(c.Cluster.Members))
	for _, m := range c.Cluster.Members {
		fmt.Fprintf(&b, "    #%d %s %s\n", m.SourceRowIndex+1, m.Name, SubtitleStyle.Render(m.Phone))
	}

	switch {
	case c.Match != nil:
		fmt.Fprintf(&b, "\n%s Registry: %s %s", LinkIcon, BoldStyle.Render(c.Match.Name), p.phone(c.Match.Phone))
	case c.Candidate != nil:
		fmt.Fprintf(&b, "\n%s Similar: %s %s (%.0f%%, %s)", LinkIcon,
			BoldStyle.Render(c.Candidate.Identity.Name), p.phone(c.Candidate.Identity.Phone),
			c.Candidate.Score*100, c.Candidate.Tier)
	default:
		fmt.Fprintf(&b, "\n%s", SubtitleStyle.Render("No similar registry identity"))
	}
	return b.String()
}

func (p *Prompter) phone(ph string) string {
	if ph == "" {
		return SubtitleStyle.Render("(no phone)")
	}
	return InfoStyle.Render(normalize.DisplayPhone(ph, p.countryCode))
}

func describeType(t model.ConflictType) string {
	switch t {
	case model.ConflictPhoneMismatch:
		return "phone mismatch"
	case model.ConflictNameMismatch:
		return "similar name"
	case model.ConflictNoMatch:
		return "not in registry"
	default:
		return string(t)
	}
}

func (p *Prompter) advance() {
	if p.progressBar == nil {
		return
	}
	if err := p.progressBar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
	p.println()
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		p.printf("%s: ", FormatPrompt(prompt))

		input, err := p.readLine(ctx)
		if err != nil {
			return "", err
		}

		choice := strings.ToLower(input)
		for _, valid := range validChoices {
			if choice == valid {
				return choice, nil
			}
		}
		p.println(FormatError("Invalid choice. Please try again."))
	}
}

// promptLine reads a value, returning def when the user enters nothing.
func (p *Prompter) promptLine(ctx context.Context, prompt, def string) (string, error) {
	if def != "" {
		prompt = fmt.Sprintf("%s [%s]", prompt, def)
	}
	p.printf("%s", FormatPrompt(prompt))

	input, err := p.readLine(ctx)
	if err != nil {
		return "", err
	}
	if input == "" {
		return def, nil
	}
	return input, nil
}

func (p *Prompter) readLine(ctx context.Context) (string, error) {
	line, err := p.reader.ReadLine(ctx)
	switch {
	case errors.Is(err, ErrInputCancelled):
		return "", ctx.Err()
	case errors.Is(err, io.EOF):
		return "", fmt.Errorf("input terminated")
	}
	return line, err
}

func (p *Prompter) println(a ...any) {
	if _, err := fmt.Fprintln(p.writer, a...); err != nil {
		slog.Warn("Failed to write output", "error", err)
	}
}

func (p *Prompter) printf(format string, a ...any) {
	if _, err := fmt.Fprintf(p.writer, format, a...); err != nil {
		slog.Warn("Failed to write output", "error", err)
	}
}
