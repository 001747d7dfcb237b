// Package console is the line-oriented terminal surface: prompts for missing
// run options, the y/N confirmation and the progress lines of a run.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fenilsonani/agesweep/internal/config"
	"github.com/fenilsonani/agesweep/internal/planner"
	"github.com/fenilsonani/agesweep/internal/reporter"
)

// ErrNoInput is returned when input ends before an answer was given
var ErrNoInput = errors.New("no input")

// Prompter asks questions on a line-based terminal. It implements
// planner.Confirmer. A Prompter is not safe for concurrent use.
type Prompter struct {
	in  *bufio.Reader
	out io.Writer

	// pending is a read left running by a cancelled ask. The next ask takes
	// its line instead of racing it on in.
	pending chan line
}

// NewPrompter creates a Prompter reading answers from in
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:  bufio.NewReader(in),
		out: out,
	}
}

type line struct {
	text string
	err  error
}

// ask prints question and reads one line. Input ending without a newline
// still counts as an answer.
func (p *Prompter) ask(ctx context.Context, question string) (string, error) {
	fmt.Fprint(p.out, question)

	ch := p.pending
	p.pending = nil
	if ch == nil {
		ch = make(chan line, 1)
		go func() {
			text, err := p.in.ReadString('\n')
			ch <- line{text: text, err: err}
		}()
	}

	select {
	case <-ctx.Done():
		p.pending = ch
		fmt.Fprintln(p.out)
		return "", ctx.Err()
	case l := <-ch:
		switch {
		case l.err == nil:
		case errors.Is(l.err, io.EOF) && l.text != "":
		case errors.Is(l.err, io.EOF):
			return "", ErrNoInput
		default:
			return "", l.err
		}
		return strings.TrimSpace(l.text), nil
	}
}

// AskRoot asks for the folder to scan until an existing directory is given
func (p *Prompter) AskRoot(ctx context.Context) (string, error) {
	for {
		answer, err := p.ask(ctx, "Enter the full path of the folder to clean: ")
		if err != nil {
			return "", err
		}
		if info, err := os.Stat(answer); answer != "" && err == nil && info.IsDir() {
			return answer, nil
		}
		fmt.Fprintln(p.out, "Invalid path. Please try again.")
	}
}

// AskArchive asks for the optional archive folder. An empty answer selects
// delete mode.
func (p *Prompter) AskArchive(ctx context.Context) (string, error) {
	return p.ask(ctx, "Enter the full path of the archive folder (optional, leave blank to skip archiving): ")
}

// AskDays asks for the age threshold. Anything but a positive integer falls
// back to the default with a notice.
func (p *Prompter) AskDays(ctx context.Context) (int, error) {
	answer, err := p.ask(ctx, "Delete or archive files older than how many days? ")
	if err != nil {
		return 0, err
	}
	days, ok := config.ParseThresholdDays(answer)
	if !ok {
		fmt.Fprintf(p.out, "Invalid number. Defaulting to %d days.\n", config.DefaultAgeDays)
	}
	return days, nil
}

// Confirm lists the plan and asks once. Only "y" or "yes" confirms; an empty
// answer or end of input declines.
func (p *Prompter) Confirm(ctx context.Context, plan *planner.Plan) (bool, error) {
	fmt.Fprintln(p.out)
	if err := reporter.New(p.out, reporter.FormatSummary).ReportPlan(plan); err != nil {
		return false, err
	}

	answer, err := p.ask(ctx, fmt.Sprintf("\n%s [y/N]: ", plan.Question()))
	if errors.Is(err, ErrNoInput) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return planner.IsAffirmative(answer), nil
}
