package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/harrisonrobin/friday/pkg/bundle"
	"github.com/harrisonrobin/friday/pkg/derive"
	"github.com/harrisonrobin/friday/pkg/engine"
	"github.com/harrisonrobin/friday/pkg/journal"
	"github.com/harrisonrobin/friday/pkg/llm"
	"github.com/harrisonrobin/friday/pkg/model"
	"github.com/harrisonrobin/friday/pkg/prompt"
	"github.com/harrisonrobin/friday/pkg/source"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// withApp builds the app, runs fn and always flushes metrics afterwards.
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := newApp(ctx, opts)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a)
}

// dateFlag parses --date, defaulting to today in the configured timezone.
func dateFlag(cmd *cobra.Command, a *app) (civil.Date, error) {
	s, _ := cmd.Flags().GetString("date")
	if s == "" {
		return a.today(), nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid --date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

func addDateFlag(cmd *cobra.Command) {
	cmd.Flags().String("date", "", "Date to compile for (YYYY-MM-DD, default today)")
}

func newTasksCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List merged tasks from every task source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				day, err := dateFlag(cmd, a)
				if err != nil {
					return err
				}
				snap, err := a.engine.Tasks(ctx, day)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(snap.Tasks) == 0 {
					fmt.Fprintln(out, "No tasks.")
				}
				for _, t := range snap.Tasks {
					due := "-"
					if t.Due != nil {
						due = t.Due.String()
					}
					fmt.Fprintf(out, "P%d  %-10s  %-12s  %s [%s]\n", t.Priority, due, t.Project, t.Title, t.Source)
				}
				printStatus(out, snap.Status)
				return opts.partial(snap.Unavailable)
			})
		},
	}
	addDateFlag(cmd)
	return cmd
}

func newCalendarCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "calendar [day|week]",
		Short:     "List merged calendar events",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"day", "week"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				day, err := dateFlag(cmd, a)
				if err != nil {
					return err
				}
				r := source.Day(day)
				if len(args) == 1 && args[0] == "week" {
					r = engine.WeekRange(day)
				}
				snap, err := a.engine.Events(ctx, r)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(snap.Events) == 0 {
					fmt.Fprintln(out, "No events.")
				}
				for _, e := range snap.Events {
					start := e.Start.In(a.loc)
					when := start.Format("Mon 01/02 15:04") + "-" + e.End.In(a.loc).Format("15:04")
					if e.AllDay {
						when = start.Format("Mon 01/02") + " all day"
					}
					line := fmt.Sprintf("%-22s %s", when, e.Title)
					if e.Location != "" {
						line += " @ " + e.Location
					}
					fmt.Fprintf(out, "%s [%s]\n", line, e.Source)
				}
				printStatus(out, snap.Status)
				return opts.partial(snap.Unavailable)
			})
		},
	}
	addDateFlag(cmd)
	return cmd
}

type compileFunc func(ctx context.Context, a *app, day civil.Date) (bundle.Bundle, error)

func compileDay(ctx context.Context, a *app, day civil.Date) (bundle.Bundle, error) {
	return a.engine.CompileDay(ctx, day)
}

func compileWeek(ctx context.Context, a *app, day civil.Date) (bundle.Bundle, error) {
	return a.engine.CompileWeek(ctx, day)
}

// compileReview quotes the last seven days of the journal, day included.
func compileReview(ctx context.Context, a *app, day civil.Date) (bundle.Bundle, error) {
	entries, err := journal.NewFileJournal(a.cfg.Journal.Dir).ReadRange(day.AddDays(-7), day)
	if err != nil {
		return bundle.Bundle{}, fmt.Errorf("failed to read journal: %w", err)
	}
	journals := make([]bundle.JournalEntry, len(entries))
	for i, e := range entries {
		journals[i] = bundle.JournalEntry{Date: e.Date, Content: e.Content}
	}
	return a.engine.CompileReview(ctx, day, journals)
}

func newCompileCmd(opts *rootOptions) *cobra.Command {
	var week, review, asJSON bool
	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile the context bundle and print the rendered prompt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				day, err := dateFlag(cmd, a)
				if err != nil {
					return err
				}
				build := compileDay
				switch {
				case week:
					build = compileWeek
				case review:
					build = compileReview
				}
				b, err := build(ctx, a, day)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if asJSON {
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(b); err != nil {
						return err
					}
					return opts.partial(b.Unavailable)
				}
				text, err := prompt.NewRenderer(a.cfg.TemplatesDir).Render(prompt.ForPeriod(b.Period), b)
				if err != nil {
					return err
				}
				if _, err := io.WriteString(out, text); err != nil {
					return err
				}
				return opts.partial(b.Unavailable)
			})
		},
	}
	cmd.Flags().BoolVar(&week, "week", false, "Compile today through Saturday")
	cmd.Flags().BoolVar(&review, "review", false, "Compile the weekly review")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the bundle as JSON")
	cmd.MarkFlagsMutuallyExclusive("week", "review")
	addDateFlag(cmd)
	return cmd
}

// brief compiles, asks the reasoner and journals the answer under header.
func brief(cmd *cobra.Command, opts *rootOptions, header string, build compileFunc) error {
	return withApp(cmd, opts, func(ctx context.Context, a *app) error {
		day, err := dateFlag(cmd, a)
		if err != nil {
			return err
		}
		force, _ := cmd.Flags().GetBool("force")
		j := journal.NewFileJournal(a.cfg.Journal.Dir)
		if !force {
			done, err := j.HasSection(day, header)
			if err != nil {
				return err
			}
			if done {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s for %s already exists (use --force to regenerate)\n", header, day)
				return nil
			}
		}

		b, err := build(ctx, a, day)
		if err != nil {
			return err
		}
		text, err := prompt.NewRenderer(a.cfg.TemplatesDir).Render(prompt.ForPeriod(b.Period), b)
		if err != nil {
			return err
		}

		reasoner := llm.NewClaudeCLI(a.cfg.Reasoner.Command, a.cfg.Reasoner.Timeout, a.log)
		answer, err := reasoner.Generate(ctx, text)
		if err != nil {
			return fmt.Errorf("failed to generate %s: %w", strings.ToLower(header), err)
		}
		answer = strings.TrimSpace(answer)
		if err := j.Append(day, header, answer); err != nil {
			return err
		}
		a.log.Info("journal updated", zap.String("date", day.String()), zap.String("section", header))

		if _, err := fmt.Fprintln(cmd.OutOrStdout(), answer); err != nil {
			return err
		}
		return opts.partial(b.Unavailable)
	})
}

func newMorningCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "morning",
		Short: "Generate today's briefing and add it to the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return brief(cmd, opts, journal.MorningBriefing, compileDay)
		},
	}
	cmd.Flags().Bool("force", false, "Regenerate even if today's briefing exists")
	addDateFlag(cmd)
	return cmd
}

func newWeekCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "week",
		Short: "Generate the plan for the rest of the week and add it to the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return brief(cmd, opts, journal.WeeklyPlan, compileWeek)
		},
	}
	cmd.Flags().Bool("force", false, "Regenerate even if this week's plan exists")
	addDateFlag(cmd)
	return cmd
}

func newReviewCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Review the past week's journal and plan the next, then add it to the journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return brief(cmd, opts, journal.WeeklyReview, compileReview)
		},
	}
	cmd.Flags().Bool("force", false, "Regenerate even if today's review exists")
	addDateFlag(cmd)
	return cmd
}

func newInboxCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inbox",
		Short: "List tasks not filed into any project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				snap, err := a.engine.Tasks(ctx, a.today())
				if err != nil {
					return err
				}
				inbox := derive.Inbox(snap.Tasks)
				out := cmd.OutOrStdout()
				if asJSON {
					if inbox == nil {
						inbox = []model.Task{}
					}
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					if err := enc.Encode(inbox); err != nil {
						return err
					}
					return opts.partial(snap.Unavailable)
				}
				if len(inbox) == 0 {
					fmt.Fprintln(out, "Inbox is empty.")
				}
				for _, t := range inbox {
					fmt.Fprintf(out, "- %s [%s]\n", t.Title, t.Source)
				}
				printStatus(out, snap.Status)
				return opts.partial(snap.Unavailable)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tasks as JSON")
	return cmd
}

func newCacheCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Fetch cache utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Drop every cached fetch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if err := a.cache.Clear(ctx); err != nil {
					return fmt.Errorf("failed to clear cache: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared.")
				return nil
			})
		},
	})
	return cmd
}

// partial fails a finished run that had to leave a source out, unless
// --allow-partial was given. Stale sources do not count.
func (o *rootOptions) partial(missing []bundle.UnavailableSource) error {
	if len(missing) == 0 || o.allowPartial {
		return nil
	}
	names := make([]string, len(missing))
	for i, u := range missing {
		names[i] = u.Source
	}
	return fmt.Errorf("%w: %s (rerun with --allow-partial to accept)", source.ErrSourceUnavailable, strings.Join(names, ", "))
}

func printStatus(w io.Writer, st engine.Status) {
	for _, u := range st.Unavailable {
		fmt.Fprintf(w, "! %s unavailable: %s\n", u.Source, u.Error)
	}
	for _, s := range st.Stale {
		fmt.Fprintf(w, "! %s stale (cached %s)\n", s.Source, s.FetchedAt.Format("2006-01-02 15:04"))
	}
	if st.Dropped > 0 {
		fmt.Fprintf(w, "! %d malformed records dropped\n", st.Dropped)
	}
}
