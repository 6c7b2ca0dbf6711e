package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	httpapi "github.com/fyrsmithlabs/decisiond/internal/http"
	"github.com/fyrsmithlabs/decisiond/internal/store"
)

// emit prints raw as indented JSON when --json is set, otherwise calls
// human.
func emit(cmd *cobra.Command, opts *options, raw []byte, human func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if opts.json {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return fmt.Errorf("failed to format response: %w", err)
		}
		buf.WriteByte('\n')
		_, err := w.Write(buf.Bytes())
		return err
	}
	human(w)
	return nil
}

func userQuery(opts *options) url.Values {
	q := url.Values{}
	if opts.user != "" {
		q.Set("user_id", opts.user)
	}
	return q
}

func newCaptureCmd(opts *options) *cobra.Command {
	var req httpapi.CaptureRequest
	var confidence int
	cmd := &cobra.Command{
		Use:   "capture",
		Short: "Capture a decision",
		Long: `Capture a decision. Category and reversibility are assigned by the server.

Examples:
  dctl capture --title "Hire a virtual assistant" \
    --reasoning "Admin work eats my mornings" \
    --expected "Ten more hours a week for sales" --confidence 80`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req.UserID = opts.user
			if cmd.Flags().Changed("confidence") {
				req.ConfidenceScore = &confidence
			}
			var d store.Decision
			raw, err := newClient(opts.server).do(cmd.Context(), http.MethodPost, "/api/v1/decisions", nil, req, &d)
			if err != nil {
				return err
			}
			return emit(cmd, opts, raw, func(w io.Writer) {
				fmt.Fprintf(w, "Captured %s\n", d.ID)
				fmt.Fprintf(w, "  Category:   %s\n", d.Category)
				fmt.Fprintf(w, "  Type:       %s\n", d.DecisionType)
				fmt.Fprintf(w, "  Confidence: %d\n", d.ConfidenceScore)
			})
		},
	}
	cmd.Flags().StringVar(&req.Title, "title", "", "decision title (required)")
	cmd.Flags().StringVar(&req.Reasoning, "reasoning", "", "why you are making it")
	cmd.Flags().StringVar(&req.Assumptions, "assumptions", "", "what must be true")
	cmd.Flags().StringVar(&req.ExpectedOutcome, "expected", "", "expected outcome")
	cmd.Flags().IntVar(&confidence, "confidence", 50, "confidence 0-100")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List captured decisions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := userQuery(opts)
			if limit > 0 {
				q.Set("limit", strconv.Itoa(limit))
			}
			var ds []store.Decision
			raw, err := newClient(opts.server).do(cmd.Context(), http.MethodGet, "/api/v1/decisions", q, nil, &ds)
			if err != nil {
				return err
			}
			return emit(cmd, opts, raw, func(w io.Writer) {
				if len(ds) == 0 {
					fmt.Fprintln(w, "No decisions yet.")
					return
				}
				for _, d := range ds {
					fmt.Fprintf(w, "%s  %-16s  %s\n", d.ID, d.Category, truncate(d.Title, 60))
				}
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum decisions to show (0 for all)")
	return cmd
}

func newReflectCmd(opts *options) *cobra.Command {
	var req httpapi.ReflectRequest
	var accuracy int
	cmd := &cobra.Command{
		Use:   "reflect <decision-id>",
		Short: "Record what actually happened after a decision",
		Long: `Record the actual outcome of a decision and get commentary on it.

Examples:
  dctl reflect 3f2c... --outcome "Onboarding took a month" \
    --lessons "Document the process before delegating"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.DecisionID = args[0]
			if cmd.Flags().Changed("accuracy") {
				req.AccuracyScore = &accuracy
			}
			var resp httpapi.ReflectResponse
			raw, err := newClient(opts.server).do(cmd.Context(), http.MethodPost, "/api/v1/reflections", nil, req, &resp)
			if err != nil {
				return err
			}
			return emit(cmd, opts, raw, func(w io.Writer) {
				fmt.Fprintf(w, "Accuracy: %d/100\n\n%s\n", resp.AccuracyScore, resp.AIInsight)
				if len(resp.NewPrinciples) > 0 {
					fmt.Fprintln(w, "\nNew principles:")
					for _, p := range resp.NewPrinciples {
						fmt.Fprintf(w, "  - %s\n", p)
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&req.ActualOutcome, "outcome", "", "what actually happened (required)")
	cmd.Flags().StringVar(&req.Lessons, "lessons", "", "what you learned")
	cmd.Flags().IntVar(&accuracy, "accuracy", 0, "override the computed accuracy score")
	_ = cmd.MarkFlagRequired("outcome")
	return cmd
}

func newReplayCmd(opts *options) *cobra.Command {
	var topK int
	cmd := &cobra.Command{
		Use:   "replay <query>",
		Short: "Find past decisions similar to a situation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := httpapi.ReplayRequest{UserID: opts.user, Query: strings.Join(args, " "), TopK: topK}
			var resp httpapi.ReplayResponse
			raw, err := newClient(opts.server).do(cmd.Context(), http.MethodPost, "/api/v1/replay", nil, req, &resp)
			if err != nil {
				return err
			}
			return emit(cmd, opts, raw, func(w io.Writer) {
				for _, d := range resp.Decisions {
					fmt.Fprintf(w, "%3.0f%%  %s (%s)\n", d.Similarity*100, truncate(d.Title, 60), d.Category)
					if d.ActualOutcome != "" {
						fmt.Fprintf(w, "      outcome: %s\n", truncate(d.ActualOutcome, 70))
					}
				}
				fmt.Fprintf(w, "\n%s\n", resp.PatternSummary)
			})
		},
	}
	cmd.Flags().IntVar(&topK, "top-k", 5, "number of similar decisions")
	return cmd
}

func newAlternativeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "alternative <decision-id>",
		Short: "Suggest a different approach to a past decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp httpapi.AlternativeResponse
			raw, err := newClient(opts.server).do(cmd.Context(), http.MethodPost, "/api/v1/replay/alternative", nil,
				httpapi.AlternativeRequest{DecisionID: args[0]}, &resp)
			if err != nil {
				return err
			}
			return emit(cmd, opts, raw, func(w io.Writer) {
				fmt.Fprintln(w, resp.AlternativeStrategy)
			})
		},
	}
}

func newDailyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "daily <focus question>",
		Short: "Get three-line guidance for today's focus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := httpapi.DailyRequest{UserID: opts.user, Query: strings.Join(args, " ")}
			var resp httpapi.DailyResponse
			raw, err := newClient(opts.server).do(cmd.Context(), http.MethodPost, "/api/v1/daily/guidance", nil, req, &resp)
			if err != nil {
				return err
			}
			return emit(cmd, opts, raw, func(w io.Writer) {
				fmt.Fprintf(w, "High impact:  %s\n", resp.Guidance.HighImpact)
				fmt.Fprintf(w, "Avoid:        %s\n", resp.Guidance.AvoidBusyWork)
				fmt.Fprintf(w, "Long term:    %s\n", resp.Guidance.LongTermAlignment)
				fmt.Fprintf(w, "\nBased on %d similar decisions (%s).\n",
					resp.Context.SimilarDecisionsUsed, resp.Context.DecisionType)
			})
		},
	}
}

func newInsightsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "insights",
		Short: "Show this week's balance and recent insights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp httpapi.WeeklyResponse
			raw, err := newClient(opts.server).do(cmd.Context(), http.MethodGet, "/api/v1/insights", userQuery(opts), nil, &resp)
			if err != nil {
				return err
			}
			return emit(cmd, opts, raw, func(w io.Writer) {
				s := resp.Summary
				if s.Demo {
					fmt.Fprintln(w, "(no weekly summary yet; showing demo data)")
				}
				fmt.Fprintf(w, "Maintenance %.0f%%  Growth %.0f%%  Brand %.0f%%  Admin %.0f%%  Strategy %.0f%%\n",
					s.Maintenance, s.Growth, s.Brand, s.Admin, s.Strategic)
				fmt.Fprintf(w, "%s\n\n%s\n", s.BalanceLabel, resp.AIInsight)
			})
		},
	}
}

func newPrinciplesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "principles",
		Short: "List principles extracted from your lessons",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp httpapi.PrinciplesResponse
			raw, err := newClient(opts.server).do(cmd.Context(), http.MethodGet, "/api/v1/principles", userQuery(opts), nil, &resp)
			if err != nil {
				return err
			}
			return emit(cmd, opts, raw, func(w io.Writer) {
				if resp.Total == 0 {
					fmt.Fprintln(w, "No principles yet. They appear after five reflections.")
					return
				}
				for i, p := range resp.Principles {
					fmt.Fprintf(w, "%d. %s\n", i+1, p.Description)
				}
			})
		},
	}
}

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check decisiond server health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp httpapi.HealthResponse
			raw, err := newClient(opts.server).do(cmd.Context(), http.MethodGet, "/health", nil, nil, &resp)
			if err != nil {
				return err
			}
			return emit(cmd, opts, raw, func(w io.Writer) {
				fmt.Fprintf(w, "Server Status: %s\n", resp.Status)
				fmt.Fprintf(w, "Server URL: %s\n", opts.server)
			})
		},
	}
}

// truncate shortens s to maxLen runes, ending with "..." when cut.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(r[:maxLen-3]) + "..."
}
