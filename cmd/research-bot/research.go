package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikeboe/research-bot/pkg/config"
	"github.com/mikeboe/research-bot/pkg/research"
)

type researchOptions struct {
	topic   string
	breadth int
	depth   int
	output  string
}

func newResearchCmd() *cobra.Command {
	opts := &researchOptions{}
	cmd := &cobra.Command{
		Use:   "research",
		Short: "Run one research task and write the report to a file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			rcfg := config.LoadResearch()
			if !cmd.Flags().Changed("breadth") {
				opts.breadth = rcfg.Breadth
			}
			if !cmd.Flags().Changed("depth") {
				opts.depth = rcfg.Depth
			}
			if !cmd.Flags().Changed("output") {
				opts.output = cfg.ReportDir
			}

			if !cmd.Flags().Changed("topic") {
				// Interactive Mode
				if err := promptOptions(os.Stdin, cmd.OutOrStdout(), opts); err != nil {
					return err
				}
			}
			opts.topic = strings.TrimSpace(opts.topic)
			if opts.topic == "" {
				return errors.New("topic cannot be empty")
			}
			opts.breadth = config.ClampBreadth(opts.breadth)
			opts.depth = config.ClampDepth(opts.depth)

			return runResearch(cmd, cfg, rcfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.topic, "topic", "t", "", "The research topic")
	cmd.Flags().IntVarP(&opts.breadth, "breadth", "b", 2, "Queries per level (1-10)")
	cmd.Flags().IntVarP(&opts.depth, "depth", "d", 3, "Levels of follow-up research (1-5)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", ".", "Directory for the report file")
	return cmd
}

// promptOptions asks for the topic and, optionally, breadth and depth.
func promptOptions(in io.Reader, out io.Writer, opts *researchOptions) error {
	reader := bufio.NewReader(in)
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		input, _ := reader.ReadString('\n')
		return strings.TrimSpace(input)
	}

	opts.topic = ask("What would you like to research? ")
	if opts.topic == "" {
		return errors.New("topic cannot be empty")
	}
	if v := ask(fmt.Sprintf("Enter research breadth (recommended 2-10, default %d): ", opts.breadth)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid breadth %q", v)
		}
		opts.breadth = n
	}
	if v := ask(fmt.Sprintf("Enter research depth (recommended 1-5, default %d): ", opts.depth)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid depth %q", v)
		}
		opts.depth = n
	}
	return nil
}

func runResearch(cmd *cobra.Command, cfg *config.Config, rcfg *config.ResearchConfig, opts *researchOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	engine, err := research.NewEngineFromConfig(ctx, cfg, rcfg, slog.Default())
	if err != nil {
		return err
	}

	id := research.NewResearchID()
	slog.Info("Starting research", "id", id, "topic", opts.topic, "breadth", opts.breadth, "depth", opts.depth)

	printer := &progressPrinter{out: out}
	res := engine.Run(ctx, research.Task{Topic: opts.topic, Breadth: opts.breadth, Depth: opts.depth}, printer.print)

	fmt.Fprintln(out, "Writing final report...")
	report, err := engine.WriteReport(ctx, opts.topic, res)
	if err != nil {
		return err
	}
	path, err := research.SaveReport(opts.output, id, report)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nResearch complete (ID: %s)\n", id)
	fmt.Fprintf(out, "Sources checked: %d\n", len(res.Sources))
	fmt.Fprintf(out, "Key insights: %d\n", len(res.Findings))
	fmt.Fprintf(out, "Report saved to %s\n", path)
	return nil
}

// progressPrinter prints a line whenever the progress text changes.
type progressPrinter struct {
	out  io.Writer
	last string
}

func (p *progressPrinter) print(s research.ProgressState) {
	line := progressLine(s)
	if line == p.last {
		return
	}
	p.last = line
	fmt.Fprintln(p.out, line)
}

func progressLine(s research.ProgressState) string {
	line := fmt.Sprintf("[depth %d/%d] %d/%d queries", s.CurrentDepth, s.TotalDepth, s.CompletedQueries, s.TotalQueries)
	if s.CurrentQuery != "" {
		line += ": " + s.CurrentQuery
	}
	if s.RateLimitNotice != "" {
		line += " | " + s.RateLimitNotice
	}
	return line
}
