package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/softtagz-sys/medikits-flowchart/internal/app"
	"github.com/softtagz-sys/medikits-flowchart/internal/catalog"
	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
	"github.com/softtagz-sys/medikits-flowchart/internal/metrics"
	"github.com/softtagz-sys/medikits-flowchart/internal/snapshot"
	"github.com/softtagz-sys/medikits-flowchart/internal/traversal"
)

var errInvalidFlowchart = errors.New("flowchart has blocking issues")

func newValidateCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "validate FILE",
		Short: "Report structural issues in a flowchart",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			g, err := c.load(cmd, svc, args[0])
			if err != nil {
				return err
			}
			issues := svc.Check(g)

			out := cmd.OutOrStdout()
			if asJSON {
				if issues == nil {
					issues = []flowchart.Issue{}
				}
				if err := writeJSON(out, issues); err != nil {
					return err
				}
			} else if len(issues) == 0 {
				fmt.Fprintf(out, "%s: ok (%d nodes)\n", args[0], len(g.Nodes))
			} else {
				for _, issue := range issues {
					fmt.Fprintln(out, issue.String())
				}
			}
			if flowchart.HasErrors(issues) {
				return errInvalidFlowchart
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print issues as JSON")
	return cmd
}

func newLayoutCmd(c *cli) *cobra.Command {
	var output, format string
	cmd := &cobra.Command{
		Use:   "layout FILE",
		Short: "Place nodes in bands and route the edges",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			svc, err := c.service()
			if err != nil {
				return err
			}
			g, err := c.load(cmd, svc, args[0])
			if err != nil {
				return err
			}
			switch strings.ToLower(output) {
			case "json":
				return writeJSON(cmd.OutOrStdout(), svc.Layout(g))
			case "dot", "gv":
				dot, err := svc.RenderDOT(g)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(dot)
				return err
			case "graph":
				f, err := snapshot.ParseFormat(format)
				if err != nil {
					return err
				}
				data, err := snapshot.Marshal(svc.Pin(g), f)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			return fmt.Errorf("--output %q: want json, dot or graph", output)
		}),
	}
	cmd.Flags().StringVarP(&output, "output", "o", "json", "json, dot or graph (the flowchart with positions stored)")
	cmd.Flags().StringVar(&format, "format", "yaml", "snapshot format for --output graph")
	return cmd
}

func newWalkCmd(c *cli) *cobra.Command {
	var (
		choose      string
		rawVars     []string
		asJSON      bool
		showMetrics bool
	)
	cmd := &cobra.Command{
		Use:   "walk FILE",
		Short: "Walk a flowchart with a scripted list of answers",
		Long: `Walk starts a session on FILE and applies --choose in order.
Each entry is a choice index, c (continue), b (back) or a (abort).`,
		Args: cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			actions, err := app.ParseActions(choose)
			if err != nil {
				return err
			}
			vars, err := app.ParseVars(rawVars)
			if err != nil {
				return err
			}
			svc, err := c.service()
			if err != nil {
				return err
			}
			g, err := c.load(cmd, svc, args[0])
			if err != nil {
				return err
			}

			report, walkErr := svc.Walk(g, actions, vars)
			out := cmd.OutOrStdout()
			if asJSON {
				if err := writeJSON(out, report); err != nil {
					return err
				}
			} else {
				printReport(out, report)
			}
			if showMetrics {
				c.flush()
				if err := metrics.WriteText(out, c.registry); err != nil {
					return err
				}
			}
			return walkErr
		}),
	}
	cmd.Flags().StringVar(&choose, "choose", "", "comma separated actions, e.g. 0,c,1")
	cmd.Flags().StringArrayVar(&rawVars, "var", nil, "session variable key=value (repeatable)")
	cmd.Flags().BoolVar(&c.expert, "expert", false, "show expert instructions and enable expert choices")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "print traversal metrics after the report")
	return cmd
}

func printReport(w io.Writer, r traversal.Report) {
	fmt.Fprintf(w, "%s (%s)\n", r.GraphName, r.GraphID)
	for i, e := range r.Steps {
		fmt.Fprintf(w, "%2d. %s\n", i+1, e.Title)
		if e.Instruction != "" {
			fmt.Fprintf(w, "    %s\n", e.Instruction)
		}
		if e.ChosenLabel != "" {
			fmt.Fprintf(w, "    via %q\n", e.ChosenLabel)
		}
	}
	if r.Outcome != "" {
		fmt.Fprintf(w, "outcome: %s\n", r.Outcome)
		return
	}
	fmt.Fprintf(w, "status: %s\n", r.Status)
}

func newConvertCmd(c *cli) *cobra.Command {
	var (
		to      string
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "convert FILE",
		Short: "Rewrite a flowchart in another format",
		Args:  cobra.ExactArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			var (
				target snapshot.Format
				err    error
			)
			switch {
			case to != "":
				target, err = snapshot.ParseFormat(to)
			case outPath != "":
				target, err = snapshot.FormatFromPath(outPath)
			default:
				err = fmt.Errorf("--to or --out is required")
			}
			if err != nil {
				return err
			}

			svc, err := c.service()
			if err != nil {
				return err
			}
			data, from, err := c.read(cmd, args[0])
			if err != nil {
				return err
			}
			converted, err := svc.Convert(data, from, target)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(converted)
				return err
			}
			return os.WriteFile(outPath, converted, 0o644)
		}),
	}
	cmd.Flags().StringVar(&to, "to", "", "json, yaml, msgpack or dot")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write to this file instead of stdout")
	return cmd
}

func newCatalogCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect reusable-step catalogs",
	}

	var (
		query  string
		asJSON bool
	)
	list := &cobra.Command{
		Use:   "list [FILE]",
		Short: "List the steps of a catalog file",
		Args:  cobra.MaximumNArgs(1),
		RunE: c.run(func(cmd *cobra.Command, args []string) error {
			path := c.cfg.CatalogPath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no catalog file given and FLOWCHART_CATALOG is unset")
			}
			steps, err := catalog.LoadFile(path)
			if err != nil {
				return err
			}
			found := steps.Search(query)

			out := cmd.OutOrStdout()
			if asJSON {
				if found == nil {
					found = []catalog.Step{}
				}
				return writeJSON(out, found)
			}
			for _, s := range found {
				tags := append([]string(nil), s.Tags...)
				sort.Strings(tags)
				fmt.Fprintf(out, "%-24s %-11s %s", s.ID, s.Type, s.Name)
				if len(tags) > 0 {
					fmt.Fprintf(out, " [%s]", strings.Join(tags, ", "))
				}
				fmt.Fprintln(out)
			}
			return nil
		}),
	}
	list.Flags().StringVarP(&query, "search", "s", "", "only steps whose tag, name or title matches")
	list.Flags().BoolVar(&asJSON, "json", false, "print steps as JSON")

	cmd.AddCommand(list)
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
