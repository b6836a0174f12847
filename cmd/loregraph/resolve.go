package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/siherrmann/loregraph"
	"github.com/siherrmann/loregraph/model"
	"github.com/spf13/cobra"
)

func newResolveCmd(a *app) *cobra.Command {
	var (
		profile  string
		scene    string
		known    []string
		asJSON   bool
		manifest bool
	)

	cmd := &cobra.Command{
		Use:   "resolve [query]",
		Short: "Assemble the context for a query",
		Example: `  loregraph resolve --profile chat "Who is Mara?"
  loregraph resolve --known Mara,Teodor --json "How does Teodor feel about Mara?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer g.Close()

			req := loregraph.ResolveRequest{
				Text:    strings.Join(args, " "),
				Profile: profile,
			}
			if cmd.Flags().Changed("known") {
				req.Known = known
			}
			if scene != "" {
				req.Scene = &scene
			}

			assembled, err := g.ResolveQuery(cmd.Context(), req)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(assembled)
			}

			fmt.Fprintln(out, assembled.Text)
			if manifest {
				printManifest(out, assembled)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "chat", "budget profile")
	cmd.Flags().StringVar(&scene, "scene", "", "scene scaffold, overrides the document scene")
	cmd.Flags().StringSliceVar(&known, "known", nil, "known entity snapshot (default: all graph entities)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the assembled context as JSON")
	cmd.Flags().BoolVar(&manifest, "manifest", true, "print the manifest after the context")
	return cmd
}

func printManifest(out io.Writer, assembled *model.AssembledContext) {
	m := assembled.Manifest
	fmt.Fprintf(out, "\n--- %s | %s (%.1f) | %d tokens\n", m.Profile, assembled.Query.Intent, assembled.Query.Confidence, m.TotalTokens)

	for _, entry := range m.Entries {
		line := fmt.Sprintf("%-16s %-10s %5d", entry.Category, entry.Status, entry.Tokens)
		if entry.Reason != "" {
			line += "  " + entry.Reason
		}
		switch entry.Status {
		case model.SectionTruncated:
			color.New(color.FgYellow).Fprintln(out, line)
		case model.SectionOmitted:
			color.New(color.FgRed).Fprintln(out, line)
		default:
			fmt.Fprintln(out, line)
		}
	}
	for _, source := range m.Sources {
		if !source.Available {
			color.New(color.FgRed).Fprintf(out, "source %s unavailable: %s\n", source.Source, source.Error)
		}
	}
}
