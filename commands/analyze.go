package commands

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/abuubaida2/Ai-Mental-health-Companion-App/clients"
	"github.com/abuubaida2/Ai-Mental-health-Companion-App/orchestrator"
)

type analyzeFlags struct {
	remote  string
	timeout time.Duration
}

func newAnalyzeCmd(g *globals) *cobra.Command {
	f := &analyzeFlags{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze text, audio or both",
		Long: `Analyze text, audio or both.

Without --remote the models are loaded in-process and the result is
recorded in the local history; with --remote the request is sent to a
running backend.`,
	}
	cmd.PersistentFlags().StringVar(&f.remote, "remote", "", "backend URL, e.g. http://localhost:8000")
	cmd.PersistentFlags().DurationVar(&f.timeout, "timeout", 2*time.Minute, "request timeout")

	cmd.AddCommand(&cobra.Command{
		Use:   "text <text>",
		Short: "Classify text into GoEmotions labels",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, g, f, func(p *orchestrator.Pipeline, c *clients.HTTP) (any, error) {
				if c != nil {
					return c.AnalyzeText(contextOf(cmd), args[0])
				}
				return p.AnalyzeText(contextOf(cmd), args[0])
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "audio <file>",
		Short: "Classify a speech recording (wav, mp3)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, g, f, func(p *orchestrator.Pipeline, c *clients.HTTP) (any, error) {
				if c != nil {
					return c.AnalyzeAudio(contextOf(cmd), args[0])
				}
				data, err := os.ReadFile(args[0])
				if err != nil {
					return nil, err
				}
				return p.AnalyzeAudio(contextOf(cmd), data)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "multi <text> <file>",
		Short: "Classify text and speech and fuse the results",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, g, f, func(p *orchestrator.Pipeline, c *clients.HTTP) (any, error) {
				if c != nil {
					return c.Multimodal(contextOf(cmd), args[0], args[1])
				}
				data, err := os.ReadFile(args[1])
				if err != nil {
					return nil, err
				}
				return p.AnalyzeMultimodal(contextOf(cmd), args[0], data)
			})
		},
	})
	return cmd
}

// runAnalyze calls fn with either a local pipeline or a remote client and
// prints the result as JSON.
func runAnalyze(cmd *cobra.Command, g *globals, f *analyzeFlags, fn func(*orchestrator.Pipeline, *clients.HTTP) (any, error)) error {
	var (
		out any
		err error
	)
	if f.remote != "" {
		out, err = fn(nil, clients.NewHTTP(f.remote, f.timeout))
	} else {
		if err := g.load(cmd); err != nil {
			return err
		}
		a, openErr := openApp(g.cfg, g.log)
		if openErr != nil {
			return openErr
		}
		defer a.release(g.log)
		out, err = fn(a.pipeline, nil)
	}
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}
