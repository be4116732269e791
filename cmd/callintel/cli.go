package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/urfave/cli/v2"

	"call-intelligence-go/internal/api"
	"call-intelligence-go/internal/config"
	apperrors "call-intelligence-go/internal/errors"
	"call-intelligence-go/internal/processor"
	"call-intelligence-go/internal/store"
	"call-intelligence-go/internal/trends"
)

// deps is everything the commands share. The record store is opened once per process.
type deps struct {
	cfg  config.Config
	repo store.Repository
	proc *processor.Processor
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(d *deps) *cli.App {
	app := &cli.App{
		Name:    "callintel",
		Usage:   "Transcribe, analyze and trend customer call recordings",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(d),
			processCmd(d),
			trendsCmd(d),
			recordsCmd(d),
			countCmd(d),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

func serveCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Listen port (defaults to PORT)"},
		},
		Action: func(c *cli.Context) error {
			port := d.cfg.Port
			if c.IsSet("port") {
				port = c.Int("port")
			}
			srv := api.NewServer(port, d.proc, d.repo, d.cfg.MaxUploadBytes)
			if err := srv.Run(c.Context); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

func processCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:      "process",
		Usage:     "Transcribe, analyze and save audio files",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print the batch result as JSON"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return outputError(apperrors.NewInvalidRequest("at least one audio file is required"))
			}
			uploads := make([]processor.Upload, 0, c.NArg())
			for _, path := range c.Args().Slice() {
				data, err := os.ReadFile(path)
				if err != nil {
					return outputError(apperrors.NewInvalidRequest(fmt.Sprintf("could not read %s: %v", path, err)))
				}
				uploads = append(uploads, processor.Upload{FileName: filepath.Base(path), Data: data})
			}

			w := c.App.Writer
			asJSON := c.Bool("json")
			res := d.proc.ProcessBatch(c.Context, uploads, func(p processor.Progress) {
				if asJSON {
					return
				}
				printItem(w, p)
			})

			if asJSON {
				if err := outputJSON(w, res); err != nil {
					return err
				}
			} else {
				fmt.Fprintf(w, "Saved %d of %d calls to %s\n", res.Saved, res.Processed, d.repo.Location())
			}
			if res.Saved < res.Processed {
				return cli.Exit(fmt.Sprintf("%d of %d files failed", res.Processed-res.Saved, res.Processed), 1)
			}
			return nil
		},
	}
}

func printItem(w io.Writer, p processor.Progress) {
	prefix := fmt.Sprintf("[%d/%d] %s", p.Index+1, p.Total, p.Item.FileName)
	if p.Item.Saved {
		fmt.Fprintf(w, "%s: saved (%d ms)\n", prefix, p.Item.DurationMs)
		return
	}
	fmt.Fprintf(w, "%s: failed at %s: %s\n", prefix, p.Item.Stage, p.Item.Error)
}

func trendsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "trends",
		Usage: "Summarize stored calls and analyze trends",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "last-n", Aliases: []string{"n"}, Usage: "Only the most recent N calls (0 = all)"},
			&cli.BoolFlag{Name: "digest-only", Usage: "Print the digest without calling the model"},
			&cli.BoolFlag{Name: "json", Usage: "Print the report as JSON"},
		},
		Action: func(c *cli.Context) error {
			lastN := c.Int("last-n")
			if lastN < 0 {
				return outputError(apperrors.NewInvalidRequest("--last-n must not be negative"))
			}
			rep, err := d.proc.Trends(c.Context, lastN, c.Bool("digest-only"))
			if err != nil {
				return outputError(err)
			}
			w := c.App.Writer
			if c.Bool("json") {
				return outputJSON(w, rep)
			}
			fmt.Fprintln(w, rep.Digest)
			if rep.Analysis != "" {
				fmt.Fprintf(w, "\n%s\n", rep.Analysis)
			}
			return nil
		},
	}
}

func recordsCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "records",
		Usage: "List stored calls",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "last-n", Aliases: []string{"n"}, Usage: "Only the most recent N calls (0 = all)"},
			&cli.BoolFlag{Name: "json", Usage: "Print full records as JSON"},
		},
		Action: func(c *cli.Context) error {
			lastN := c.Int("last-n")
			if lastN < 0 {
				return outputError(apperrors.NewInvalidRequest("--last-n must not be negative"))
			}
			recs, err := d.proc.Recent(c.Context, lastN)
			if err != nil {
				return outputError(err)
			}
			if c.Bool("json") {
				return outputJSON(c.App.Writer, recs)
			}
			tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tFILE NAME\tSENTIMENT\tCATEGORY")
			for _, r := range recs {
				f := trends.Extract(r.Analysis)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Date, r.FileName, orUnknown(f.Sentiment), orUnknown(f.Category))
			}
			return tw.Flush()
		},
	}
}

func orUnknown(s string) string {
	if s == "" {
		return trends.Unknown
	}
	return s
}

func countCmd(d *deps) *cli.Command {
	return &cli.Command{
		Name:  "count",
		Usage: "Print the number of stored calls",
		Action: func(c *cli.Context) error {
			exists, err := d.repo.Exists(c.Context)
			if err != nil {
				return outputError(err)
			}
			if !exists {
				fmt.Fprintf(c.App.Writer, "No records yet at %s\n", d.repo.Location())
				return nil
			}
			n, err := d.repo.Count(c.Context)
			if err != nil {
				return outputError(err)
			}
			fmt.Fprintf(c.App.Writer, "Total Calls: %d\n", n)
			return nil
		},
	}
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if appErr, ok := err.(*apperrors.AppError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", appErr.Code, appErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}
