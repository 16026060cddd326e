package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/banshee-data/buscluster/internal/chart"
	"github.com/banshee-data/buscluster/internal/detect"
	"github.com/banshee-data/buscluster/internal/httputil"
	"github.com/banshee-data/buscluster/internal/pipeline"
	"github.com/banshee-data/buscluster/internal/security"
	"github.com/banshee-data/buscluster/internal/telemetry"
	"github.com/banshee-data/buscluster/internal/units"
)

// Transport labels runs started from the command line.
const Transport = "cli"

// openInput opens a snapshot file, or stdin for "-" or no argument.
func openInput(cmd *cobra.Command, args []string) (io.ReadCloser, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	return f, nil
}

// runLocal runs a snapshot through a pipeline built from configuration.
func (a *app) runLocal(cmd *cobra.Command, r io.Reader) (*pipeline.Outcome, error) {
	store, err := openArchive(a.cfg)
	if err != nil {
		return nil, err
	}
	if store != nil {
		defer store.Close()
	}
	p, err := newPipeline(a.cfg, nil, store)
	if err != nil {
		return nil, err
	}
	out, err := p.Run(cmd.Context(), Transport, r)
	if err != nil {
		return nil, cliError(err)
	}
	return out, nil
}

// cliError replaces the wrapped chain with the message a client would see.
func cliError(err error) error {
	if errors.Is(err, detect.ErrInvalidInput) {
		return fmt.Errorf("%w: %s", detect.ErrInvalidInput, pipeline.Detail(err))
	}
	return err
}

func newDetectCmd(a *app) *cobra.Command {
	var server string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "detect [snapshot.json|-]",
		Short: "Detect clusters in a snapshot and print the result as JSON",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			var res *detect.Result
			if server != "" {
				// Speeds are posted in their declared units; the server
				// normalises them with its own speed_units.
				points, err := telemetry.DecodeRequest(in, units.KMPH)
				if err != nil {
					return cliError(fmt.Errorf("%w: %w", detect.ErrInvalidInput, err))
				}
				client := httputil.NewAPIClient(server, &http.Client{Timeout: timeout})
				if res, err = client.Detect(cmd.Context(), points); err != nil {
					return err
				}
			} else {
				out, err := a.runLocal(cmd, in)
				if err != nil {
					return err
				}
				res = out.Result
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "send the snapshot to a running service at this base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout when --server is set")
	return cmd
}

func newPlotCmd(a *app) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "plot [snapshot.json|-]",
		Short: "Render a snapshot's clusters as a PNG scatter plot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := security.ValidateOutputPath(output); err != nil {
				return err
			}
			in, err := openInput(cmd, args)
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := a.runLocal(cmd, in)
			if err != nil {
				return err
			}
			if err := chart.SavePNG(output, out.Points, out.Result); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d clusters, overall %s)\n",
				output, len(out.Result.Clusters), out.Result.OverallRiskLevel)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "clusters.png", "PNG output path")
	return cmd
}
