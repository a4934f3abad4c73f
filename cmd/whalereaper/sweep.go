// Copyright 2024 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/thediveo/whalereaper"
	"github.com/thediveo/whalereaper/reaper"
	"github.com/thediveo/whalereaper/reaper/containerd"
	"github.com/thediveo/whalereaper/reaper/cri"
	"github.com/thediveo/whalereaper/reaper/moby"
)

// Supported engine names for the --engine flag.
const (
	engineDocker     = "docker"
	engineContainerd = "containerd"
	engineCRI        = "cri"
)

// errCleanupFailed signals that not all resources could be reaped.
var errCleanupFailed = errors.New("cleanup failed")

// newReaper returns a reaper for the named engine type, connected to the
// specified API endpoint; an empty endpoint selects the engine's default
// endpoint, where available.
var newReaper = func(engine string, endpoint string, opts ...reaper.NewOption) (reaper.Reaper, error) {
	switch engine {
	case engineDocker, "":
		return moby.New(endpoint, nil, opts...)
	case engineContainerd:
		return containerd.New(endpoint, opts...)
	case engineCRI:
		return cri.New(endpoint, nil, opts...)
	}
	return nil, fmt.Errorf("unsupported engine %q, must be %s, %s, or %s",
		engine, engineDocker, engineContainerd, engineCRI)
}

func newSweepCmd(c *cli) *cobra.Command {
	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "remove all resources matching the specified labels",
		Long: `sweep removes all containers, networks, and volumes matching all specified
labels. A label can be either "key=value" or just "key", with the latter
matching any label value.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.sweep(cmd)
		},
	}
	flags := sweepCmd.Flags()
	flags.StringArrayP("label", "l", nil, "label \"key=value\" or \"key\" to match; can be repeated")
	flags.String("session", "", "sweep the resources of this reaper session ID")
	flags.StringP("engine", "e", engineDocker, "container engine type: docker, containerd, or cri")
	flags.StringP("host", "H", "", "container engine API endpoint (default: engine-specific)")
	flags.Duration("timeout", reaper.DefaultCallTimeout, "timeout for each individual engine call")
	flags.Int("parallel", reaper.DefaultParallelism, "maximum number of resources of the same kind to reap in parallel")
	flags.StringP("output", "o", outputPlain, "output format: plain, table, or yaml")
	_ = c.v.BindPFlags(flags)
	return sweepCmd
}

// sweep builds the label filter from the flags and configuration, reaps the
// matching resources, and finally renders the report.
func (c *cli) sweep(cmd *cobra.Command) error {
	labels := c.v.GetStringSlice("label")
	if session := c.v.GetString("session"); session != "" {
		labels = append(labels, reaper.SessionLabel+"="+session)
	}
	filter := whalereaper.ParseFilter(labels...)
	if len(filter) == 0 {
		return errors.New("refusing to sweep without any --label or --session")
	}
	format := c.v.GetString("output")
	render, ok := renderers[format]
	if !ok {
		return fmt.Errorf("unsupported output format %q", format)
	}

	engine := c.v.GetString("engine")
	r, err := newReaper(engine, c.v.GetString("host"),
		reaper.WithCallTimeout(c.v.GetDuration("timeout")),
		reaper.WithParallelism(c.v.GetInt("parallel")),
		reaper.WithLogger(c.log))
	if err != nil {
		return errors.Wrapf(err, "cannot connect to %s engine", engine)
	}
	defer r.Close()
	c.log.Debug().
		Str("engine", r.Type()).
		Str("api", r.API()).
		Str("filter", filter.String()).
		Msg("sweeping")

	report := r.RemoveByFilter(cmd.Context(), filter)
	if err := render(cmd.OutOrStdout(), report); err != nil {
		return errors.Wrap(err, "cannot render report")
	}
	if !report.Complete() {
		c.log.Error().Err(report.Err()).Str("summary", report.String()).Msg("sweep incomplete")
		return errCleanupFailed
	}
	c.log.Info().Str("summary", report.String()).Msg("sweep done")
	return nil
}
