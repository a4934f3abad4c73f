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
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/thediveo/whalereaper/reaper"
	"gopkg.in/yaml.v3"
)

// Supported output formats.
const (
	outputPlain = "plain"
	outputTable = "table"
	outputYAML  = "yaml"
)

// renderers maps output formats to their report renderers.
var renderers = map[string]func(io.Writer, *reaper.Report) error{
	outputPlain: renderPlain,
	outputTable: renderTable,
	outputYAML:  renderYAML,
}

// renderPlain writes one line per resource, followed by the listing errors
// and a final summary line.
func renderPlain(w io.Writer, report *reaper.Report) error {
	for _, res := range report.Results {
		if _, err := fmt.Fprintln(w, res.String()); err != nil {
			return err
		}
	}
	for _, lerr := range report.ListErrors {
		if _, err := fmt.Fprintf(w, "error: %s\n", lerr); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, report.String())
	return err
}

func renderTable(w io.Writer, report *reaper.Report) error {
	table := tablewriter.NewWriter(w)
	table.Header("Kind", "ID", "Label", "Outcome", "Error")
	for _, res := range report.Results {
		errmsg := ""
		if res.Err != nil {
			errmsg = res.Err.Error()
		}
		if err := table.Append([]string{
			res.Kind.String(), res.ID, res.Label, res.Outcome.String(), errmsg,
		}); err != nil {
			return err
		}
	}
	for _, lerr := range report.ListErrors {
		if err := table.Append([]string{
			lerr.Kind.String(), lerr.ID, "", "list error", lerr.Error(),
		}); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, report.String())
	return err
}

// yamlResult is the YAML rendition of a reaper.Result.
type yamlResult struct {
	Kind     string `yaml:"kind"`
	ID       string `yaml:"id"`
	Label    string `yaml:"label,omitempty"`
	Outcome  string `yaml:"outcome"`
	Error    string `yaml:"error,omitempty"`
	StopErr  string `yaml:"stopError,omitempty"`
	Duration string `yaml:"duration"`
}

// yamlReport is the YAML rendition of a reaper.Report.
type yamlReport struct {
	Results    []yamlResult `yaml:"results"`
	ListErrors []string     `yaml:"listErrors,omitempty"`
	Summary    string       `yaml:"summary"`
	Duration   string       `yaml:"duration"`
}

func renderYAML(w io.Writer, report *reaper.Report) error {
	doc := yamlReport{
		Results:  make([]yamlResult, 0, len(report.Results)),
		Summary:  report.String(),
		Duration: report.Duration.String(),
	}
	for _, res := range report.Results {
		yres := yamlResult{
			Kind:     res.Kind.String(),
			ID:       res.ID,
			Label:    res.Label,
			Outcome:  res.Outcome.String(),
			Duration: res.Duration.String(),
		}
		if res.Err != nil {
			yres.Error = res.Err.Error()
		}
		if res.StopErr != nil {
			yres.StopErr = res.StopErr.Error()
		}
		doc.Results = append(doc.Results, yres)
	}
	for _, lerr := range report.ListErrors {
		doc.ListErrors = append(doc.ListErrors, lerr.Error())
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
