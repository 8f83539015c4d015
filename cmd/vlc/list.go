package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Jasonic/vlc/internal/module"
)

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// moduleRow is the serialized form of a module listing.
type moduleRow struct {
	Name         string   `json:"name" yaml:"name"`
	LongName     string   `json:"longName,omitempty" yaml:"longName,omitempty"`
	Version      string   `json:"version,omitempty" yaml:"version,omitempty"`
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	Origin       string   `json:"origin" yaml:"origin"`
	State        string   `json:"state" yaml:"state"`
	Path         string   `json:"path,omitempty" yaml:"path,omitempty"`
}

type loadErrorRow struct {
	Name  string `json:"name" yaml:"name"`
	Path  string `json:"path" yaml:"path"`
	Error string `json:"error" yaml:"error"`
}

type listing struct {
	Modules  []moduleRow    `json:"modules" yaml:"modules"`
	Rejected []loadErrorRow `json:"rejected,omitempty" yaml:"rejected,omitempty"`
}

func newListCommand(flags *globalFlags) *cobra.Command {
	var (
		output     string
		capability string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered modules and rejected plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter module.Capability
			if capability != "" {
				c, err := module.ParseCapability(capability)
				if err != nil {
					return err
				}
				filter = c
			}

			a, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer a.Destroy()

			l := buildListing(a.Bank().Modules(), a.Bank().LoadErrors(), filter)
			return writeListing(cmd.OutOrStdout(), l, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", outputTable, "output format (table, json, yaml)")
	cmd.Flags().StringVar(&capability, "capability", "", "only list modules providing this capability")

	return cmd
}

func buildListing(infos []module.Info, errs []*module.LoadError, filter module.Capability) listing {
	var l listing
	for _, info := range infos {
		if filter != 0 && !info.Capabilities.Has(filter) {
			continue
		}
		caps := make([]string, 0, info.Capabilities.Len())
		for _, c := range info.Capabilities.List() {
			caps = append(caps, c.String())
		}
		l.Modules = append(l.Modules, moduleRow{
			Name:         info.Name,
			LongName:     info.LongName,
			Version:      info.Version,
			Capabilities: caps,
			Origin:       info.Origin.String(),
			State:        info.State.String(),
			Path:         info.Path,
		})
	}
	if filter == 0 {
		for _, e := range errs {
			l.Rejected = append(l.Rejected, loadErrorRow{Name: e.Name, Path: e.Path, Error: e.Err.Error()})
		}
	}
	return l
}

func writeListing(w io.Writer, l listing, output string) error {
	switch output {
	case outputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(l)
	case outputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(l)
	case outputTable:
	default:
		return fmt.Errorf("unknown output format %q", output)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Name", "Description", "Capabilities", "Origin", "State", "Version"})
	for _, m := range l.Modules {
		t.AppendRow(table.Row{m.Name, m.LongName, strings.Join(m.Capabilities, ","), m.Origin, m.State, m.Version})
	}
	t.Render()

	if len(l.Rejected) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	t = newTable(w)
	t.AppendHeader(table.Row{"Rejected", "Path", "Error"})
	for _, r := range l.Rejected {
		t.AppendRow(table.Row{r.Name, r.Path, r.Error})
	}
	t.Render()
	return nil
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleLight
	style.Options.DrawBorder = false
	t.SetStyle(style)
	return t
}
