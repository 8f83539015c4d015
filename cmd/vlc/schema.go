package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Jasonic/vlc/internal/module"
)

func newSchemaCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "schema <module>",
		Short: "Print a module's configuration schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer a.Destroy()

			info, ok := a.Bank().Lookup(args[0])
			if !ok {
				return fmt.Errorf("module %q not found", args[0])
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s (%s)\n", info.Name, info.DisplayName())
			if len(info.Config) == 0 {
				fmt.Fprintln(w, "no configuration")
				return nil
			}

			t := newTable(w)
			t.AppendHeader(table.Row{"Kind", "Name", "Text", "Default", "Values"})
			for _, item := range info.Config {
				t.AppendRow(table.Row{item.Kind, item.Name, item.Text, item.Default, values(item)})
			}
			t.Render()
			return nil
		},
	}
}

func values(item module.ConfigItem) string {
	switch item.Kind {
	case module.ConfigChoose, module.ConfigRadio:
		return strings.Join(item.Choices, "|")
	case module.ConfigScale, module.ConfigSpin:
		return fmt.Sprintf("%d..%d", item.Min, item.Max)
	default:
		return ""
	}
}
