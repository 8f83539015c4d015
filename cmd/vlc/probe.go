package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jasonic/vlc/internal/module"
)

func newProbeCommand(flags *globalFlags) *cobra.Command {
	var (
		target string
		prefer []string
		params map[string]string
	)

	cmd := &cobra.Command{
		Use:   "probe <capability>",
		Short: "Show which module a capability request selects",
		Long: `probe runs one request for a capability against the bank, prints the
module that wins and releases it. Capabilities are named by their short names
(intf, access, input, decaps, dec, motion, idct, aout, vout, yuv, imdct,
downmix, memcpy) or aliases such as demux and video_output.`,
		Example: `  vlc probe access --target file:///tmp/clip.ts
  vlc probe vout --prefer lua-null-vout
  vlc probe vout --param score=80`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := module.ParseCapability(args[0])
			if err != nil {
				return err
			}

			a, err := flags.open(cmd)
			if err != nil {
				return err
			}
			defer a.Destroy()

			h, err := a.Need(cmd.Context(), c, module.ProbeData{
				Target:    target,
				Params:    params,
				Preferred: prefer,
			})
			if err != nil {
				return err
			}
			defer a.Unneed(h)

			info, _ := a.Bank().Lookup(h.Name())
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s, %s)\n", c, h.Name(), info.DisplayName(), info.Origin)
			return nil
		},
	}

	cmd.Flags().StringVar(&target, "target", "", "medium, device or format the request is for")
	cmd.Flags().StringSliceVar(&prefer, "prefer", nil, "preferred module names, best first")
	cmd.Flags().StringToStringVar(&params, "param", nil, "probe parameters (key=value)")

	return cmd
}
