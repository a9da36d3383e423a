package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listJSON bool

// listCmd shows every registered operation and where it came from
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available operations and their sources",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	ws, err := resolveWorkspace()
	if err != nil {
		return err
	}
	eng, err := setupEngine(ws)
	if err != nil {
		return err
	}

	infos := eng.registry.ListWithSources()
	out := cmd.OutOrStdout()

	if listJSON {
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSOURCE\tPATH")
	for _, info := range infos {
		path := "-"
		if op, ok := eng.registry.Lookup(info.Name); ok && op.Path != "" {
			path = op.Path
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, info.Source, path)
	}
	return tw.Flush()
}
