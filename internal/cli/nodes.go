package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var header = color.New(color.FgHiGreen, color.Bold)

func (c *CLI) nodesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "nodes [links-file]",
		Short: "List nodes in first-seen order with their degree",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := ""
			if len(args) == 1 {
				input = args[0]
			}
			_, g, err := c.buildGraph(input)
			if err != nil {
				return err
			}

			header.Fprintf(c.Out, "%d nodes, %d links\n", len(g.Order), len(g.Edges))
			tw := tabwriter.NewWriter(c.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "INDEX\tNAME\tDEGREE\tOUT\tIN")
			for _, n := range g.Order {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\n",
					n.Index, n.Name, n.Weight, len(g.OutgoingEdges(n.Name)), len(g.IncomingEdges(n.Name)))
			}
			return tw.Flush()
		},
	}
}
