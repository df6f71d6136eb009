package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aussiebroadwan/gatekeep/pkg/gatekeep"
	"github.com/aussiebroadwan/gatekeep/pkg/guard"
	"github.com/spf13/cobra"
)

func (c *cli) newNavCmd() *cobra.Command {
	var routesFile string

	cmd := &cobra.Command{
		Use:   "nav <route>",
		Short: "Evaluate the navigation guard for a route",
		Long: `Evaluate the navigation guard for a route declared in a YAML route table,
using the stored session as the current identity. The route is looked up
by name, then by path.

Example route table:

  mode: path
  login: login
  forbidden: forbidden
  routes:
    - {name: login, path: /login}
    - {name: forbidden, path: /403}
    - {name: admin, path: /admin, authorize: {group: admins}}

Examples:
  gatekeep nav /admin --routes routes.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := guard.LoadRouteTableFile(routesFile)
			if err != nil {
				return err
			}
			tr, err := rt.Transition(args[0])
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, g *gatekeep.Gatekeep) error {
				gd := g.EnableRouteTable(nil, rt)
				defer gd.Close()

				d := gd.Check(ctx, tr)
				printDecision(cmd.OutOrStdout(), d)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&routesFile, "routes", "r", "routes.yaml", "route table file")
	return cmd
}

func printDecision(w io.Writer, d guard.Decision) {
	switch d.Kind {
	case guard.Redirect:
		fmt.Fprintf(w, "%s %s\n", d.Kind, d.Target)
	case guard.Deny:
		fmt.Fprintf(w, "%s: %v\n", d.Kind, d.Reason)
	default:
		fmt.Fprintln(w, d.Kind)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
