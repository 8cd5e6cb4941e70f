package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

type routeView struct {
	Capability string `json:"capability"`
	Provider   string `json:"provider"`
	Source     string `json:"source"`
	EndpointID string `json:"endpointId,omitempty"`
	Model      string `json:"model,omitempty"`
	Version    string `json:"version,omitempty"`
	TimeoutMs  int    `json:"timeoutMs,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newProvidersCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Show how each capability is routed",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := ctx.registry()
			if err != nil {
				return err
			}
			var views []routeView
			for _, status := range registry.Routes() {
				view := routeView{
					Capability: string(status.Capability),
					Provider:   status.Provider,
					Source:     status.Source,
					EndpointID: status.Entry.EndpointID,
					Model:      status.Entry.Model,
					Version:    status.Entry.Version,
					TimeoutMs:  status.Entry.TimeoutMs,
				}
				if status.Err != nil {
					view.Error = status.Err.Error()
				}
				views = append(views, view)
			}
			if jsonOutput {
				return writeJSON(cmd, views)
			}

			rows := make([][]string, 0, len(views))
			for _, v := range views {
				target := v.EndpointID
				if target == "" {
					target = v.Model
					if v.Version != "" {
						target += ":" + v.Version
					}
				}
				status := "ok"
				if v.Error != "" {
					status = v.Error
				}
				timeout := ""
				if v.TimeoutMs > 0 {
					timeout = strconv.Itoa(v.TimeoutMs)
				}
				rows = append(rows, []string{v.Capability, v.Provider, v.Source, target, timeout, status})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Capability", "Provider", "Source", "Endpoint/Model", "Timeout ms", "Status"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			))
			fmt.Fprintf(cmd.OutOrStdout(), "Registered providers: %s\n", strings.Join(registry.ProviderIDs(), ", "))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
