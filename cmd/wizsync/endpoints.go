package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/docwiz/wizsync/internal/config"
)

var endpointsCmd = &cobra.Command{
	Use:   "endpoints",
	Short: "List known API endpoints",
	Long: `List the built-in endpoint table merged with endpoints_file. The endpoint
selected by the current configuration is marked with '*'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		endpoints, err := config.LoadEndpoints(cfg.EndpointsFile)
		if err != nil {
			return err
		}

		rows := make([][]string, 0, len(endpoints))
		for _, ep := range endpoints {
			mark := ""
			if ep.Name == cfg.Endpoint {
				mark = "*"
			}
			url := ep.URL
			if url == "" {
				url = "(set url)"
			}
			rows = append(rows, []string{mark, ep.Name, url, ep.Base})
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"", "NAME", "URL", "BASE"}, rows))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(endpointsCmd)
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.Render()
}
