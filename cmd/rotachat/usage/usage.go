// Package usagecmder provides the usage command for inspecting the
// relay's generation audit log.
package usagecmder

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/rotaworks/rotachat/pkg/cliui"
	"github.com/rotaworks/rotachat/pkg/config"
	"github.com/rotaworks/rotachat/pkg/utils"
)

type usageCommander struct {
	apiTarget string
	limit     uint
	stats     bool
}

// usageRow mirrors the audit API's recent-usage response shape.
type usageRow struct {
	ModelIdentifier string    `json:"model_identifier"`
	Status          string    `json:"status"`
	TotalTokens     *int      `json:"total_tokens,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	LatencyMS       int64     `json:"latency_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// statRow mirrors the audit API's stats response shape.
type statRow struct {
	ModelIdentifier string `json:"model_identifier"`
	Status          string `json:"status"`
	Requests        int64  `json:"requests"`
	TotalTokens     int64  `json:"total_tokens"`
}

const usageLongDesc string = `Show the relay's generation audit log.

By default the newest entries are listed; --stats aggregates requests
and token counts by model and outcome instead.

Examples:
  rotachat usage
  rotachat usage --limit 100
  rotachat usage --stats`

const usageShortDesc string = "Show generation usage from the audit log"

func NewUsageCmd() *cobra.Command {
	cmder := &usageCommander{}

	cmd := &cobra.Command{
		Use:   "usage",
		Short: usageShortDesc,
		Long:  usageLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("api-target") {
				cmder.apiTarget = cfg.Client.APITarget
			}
			return nil
		},
		RunE: func(_ *cobra.Command, _ []string) error {
			if cmder.stats {
				return cmder.runStats()
			}
			return cmder.runRecent()
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVarP(&cmder.apiTarget, "api-target", "a", defaults.Client.APITarget, "Rotachat audit API URL")
	cmd.Flags().UintVarP(&cmder.limit, "limit", "n", 50, "Maximum entries to list")
	cmd.Flags().BoolVar(&cmder.stats, "stats", false, "Aggregate by model and outcome")

	return cmd
}

func (c *usageCommander) runRecent() error {
	var rows []usageRow
	url := fmt.Sprintf("%s/usage/recent?limit=%d", c.apiTarget, c.limit)
	if err := c.fetch(url, &rows); err != nil {
		return err
	}

	if len(rows) == 0 {
		fmt.Printf("\n  %s No usage recorded\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Println()
	for _, row := range rows {
		tokens := "-"
		if row.TotalTokens != nil {
			tokens = fmt.Sprintf("%d tok", *row.TotalTokens)
		}

		line := fmt.Sprintf("  %s  %s %s %s %s",
			cliui.DimStyle.Render(row.CreatedAt.Local().Format("2006-01-02 15:04:05")),
			statusMark(row.Status),
			cliui.NameStyle.Render(row.ModelIdentifier),
			cliui.ValueStyle.Render(tokens),
			cliui.DimStyle.Render(cliui.FormatDuration(time.Duration(row.LatencyMS)*time.Millisecond)),
		)
		if row.ErrorMessage != "" {
			line += " " + cliui.DimStyle.Render(utils.Truncate(row.ErrorMessage, 48))
		}
		fmt.Println(line)
	}
	fmt.Println()

	return nil
}

func (c *usageCommander) runStats() error {
	var rows []statRow
	if err := c.fetch(c.apiTarget+"/usage/stats", &rows); err != nil {
		return err
	}

	if len(rows) == 0 {
		fmt.Printf("\n  %s No usage recorded\n\n", cliui.DimStyle.Render("●"))
		return nil
	}

	fmt.Println()
	for _, row := range rows {
		fmt.Printf("  %s %s  %s %s\n",
			statusMark(row.Status),
			cliui.NameStyle.Render(row.ModelIdentifier),
			cliui.ValueStyle.Render(fmt.Sprintf("%d requests", row.Requests)),
			cliui.DimStyle.Render(fmt.Sprintf("%d tok", row.TotalTokens)),
		)
	}
	fmt.Println()

	return nil
}

func (c *usageCommander) fetch(url string, out any) error {
	resp, err := http.Get(url)
	if err != nil {
		return fmt.Errorf("could not reach the audit API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("audit API returned %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding audit API response: %w", err)
	}
	return nil
}

func statusMark(status string) string {
	switch status {
	case "success":
		return cliui.SuccessMark
	case "cancelled":
		return cliui.DimStyle.Render("○")
	default:
		return cliui.FailMark
	}
}
