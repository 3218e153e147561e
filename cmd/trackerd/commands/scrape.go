package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"dlstracker-backend/internal/components/telemetry"
	"dlstracker-backend/internal/identity"
	"dlstracker-backend/internal/tracker"
	"dlstracker-backend/lib/serviceutil"
	libtelemetry "dlstracker-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	scrapeJson     string
	scrapeHeadless bool
	scrapeChrome   string
)

func init() {
	scrapeCmd.Flags().StringVar(&scrapeJson, "json", "", "Also write the result as json to this file.")
	scrapeCmd.Flags().BoolVar(&scrapeHeadless, "headless", true, "Run chrome without a window.")
	scrapeCmd.Flags().StringVar(&scrapeChrome, "chrome", "", "Path to the chrome binary.")
	rootCmd.AddCommand(scrapeCmd)
}

func writeJsonFile(path string, res tracker.ScrapeResult) error {
	contents, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, contents, 0644)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <tracker id> [--json <path/to/out.json>]",
	Short: "Scrapes a single tracked team and prints a summary.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		libtelemetry.InitSlog(verbose)

		id, err := identity.Parse(args[0])
		if err != nil {
			serviceutil.Fatal("parse tracker id", err)
		}

		scraper := tracker.NewScraper(
			tracker.NewChromeBrowserFactory(tracker.ChromeOptions{
				Headless: scrapeHeadless,
				ExecPath: scrapeChrome,
			}),
			telemetry.NewSlogAPI(nil),
		)
		res := scraper.Scrape(cmd.Context(), id)
		printResult(os.Stdout, res)

		if scrapeJson != "" {
			err = writeJsonFile(scrapeJson, res)
			if err != nil {
				serviceutil.Fatal("write json", err)
			}
			fmt.Println("wrote", scrapeJson)
		}
		if res.Status != tracker.StatusSuccess {
			os.Exit(1)
		}
	},
}
