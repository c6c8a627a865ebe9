package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ipsentry/internal/analysis"
	"ipsentry/internal/geolocation"
)

var analyzeHours int

var analyzeCmd = &cobra.Command{
	Use:   "analyze <ip>",
	Short: "Show one IP's recent behavior",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		window := time.Duration(analyzeHours) * time.Hour
		report, err := analysis.InspectIP(cmd.Context(), args[0], window)
		if err != nil {
			return err
		}

		fmt.Printf("IP %s over the last %dh\n", report.IP, analyzeHours)
		fmt.Printf("  requests:     %d\n", report.RequestCount)
		fmt.Printf("  unique paths: %d\n", report.UniquePaths)
		fmt.Printf("  errors:       %d (%.1f%%)\n", report.ErrorCount, report.ErrorRate*100)
		if !report.FirstSeen.IsZero() {
			fmt.Printf("  first seen:   %s\n", report.FirstSeen.Format("2006-01-02 15:04:05"))
			fmt.Printf("  last seen:    %s\n", report.LastSeen.Format("2006-01-02 15:04:05"))
		}

		if report.Blocked {
			fmt.Printf("  blocked:      yes (%s)\n", report.BlockEntry.Reason)
		} else {
			fmt.Println("  blocked:      no")
		}

		if len(report.Suspicions) > 0 {
			fmt.Println("  findings:")
			for _, record := range report.Suspicions {
				fmt.Printf("    %-16s %-8s %d requests, last %s\n",
					record.Reason, record.Severity, record.RequestCount,
					record.LastDetected.Format("2006-01-02 15:04:05"))
			}
		}
		return nil
	},
}

var detectNowCmd = &cobra.Command{
	Use:   "detect-now",
	Short: "Run one anomaly-detection pass immediately",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine := analysis.NewEngine()
		summary, err := engine.RunPass(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Flagged %d IP/reason pairs in window %s .. %s\n",
			summary.Flagged,
			summary.WindowStart.Format("2006-01-02 15:04:05"),
			summary.WindowEnd.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Apply the suspicion retention policy now",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := analysis.Sweep(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d, deactivated %d suspicion records\n", result.Deleted, result.Deactivated)
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <ip>",
	Short: "Resolve an IP's geolocation through the cache tiers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver := geolocation.NewResolverFromConfig()
		result := resolver.Resolve(cmd.Context(), args[0])

		fmt.Printf("source:  %s\n", result.Source)
		fmt.Printf("country: %s (%s)\n", result.Country, result.CountryCode)
		fmt.Printf("city:    %s, %s\n", result.City, result.Region)
		if result.Latitude != 0 || result.Longitude != 0 {
			fmt.Printf("coords:  %.4f, %.4f\n", result.Latitude, result.Longitude)
		}
		if result.ISP != "" {
			fmt.Printf("isp:     %s\n", result.ISP)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().IntVar(&analyzeHours, "hours", 24, "Window size in hours")

	rootCmd.AddCommand(analyzeCmd, detectNowCmd, sweepCmd, resolveCmd)
}
