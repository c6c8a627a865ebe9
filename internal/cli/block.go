package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ipsentry/internal/blocklist"
	"ipsentry/internal/database"
	"ipsentry/internal/domain"
)

var (
	blockReason  string
	blockExpires string
	blockForce   bool

	listActive  bool
	listExpired bool
)

var blockCmd = &cobra.Command{
	Use:   "block <ip>",
	Short: "Block an IP address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		expiry, err := ParseExpiry(blockExpires, time.Now())
		if err != nil {
			return err
		}

		reason := blockReason
		if reason == "" {
			reason = "Manually blocked"
		}

		entry, err := registry.Block(cmd.Context(), args[0], reason, expiry, blockForce)
		if err != nil {
			if errors.Is(err, blocklist.ErrAlreadyBlocked) {
				return fmt.Errorf("%s is already blocked (use --force to overwrite)", args[0])
			}
			return err
		}

		fmt.Printf("Blocked %s", entry.IP)
		if entry.ExpiresAt != nil {
			fmt.Printf(" until %s", entry.ExpiresAt.Format("2006-01-02 15:04:05"))
		}
		fmt.Println()
		return nil
	},
}

var unblockCmd = &cobra.Command{
	Use:   "unblock <ip>",
	Short: "Remove the block for an IP address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := registry.Unblock(cmd.Context(), args[0]); err != nil {
			if errors.Is(err, database.ErrBlockNotFound) {
				return fmt.Errorf("%s is not blocked", args[0])
			}
			return err
		}
		fmt.Printf("Unblocked %s\n", args[0])
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List block entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := blocklist.FilterAll
		switch {
		case listActive && listExpired:
			return errors.New("--active and --expired are mutually exclusive")
		case listActive:
			filter = blocklist.FilterActive
		case listExpired:
			filter = blocklist.FilterExpired
		}

		entries, err := registry.List(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No block entries")
			return nil
		}

		now := time.Now()
		for _, entry := range entries {
			fmt.Println(formatBlockEntry(entry, now))
		}
		return nil
	},
}

func formatBlockEntry(entry domain.BlockEntry, now time.Time) string {
	expires := "never"
	if entry.ExpiresAt != nil {
		expires = entry.ExpiresAt.Format("2006-01-02 15:04:05")
	}

	state := "active"
	if !entry.Active(now) {
		state = "expired"
	}

	return fmt.Sprintf("%-39s %-8s expires=%-20s %s", entry.IP, state, expires, entry.Reason)
}

func init() {
	blockCmd.Flags().StringVar(&blockReason, "reason", "", "Reason for the block")
	blockCmd.Flags().StringVar(&blockExpires, "expires", "", `Expiry: "+Nd", "YYYY-MM-DD", or "YYYY-MM-DD HH:MM:SS" (default permanent)`)
	blockCmd.Flags().BoolVar(&blockForce, "force", false, "Overwrite an existing block")

	listCmd.Flags().BoolVar(&listActive, "active", false, "Only blocks currently in effect")
	listCmd.Flags().BoolVar(&listExpired, "expired", false, "Only expired blocks")

	rootCmd.AddCommand(blockCmd, unblockCmd, listCmd)
}
