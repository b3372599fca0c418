package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// queueCmd represents the queue command
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the offline delivery queue",
	Long:  `Show the size of the spooled delivery queue, drain it through the collector, or clear it.`,
}

var queueSizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Show the number of queued events",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(buildConfig())
		if err != nil {
			return err
		}
		if outputJSON {
			printOutput(map[string]int{"queue_size": svc.QueueSize()})
		} else {
			fmt.Printf("Queued events: %d\n", svc.QueueSize())
		}
		return nil
	},
}

var queueDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Attempt redelivery of every queued event",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := buildConfig()
		if !cfg.IsConfigured() {
			return fmt.Errorf("collector not configured: set --measurement-id and --api-secret")
		}
		svc, err := newService(cfg)
		if err != nil {
			return err
		}
		before := svc.QueueSize()
		consumed := svc.DrainQueue(cmd.Context())
		if outputJSON {
			printOutput(map[string]int{
				"before":    before,
				"consumed":  consumed,
				"remaining": svc.QueueSize(),
			})
		} else {
			fmt.Printf("Drained %d of %d queued events (%d remaining)\n", consumed, before, svc.QueueSize())
		}
		return nil
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every queued event without delivery",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(buildConfig())
		if err != nil {
			return err
		}
		n := svc.ClearQueue(cmd.Context())
		if outputJSON {
			printOutput(map[string]int{"cleared": n})
		} else {
			fmt.Printf("Cleared %d queued events\n", n)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueSizeCmd)
	queueCmd.AddCommand(queueDrainCmd)
	queueCmd.AddCommand(queueClearCmd)
}
