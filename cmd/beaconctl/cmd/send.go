package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/beaconhq/beacon/internal/event"
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send [event-name]",
	Short: "Send a telemetry event to the collector",
	Long: `Send a single telemetry event through the delivery pipeline.

Example:
  beaconctl send login --param method=email
  beaconctl send search --param search_term=golang --engagement-time 2500 --validate`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		kvs, _ := cmd.Flags().GetStringArray("param")
		engagement, _ := cmd.Flags().GetInt64("engagement-time")
		withValidation, _ := cmd.Flags().GetBool("validate")

		params, err := parseParams(kvs)
		if err != nil {
			return err
		}
		ev := event.Event{Name: name, Params: params, EngagementTimeMsec: engagement}

		cfg := buildConfig()
		if !cfg.IsConfigured() {
			return fmt.Errorf("collector not configured: set --measurement-id and --api-secret")
		}
		svc, err := newService(cfg)
		if err != nil {
			return err
		}
		id, err := resolveIdentity(cfg, cmd)
		if err != nil {
			return err
		}

		var delivered bool
		if withValidation {
			delivered = svc.SendWithLocalValidation(cmd.Context(), ev, id)
		} else {
			delivered = svc.Send(cmd.Context(), ev, id)
		}

		if outputJSON {
			printOutput(map[string]any{
				"event":      name,
				"delivered":  delivered,
				"queue_size": svc.QueueSize(),
			})
		} else {
			if delivered {
				fmt.Printf("Delivered event: %s\n", name)
			} else {
				fmt.Printf("Event not delivered: %s (queued: %d)\n", name, svc.QueueSize())
			}
		}
		if !delivered {
			return fmt.Errorf("delivery failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringArray("param", nil, "event parameter as key=value (repeatable)")
	sendCmd.Flags().Int64("engagement-time", 0, "engagement time in milliseconds (0 uses the default)")
	sendCmd.Flags().Bool("validate", false, "run local validation before sending")
}
