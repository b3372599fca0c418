package cmd

import (
	"bufio"
	"fmt"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/beaconhq/beacon/internal/event"
	"github.com/beaconhq/beacon/internal/validate"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate [event-name]",
	Short: "Validate a telemetry event",
	Long: `Validate an event locally, or against the collector's debug endpoint
with --collector. With --batch, read one JSON event per line from a file and
validate them all against the collector.

Example:
  beaconctl validate login --param method=email
  beaconctl validate login --param method=email --collector
  beaconctl validate --batch events.jsonl`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kvs, _ := cmd.Flags().GetStringArray("param")
		engagement, _ := cmd.Flags().GetInt64("engagement-time")
		againstCollector, _ := cmd.Flags().GetBool("collector")
		batchFile, _ := cmd.Flags().GetString("batch")

		cfg := buildConfig()
		svc, err := newService(cfg)
		if err != nil {
			return err
		}
		id, err := resolveIdentity(cfg, cmd)
		if err != nil {
			return err
		}

		if batchFile != "" {
			events, err := readEventsFile(batchFile)
			if err != nil {
				return err
			}
			results := svc.BatchValidate(cmd.Context(), events, id)
			printResults(events, results)
			for _, r := range results {
				if !r.Valid {
					return fmt.Errorf("batch validation failed")
				}
			}
			return nil
		}

		if len(args) == 0 {
			return fmt.Errorf("event name required unless --batch is given")
		}
		params, err := parseParams(kvs)
		if err != nil {
			return err
		}
		ev := event.Event{Name: args[0], Params: params, EngagementTimeMsec: engagement}

		var res validate.Result
		if againstCollector {
			res = svc.ValidateAgainstCollector(cmd.Context(), ev, id)
		} else {
			res = svc.ValidateLocal(ev, id)
		}
		printResults([]event.Event{ev}, []validate.Result{res})
		if !res.Valid {
			return fmt.Errorf("validation failed")
		}
		return nil
	},
}

// readEventsFile parses a file with one JSON event object per line.
func readEventsFile(path string) ([]event.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open batch file: %w", err)
	}
	defer f.Close()

	var events []event.Event
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var ev event.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			return nil, fmt.Errorf("parse batch file line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	return events, nil
}

func printResults(events []event.Event, results []validate.Result) {
	if outputJSON {
		printOutput(results)
		return
	}
	for i, res := range results {
		status := "VALID"
		if !res.Valid {
			status = "INVALID"
		}
		fmt.Printf("%s: %s\n", events[i].Name, status)
		for _, e := range res.Errors {
			fmt.Printf("  error   %-28s %s\n", e.Type, e.Message)
		}
		for _, w := range res.Warnings {
			fmt.Printf("  warning %-28s %s\n", w.Type, w.Message)
		}
	}
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringArray("param", nil, "event parameter as key=value (repeatable)")
	validateCmd.Flags().Int64("engagement-time", 0, "engagement time in milliseconds (0 uses the default)")
	validateCmd.Flags().Bool("collector", false, "validate against the collector's debug endpoint")
	validateCmd.Flags().String("batch", "", "file with one JSON event per line, validated against the collector")
}
