package admin

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"colorgame/domain/entities"
)

const usage = `usage: colorgame admin <command>

commands:
  rounds                              list active rounds
  force-end-all                       resolve every active round now
  force-end <period_id>               resolve one round now
  exposure <period_id>                show the stakes of a round per outcome
  manipulation                        show manipulation flags
  manipulation <global|period> on|off set the global flag or a round override`

// Run executes one admin command against the API and writes the result to out
func Run(client *Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%s", usage)
	}

	if err := client.CheckConnection(); err != nil {
		return err
	}

	switch args[0] {
	case "rounds":
		rounds, err := client.Rounds()
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPERIOD\tBUCKET\tENDS\tLEFT\tBETS\tSTAKED")
		for _, r := range rounds {
			left := time.Duration(r.RemainingMs) * time.Millisecond
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\n",
				r.ID, r.Period, r.Duration, r.EndTime.Format(time.RFC3339), left.Round(time.Second), r.TotalBets, r.TotalBetAmount)
		}
		return w.Flush()

	case "force-end-all":
		summaries, err := client.ForceEndAll()
		for _, s := range summaries {
			printSettlement(out, s.RoundID, s.Number, s.Color, s.Size, s.TotalPaid, s.SuccessorID)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%d rounds force-ended\n", len(summaries))
		return nil

	case "force-end":
		if len(args) < 2 {
			return fmt.Errorf("usage: colorgame admin force-end <period_id>")
		}
		s, err := client.ForceEnd(args[1])
		if err != nil {
			return err
		}
		printSettlement(out, s.RoundID, s.Number, s.Color, s.Size, s.TotalPaid, s.SuccessorID)
		return nil

	case "exposure":
		if len(args) < 2 {
			return fmt.Errorf("usage: colorgame admin exposure <period_id>")
		}
		e, err := client.Exposure(args[1])
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for n, staked := range e.Numbers {
			fmt.Fprintf(w, "number\t%d\t%d\n", n, staked)
		}
		for _, c := range entities.AllColors {
			fmt.Fprintf(w, "color\t%s\t%d\n", c, e.Colors[string(c)])
		}
		for _, sz := range entities.AllSizes {
			fmt.Fprintf(w, "size\t%s\t%d\n", sz, e.Sizes[string(sz)])
		}
		fmt.Fprintf(w, "total\t\t%d\n", e.Total)
		return w.Flush()

	case "manipulation":
		if len(args) == 1 {
			state, err := client.Manipulation()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "global: %t\n", state.Global)
			for id, enabled := range state.Overrides {
				fmt.Fprintf(out, "%s: %t\n", id, enabled)
			}
			return nil
		}
		if len(args) < 3 {
			return fmt.Errorf("usage: colorgame admin manipulation <global|period_id> on|off")
		}
		enabled, err := parseSwitch(args[2])
		if err != nil {
			return err
		}
		if _, err := client.SetManipulation(args[1], enabled); err != nil {
			return err
		}
		fmt.Fprintf(out, "manipulation for %s set to %t\n", args[1], enabled)
		return nil

	default:
		return fmt.Errorf("unknown admin command %q\n%s", args[0], usage)
	}
}

func printSettlement(out io.Writer, roundID string, number int, color, size string, paid int64, successorID string) {
	fmt.Fprintf(out, "%s: %d %s %s, paid %d, successor %s\n", roundID, number, color, size, paid, successorID)
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("expected on or off, got %q", s)
	}
}
