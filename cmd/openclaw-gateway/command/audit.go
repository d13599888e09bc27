// Copyright (c) 2025 Justin Cranford

package command

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// auditLine mirrors audit.Event's on-disk JSON shape, decoded loosely here
// since this package does not depend on the audit package's flush
// internals — only its file format.
type auditLine struct {
	Timestamp time.Time      `json:"ts"`
	Event     string         `json:"event"`
	Actor     string         `json:"actor"`
	IP        string         `json:"ip"`
	Details   map[string]any `json:"details,omitempty"`
}

func newAuditCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Inspect the append-only audit log"}
	cmd.AddCommand(newAuditTailCommand(), newAuditSearchCommand())
	return cmd
}

func newAuditTailCommand() *cobra.Command {
	var n int
	var follow bool
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Print the last N audit events",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, "load config: %v", err)
			}
			lines, err := readAuditLines(cfg.StateDir)
			if err != nil {
				return fail(cmd, "read audit log: %v", err)
			}
			if n > 0 && len(lines) > n {
				lines = lines[len(lines)-n:]
			}
			printAuditLines(cmd, lines, asJSON)

			if follow {
				return followAuditLog(cmd, cfg.StateDir, asJSON)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "lines", "n", 20, "number of events to print")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new events as they're appended")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON lines instead of a formatted table")
	return cmd
}

func newAuditSearchCommand() *cobra.Command {
	var eventPattern, actorPattern, since string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search the audit log by event, actor, or age",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fail(cmd, "load config: %v", err)
			}
			lines, err := readAuditLines(cfg.StateDir)
			if err != nil {
				return fail(cmd, "read audit log: %v", err)
			}

			var cutoff time.Time
			if since != "" {
				cutoff, err = parseSince(since)
				if err != nil {
					return fail(cmd, "parse --since: %v", err)
				}
			}

			var matched []auditLine
			for _, l := range lines {
				if eventPattern != "" && !strings.Contains(l.Event, eventPattern) {
					continue
				}
				if actorPattern != "" && !strings.Contains(l.Actor, actorPattern) {
					continue
				}
				if !cutoff.IsZero() && l.Timestamp.Before(cutoff) {
					continue
				}
				matched = append(matched, l)
			}
			printAuditLines(cmd, matched, asJSON)
			return nil
		},
	}
	cmd.Flags().StringVar(&eventPattern, "event", "", "substring filter on the event name")
	cmd.Flags().StringVar(&actorPattern, "actor", "", "substring filter on the actor")
	cmd.Flags().StringVar(&since, "since", "", "duration (e.g. 24h) or RFC3339 timestamp")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw JSON lines instead of a formatted table")
	return cmd
}

func parseSince(s string) (time.Time, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return time.Now().Add(-d), nil
	}
	return time.Parse(time.RFC3339, s)
}

// readAuditLines reads the live audit.jsonl only; rotated files are out of
// scope for tail/search, which operate on current activity.
func readAuditLines(stateDir string) ([]auditLine, error) {
	path := filepath.Join(stateDir, "logs", "audit.jsonl")
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []auditLine
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var l auditLine
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			continue // tolerate a partially-written final line
		}
		lines = append(lines, l)
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Timestamp.Before(lines[j].Timestamp) })
	return lines, scanner.Err()
}

func printAuditLines(cmd *cobra.Command, lines []auditLine, asJSON bool) {
	out := cmd.OutOrStdout()
	for _, l := range lines {
		if asJSON {
			raw, _ := json.Marshal(l)
			fmt.Fprintln(out, string(raw))
			continue
		}
		fmt.Fprintf(out, "%s\t%s\t%s\t%s\n", l.Timestamp.Format(time.RFC3339), l.Event, l.Actor, l.IP)
	}
}

// followAuditLog polls the audit file for new lines every second. It runs
// until the command's context is cancelled (e.g. Ctrl-C).
func followAuditLog(cmd *cobra.Command, stateDir string, asJSON bool) error {
	seen := map[time.Time]bool{}
	lines, err := readAuditLines(stateDir)
	if err != nil {
		return err
	}
	for _, l := range lines {
		seen[l.Timestamp] = true
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			lines, err := readAuditLines(stateDir)
			if err != nil {
				continue
			}
			var fresh []auditLine
			for _, l := range lines {
				if !seen[l.Timestamp] {
					seen[l.Timestamp] = true
					fresh = append(fresh, l)
				}
			}
			printAuditLines(cmd, fresh, asJSON)
		}
	}
}
