package commands

import (
	"fmt"
	"strings"
	"time"

	"neotask/internal/journal"
	"neotask/internal/taskmanager"
)

const pendingShown = 5

// RenderStatus formats a snapshot as a short plain-text report.
func RenderStatus(s taskmanager.Snapshot) string {
	var b strings.Builder
	if s.Label != "" {
		fmt.Fprintf(&b, "Manager: %s\n", s.Label)
	}

	state := "idle"
	if s.Busy {
		state = "busy"
	}
	if s.StepMode {
		state += ", step mode"
	}
	fmt.Fprintf(&b, "State: %s\n", state)

	if cur := s.Current; cur != nil {
		fmt.Fprintf(&b, "Current: %s (%d ticks, %s left)\n", cur.Name, cur.Ticks, formatRemaining(s.RemainingTime))
	}
	if s.Busy {
		fmt.Fprintf(&b, "Queued: %d of %d, %.0f%% done\n", s.Queued, s.MaxTasks, s.Progress*100)
	}
	if n := len(s.Pending); n > 0 {
		names := make([]string, 0, pendingShown)
		for _, t := range s.Pending[:min(n, pendingShown)] {
			names = append(names, t.Name)
		}
		line := strings.Join(names, ", ")
		if n > pendingShown {
			line += fmt.Sprintf(" and %d more", n-pendingShown)
		}
		fmt.Fprintf(&b, "Next: %s\n", line)
	}
	if s.StackActive {
		b.WriteString("Stack: open\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderRuns formats journal entries one per line, newest first.
func RenderRuns(runs []journal.Run) string {
	if len(runs) == 0 {
		return "No runs recorded yet."
	}
	var b strings.Builder
	for _, r := range runs {
		fmt.Fprintf(&b, "%s %s %s in %s", r.FinishedAt.UTC().Format("15:04:05"), r.TaskName, r.Outcome, r.Duration.Round(time.Millisecond))
		if r.Error != "" {
			fmt.Fprintf(&b, ": %s", r.Error)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatRemaining(d time.Duration) string {
	if d < 0 {
		return "overdue"
	}
	return d.Round(100 * time.Millisecond).String()
}
