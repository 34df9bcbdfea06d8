package cmd

import (
	"fmt"
	"time"

	"cirelay/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Get status of a job",
	Long:  `Retrieve detailed information for a job, including its current status (new, pre-run, running, post-run, success, failure, error, killed), the components it was pinned to, and its full status trail.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the CIRELAY_TOKEN environment variable")
			return
		}

		client := NewRelayClient(url, token)
		job, err := client.GetJob(jobID)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Error: %v\n", err)
			}
			return
		}

		printJob(cmd, job)

		states, err := client.ListJobStates(jobID)
		if err != nil {
			cmd.Printf("Failed to fetch status trail: %v\n", err)
			return
		}
		if len(states) > 0 {
			cmd.Printf("\n%sStatus trail:%s\n", colorBold, colorReset)
			for _, s := range states {
				line := fmt.Sprintf("  %s  %s", s.CreatedAt.Format("2006-01-02 15:04:05"), colorizeStatus(s.Status))
				if s.Comment != "" {
					line += fmt.Sprintf(" %s— %s%s", colorDim, s.Comment, colorReset)
				}
				cmd.Println(line)
			}
		}
	},
}

func printJob(cmd *cobra.Command, job *api.JobResponse) {
	icon := statusIcon(job.Status)
	cmd.Printf("%s %sJob Details%s\n", icon, colorBold, colorReset)
	cmd.Println("──────────────────────────────")

	cmd.Printf("%sID:%s        %s\n", colorDim, colorReset, job.ID)
	if job.Name != "" {
		cmd.Printf("%sName:%s      %s\n", colorDim, colorReset, job.Name)
	}
	cmd.Printf("%sStatus:%s    %s\n", colorDim, colorReset, colorizeStatus(job.Status))
	cmd.Printf("%sTopic:%s     %s\n", colorDim, colorReset, job.TopicID)
	cmd.Printf("%sRemoteci:%s  %s\n", colorDim, colorReset, job.RemoteciID)
	if job.PipelineID != "" {
		cmd.Printf("%sPipeline:%s  %s\n", colorDim, colorReset, job.PipelineID)
	}
	if job.PreviousJobID != "" {
		kind := "update of"
		if job.Upgrade {
			kind = "upgrade of"
		}
		cmd.Printf("%sOrigin:%s    %s %s\n", colorDim, colorReset, kind, job.PreviousJobID)
	}

	cmd.Printf("%sCreated:%s   %s\n", colorDim, colorReset, formatTimeWithRelative(job.CreatedAt))
	if isTerminal(job.Status) {
		duration := job.UpdatedAt.Sub(job.CreatedAt)
		cmd.Printf("%sFinished:%s  %s %s(%s)%s\n", colorDim, colorReset,
			formatTimeWithRelative(job.UpdatedAt),
			colorCyan, formatDuration(duration), colorReset)
	}

	if len(job.Components) > 0 {
		cmd.Printf("\n%sComponents:%s\n", colorBold, colorReset)
		printComponents(cmd, job.Components)
	}
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func isTerminal(status string) bool {
	switch status {
	case "success", "failure", "error", "killed":
		return true
	}
	return false
}

func statusIcon(status string) string {
	switch status {
	case "success":
		return colorGreen + "✓" + colorReset
	case "failure", "error":
		return colorRed + "✗" + colorReset
	case "killed":
		return colorRed + "☠" + colorReset
	case "running", "pre-run", "post-run":
		return colorYellow + "⏳" + colorReset
	case "new":
		return colorCyan + "◯" + colorReset
	default:
		return "•"
	}
}

func colorizeStatus(status string) string {
	icon := statusIcon(status)
	switch status {
	case "success":
		return icon + " " + colorGreen + status + colorReset
	case "failure", "error", "killed":
		return icon + " " + colorRed + status + colorReset
	case "running", "pre-run", "post-run":
		return icon + " " + colorYellow + status + colorReset
	case "new":
		return icon + " " + colorCyan + status + colorReset
	default:
		return status
	}
}

func formatTimeWithRelative(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	relative := relativeTime(t)
	return fmt.Sprintf("%s %s(%s ago)%s", t.Format("Mon, 02 Jan 2006 15:04:05 MST"), colorDim, relative, colorReset)
}

func relativeTime(t time.Time) string {
	duration := time.Since(t)

	if duration < time.Minute {
		return fmt.Sprintf("%ds", int(duration.Seconds()))
	} else if duration < time.Hour {
		return fmt.Sprintf("%dm", int(duration.Minutes()))
	} else if duration < 24*time.Hour {
		return fmt.Sprintf("%dh", int(duration.Hours()))
	} else {
		days := int(duration.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	} else if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
