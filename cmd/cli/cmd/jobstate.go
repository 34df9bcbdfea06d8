package cmd

import (
	"cirelay/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var jobstateCmd = &cobra.Command{
	Use:   "jobstate [job_id] [status]",
	Short: "Record a status change for a job",
	Long: `Record a status change on a job's trail. Valid statuses follow the job
lifecycle: new, pre-run, running, post-run, success, failure, error, killed.

Example:
  relayctl jobstate 1f6b1e8a-... running
  relayctl jobstate 1f6b1e8a-... failure --comment "deploy step exploded"`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		jobID := args[0]
		status := args[1]
		comment, _ := cmd.Flags().GetString("comment")

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the CIRELAY_TOKEN environment variable")
			return
		}

		client := NewRelayClient(url, token)
		state, err := client.CreateJobState(jobID, api.CreateJobStateRequest{
			Status:  status,
			Comment: comment,
		})
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Error: %v\n", err)
			}
			return
		}

		if state == nil {
			cmd.Printf("Job already finished as %s, nothing recorded\n", status)
			return
		}

		cmd.Printf("✓ Recorded %s for job %s\n", colorizeStatus(state.Status), jobID)
	},
}

func init() {
	jobstateCmd.Flags().StringP("comment", "c", "", "Optional comment attached to the status change")

	rootCmd.AddCommand(jobstateCmd)
}
