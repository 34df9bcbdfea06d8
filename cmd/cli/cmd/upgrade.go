package cmd

import (
	"cirelay/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var upgradeCmd = &cobra.Command{
	Use:   "upgrade [job_id]",
	Short: "Schedule a successor job on the next topic",
	Long: `Schedule a successor for an existing job on the topic's designated next
topic, with components re-resolved there. The new job keeps the same remoteci
and pipeline and records the original as its predecessor.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runFollowup(cmd, args[0], "upgraded", func(c *RelayClient, id string) (*api.ScheduleJobResponse, error) {
			return c.UpgradeJob(id)
		})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update [job_id]",
	Short: "Schedule a successor job with fresh components",
	Long: `Schedule a successor for an existing job on the same topic, picking up
whatever components are latest now. Useful to re-run a job against newer builds.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runFollowup(cmd, args[0], "updated", func(c *RelayClient, id string) (*api.ScheduleJobResponse, error) {
			return c.UpdateJob(id)
		})
	},
}

func runFollowup(cmd *cobra.Command, jobID, verb string, call func(*RelayClient, string) (*api.ScheduleJobResponse, error)) {
	url := viper.GetString("url")
	token := viper.GetString("token")

	if token == "" {
		cmd.Println("API token not found. Please set it using the --token flag or the CIRELAY_TOKEN environment variable")
		return
	}

	client := NewRelayClient(url, token)
	result, err := call(client, jobID)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok {
			cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
		} else {
			cmd.Printf("Error: %v\n", err)
		}
		return
	}

	cmd.Printf("✓ Job %s!\nID: %s\nTopic: %s\n", verb, result.Job.ID, result.Job.TopicID)
	printComponents(cmd, result.Components)
}

func init() {
	rootCmd.AddCommand(upgradeCmd)
	rootCmd.AddCommand(updateCmd)
}
