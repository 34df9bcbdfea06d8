package cmd

import (
	"cirelay/pkg/api"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule [topic_id]",
	Short: "Schedule a new job against a topic",
	Long: `Schedule a new job against a topic. The controller resolves the topic
(virtual topics follow their redirection), picks the latest active component of
every type the topic tracks, and returns a job pinned to that snapshot.

Example:
  relayctl schedule 1f6b1e8a-... --name nightly
  relayctl schedule 1f6b1e8a-... --query 'q(contains(tags,build:nightly))'
  relayctl schedule 1f6b1e8a-... --dry-run`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		topicID := args[0]

		flags := cmd.Flags()
		name, _ := flags.GetString("name")
		query, _ := flags.GetString("query")
		components, _ := flags.GetStringSlice("component")
		types, _ := flags.GetStringSlice("type")
		pipelineID, _ := flags.GetString("pipeline")
		secondary, _ := flags.GetString("secondary-topic")
		dryRun, _ := flags.GetBool("dry-run")

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the CIRELAY_TOKEN environment variable")
			return
		}

		client := NewRelayClient(url, token)
		req := api.ScheduleJobRequest{
			TopicID:          topicID,
			TopicIDSecondary: secondary,
			ComponentsQuery:  query,
			ComponentIDs:     components,
			ComponentTypes:   types,
			Name:             name,
			PipelineID:       pipelineID,
			DryRun:           dryRun,
		}

		result, err := client.ScheduleJob(req)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Error: %v\n", err)
			}
			return
		}

		if dryRun {
			cmd.Println("Dry run: no job created. Components that would be selected:")
			printComponents(cmd, result.Components)
			return
		}

		cmd.Printf("✓ Job scheduled!\nID: %s\nTopic: %s\n", result.Job.ID, result.Job.TopicID)
		printComponents(cmd, result.Components)
	},
}

func printComponents(cmd *cobra.Command, components []api.ComponentResponse) {
	for _, c := range components {
		cmd.Printf("  %s%-12s%s %s (%s)\n", colorDim, c.Type, colorReset, c.Name, c.ID)
	}
}

func init() {
	flags := scheduleCmd.Flags()
	flags.StringP("name", "n", "", "Name for the scheduled job")
	flags.StringP("query", "q", "", "Component selection query, e.g. q(contains(tags,build:nightly))")
	flags.StringSlice("component", []string{}, "Explicit component IDs, bypassing latest-per-type selection")
	flags.StringSlice("type", []string{}, "Component types to resolve, overriding the topic's declared list")
	flags.String("pipeline", "", "Pipeline to attach the job to")
	flags.String("secondary-topic", "", "Secondary topic whose components are merged into the job")
	flags.Bool("dry-run", false, "Resolve components without creating a job")

	rootCmd.AddCommand(scheduleCmd)
}
