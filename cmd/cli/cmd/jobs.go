package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List your team's jobs, newest first",
	Long: `List the jobs visible to your team, newest first.

The --where flag accepts the controller's query language:
  relayctl jobs --where 'q(eq(status,failure))'
  relayctl jobs --where 'q(and(eq(status,success),like(name,nightly%)))'`,
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		where, _ := flags.GetString("where")
		limit, _ := flags.GetInt("limit")

		url := viper.GetString("url")
		token := viper.GetString("token")

		if token == "" {
			cmd.Println("API token not found. Please set it using the --token flag or the CIRELAY_TOKEN environment variable")
			return
		}

		client := NewRelayClient(url, token)
		jobs, err := client.ListJobs(where, limit)
		if err != nil {
			if apiErr, ok := err.(*APIError); ok {
				cmd.Printf("Error (%d): %s\n", apiErr.StatusCode, apiErr.Message)
			} else {
				cmd.Printf("Error: %v\n", err)
			}
			return
		}

		if len(jobs) == 0 {
			cmd.Println("No jobs found")
			return
		}

		for _, job := range jobs {
			name := job.Name
			if name == "" {
				name = "-"
			}
			cmd.Printf("%s  %-24s %-32s %s(%s ago)%s\n",
				job.ID, colorizeStatus(job.Status), name,
				colorDim, relativeTime(job.CreatedAt), colorReset)
		}
	},
}

func init() {
	flags := jobsCmd.Flags()
	flags.StringP("where", "w", "", "Filter query, e.g. q(eq(status,failure))")
	flags.IntP("limit", "l", 50, "Maximum number of jobs to return")

	rootCmd.AddCommand(jobsCmd)
}
