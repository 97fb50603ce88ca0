package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для управления jobs.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage package generation jobs",
	}

	cmd.AddCommand(
		newJobSubmitCmd(clientFn, outputFn),
		newJobStatusCmd(clientFn, outputFn),
		newJobListCmd(clientFn, outputFn),
		newJobTasksCmd(clientFn, outputFn),
	)

	return cmd
}

func newJobSubmitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var processors []string
	var expiresInSec int

	cmd := &cobra.Command{
		Use:   "submit BOUNDARY",
		Short: "Submit a package generation job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.SubmitJob(SubmitJobRequest{
				BoundaryName: args[0],
				Processors:   processors,
				ExpiresInSec: expiresInSec,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job submitted: %s", resp.JobID))
			out.Print(
				[]string{"JOB_ID"},
				[][]string{{resp.JobID}},
				resp,
			)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&processors, "processor", nil, "Processor signature, e.g. elevation.version_1 (repeatable)")
	cmd.Flags().IntVar(&expiresInSec, "expires-in", 0, "Seconds the job may wait before starting (default 1h)")

	return cmd
}

func newJobStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show aggregated job status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.GetJobStatus(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Group: %s (%d%%)",
				status.JobGroupStatus, status.JobGroupPercentComplete))

			headers := []string{"PROCESSOR", "STATUS", "PROGRESS", "CURRENT_TASK"}
			rows := make([][]string, len(status.JobGroupProcessors))
			for i, p := range status.JobGroupProcessors {
				progress := ""
				currentTask := ""
				if p.JobProgress != nil {
					progress = strconv.Itoa(p.JobProgress.PercentComplete) + "%"
					currentTask = p.JobProgress.CurrentTask
				}
				rows[i] = []string{p.ProcessorName, p.JobStatus, progress, currentTask}
			}

			out.Print(headers, rows, status)
			return nil
		},
	}
}

func newJobListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var boundary string
	var state string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			jobs, err := client.ListJobs(ListJobsOpts{
				Boundary: boundary,
				State:    state,
				Limit:    limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "BOUNDARY", "PROCESSORS", "STATE", "SUBMITTED"}
			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = []string{
					j.ID, j.BoundaryName, strconv.Itoa(len(j.Processors)),
					j.State, j.SubmittedAt,
				}
			}

			out.Print(headers, rows, jobs)
			return nil
		},
	}

	cmd.Flags().StringVar(&boundary, "boundary", "", "Filter by boundary name")
	cmd.Flags().StringVar(&state, "state", "", "Filter by state (PENDING, RUNNING, COMPLETE, EXPIRED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newJobTasksCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks JOB_ID",
		Short: "List tasks in a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.ListJobTasks(args[0])
			if err != nil {
				return err
			}

			headers := []string{"ID", "KIND", "SIGNATURE", "STATUS", "ATTEMPT"}
			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = []string{t.ID, t.Kind, t.ProcessorSig, t.Status, strconv.Itoa(t.Attempt)}
			}

			out.Print(headers, rows, tasks)
			return nil
		},
	}
}
