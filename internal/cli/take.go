package cli

import (
	"github.com/spf13/cobra"

	"quiz-arena/internal/selfpaced"
)

// NewTakeCmd runs a self-paced quiz over the stored pool in the terminal.
func NewTakeCmd(configPath *string) *cobra.Command {
	var (
		questions int
		minutes   int
	)
	cmd := &cobra.Command{
		Use:   "take",
		Short: "Take a timed self-paced quiz in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			b, err := setup(ctx, *configPath, true)
			if err != nil {
				return err
			}
			defer b.Close()

			pool, err := b.pools().Pool(ctx)
			if err != nil {
				return err
			}

			onChange, changed := notifier[selfpaced.State]()
			runner := selfpaced.NewRunner(b.store, b.keys, b.logger, selfpaced.Options{OnChange: onChange})
			defer runner.Close()
			if _, err := runner.Start(ctx, pool.Title(), pool, questions, minutes); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			result, err := takeQuiz(ctx, runner, changed, cmd.InOrStdin(), out)
			if err != nil {
				return err
			}
			printResult(out, result)
			return nil
		},
	}
	cmd.Flags().IntVar(&questions, "questions", 10, "number of questions (0 = whole pool)")
	cmd.Flags().IntVar(&minutes, "minutes", 10, "time limit in minutes")
	return cmd
}
