package cli

import (
	"github.com/spf13/cobra"

	"quiz-arena/internal/config"
	"quiz-arena/internal/gameshow"
)

// NewGameShowCmd hosts a pass-and-play game show in the terminal.
func NewGameShowCmd(configPath *string) *cobra.Command {
	var (
		title   string
		seconds int
	)
	cmd := &cobra.Command{
		Use:   "gameshow NAME NAME [NAME...]",
		Short: "Play a turn-based game show in the terminal",
		Args:  cobra.RangeArgs(gameshow.MinContestants, gameshow.MaxContestants),
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
			roster, err := gameshow.Roster(args)
			if err != nil {
				return err
			}
			if title == "" {
				title = pool.Title()
			}
			if seconds <= 0 {
				seconds = b.cfg.Game.TurnSeconds
			}

			onChange, changed := notifier[gameshow.State]()
			controller := gameshow.NewController(b.store, b.keys, nil, b.logger, gameshow.Options{
				TurnSeconds: seconds,
				ResultDelay: config.TTLDuration(b.cfg.Game.ResultDelay, gameshow.DefaultResultDelay),
				OnChange:    onChange,
			})
			defer controller.Close()
			if _, err := controller.Begin(ctx, title, "", roster, pool); err != nil {
				return err
			}

			_, err = playGameShow(ctx, controller, changed, cmd.InOrStdin(), cmd.OutOrStdout())
			return err
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "game title (default: the pool title)")
	cmd.Flags().IntVar(&seconds, "seconds", 0, "answer countdown per turn (default: game.turn_seconds)")
	return cmd
}
