package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"quiz-arena/internal/app"
	"quiz-arena/internal/domain"
)

// NewSessionCmd groups the host-side session lifecycle commands.
func NewSessionCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create, join and drive hosted sessions",
	}

	var (
		title     string
		questions int
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Open a session in waiting",
		Args:  cobra.NoArgs,
		RunE: withSessions(configPath, func(ctx context.Context, s *app.SessionService, out io.Writer, _ []string) error {
			session, err := s.Create(ctx, title, questions)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Session %s created. Join code: %s\n", session.ID, session.Code)
			return nil
		}),
	}
	create.Flags().StringVar(&title, "title", "", "session title")
	create.Flags().IntVar(&questions, "questions", 0, "questions to play (0 = whole pool)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: withSessions(configPath, func(ctx context.Context, s *app.SessionService, out io.Writer, _ []string) error {
			sessions, err := s.List(ctx)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions.")
				return nil
			}
			for _, session := range sessions {
				printSession(out, session)
			}
			return nil
		}),
	}

	join := &cobra.Command{
		Use:   "join CODE NAME",
		Short: "Join a session by code",
		Args:  cobra.MinimumNArgs(2),
		RunE: withSessions(configPath, func(ctx context.Context, s *app.SessionService, out io.Writer, args []string) error {
			session, contestant, err := s.Join(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s joined %q as contestant %s (%s).\n", contestant.Name, session.Title, contestant.ID, contestant.ColorTag)
			return nil
		}),
	}

	cmd.AddCommand(create, list, join)
	cmd.AddCommand(
		lifecycleCmd(configPath, "start", "Start a waiting session", (*app.SessionService).Start),
		lifecycleCmd(configPath, "advance", "Move to the next question", (*app.SessionService).AdvanceQuestion),
		lifecycleCmd(configPath, "finish", "Finish an active session", (*app.SessionService).Finish),
	)

	cmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a session",
		Args:  cobra.ExactArgs(1),
		RunE: withSessions(configPath, func(ctx context.Context, s *app.SessionService, out io.Writer, args []string) error {
			if err := s.Delete(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(out, "Session %s deleted.\n", args[0])
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "watch ID",
		Short: "Print the session every time it changes",
		Args:  cobra.ExactArgs(1),
		RunE: withSessions(configPath, func(ctx context.Context, s *app.SessionService, out io.Writer, args []string) error {
			return watchSession(ctx, s, args[0], out)
		}),
	})
	return cmd
}

type sessionAction func(*app.SessionService, context.Context, string) (domain.GameSession, error)

func lifecycleCmd(configPath *string, use, short string, action sessionAction) *cobra.Command {
	return &cobra.Command{
		Use:   use + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: withSessions(configPath, func(ctx context.Context, s *app.SessionService, out io.Writer, args []string) error {
			session, err := action(s, ctx, args[0])
			if err != nil {
				return err
			}
			printSession(out, session)
			return nil
		}),
	}
}

func withSessions(configPath *string, fn func(ctx context.Context, s *app.SessionService, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		b, err := setup(cmd.Context(), *configPath, true)
		if err != nil {
			return err
		}
		defer b.Close()
		return fn(cmd.Context(), b.sessions(b.pools()), cmd.OutOrStdout(), args)
	}
}

func watchSession(ctx context.Context, s *app.SessionService, id string, out io.Writer) error {
	updates, cancel, err := s.Watch(ctx, id)
	if err != nil {
		return err
	}
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case session, ok := <-updates:
			if !ok {
				fmt.Fprintf(out, "Session %s closed.\n", id)
				return nil
			}
			printSession(out, session)
		}
	}
}

func printSession(out io.Writer, s domain.GameSession) {
	question := "-"
	if s.CurrentQuestionIndex >= 0 {
		question = fmt.Sprintf("%d/%d", s.CurrentQuestionIndex+1, s.QuestionCount)
	}
	fmt.Fprintf(out, "%s  %s  %-8s  %q  question %s\n", s.ID, s.Code, s.Status, s.Title, question)
	for _, c := range s.Contestants {
		mark := " "
		if c.Connected {
			mark = "*"
		}
		fmt.Fprintf(out, "  %s %-20s %5d  %s\n", mark, c.Name, c.Score, c.ColorTag)
	}
}
