package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"photo-frame-portal/internal/app"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Show the shared gallery live and control it from stdin",
	Long: `watch keeps this device connected to the pair. Navigation, messages,
emoji pings and photo changes from the other device are printed as they
arrive. Type ? for the list of commands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := signedIn()
		if err != nil {
			return err
		}
		me, err := c.Me(cmd.Context())
		if err != nil {
			return err
		}
		if me.NeedsPairing || me.Pair == nil {
			return errors.New("this account is not paired yet")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Pair %s as device %s. Type ? for help.\n", me.Pair.Pair.PairCode, me.Pair.Member.DeviceRole)

		session := app.New(c, newTermView(out), me.Pair)
		feed := c.Feed()

		feedErr := make(chan error, 1)
		go session.Run(ctx)
		go func() {
			feedErr <- feed.Run(ctx, me.Pair.Pair.ID, me.Pair.Member.DeviceRole, session.Handlers())
		}()
		go readCommands(cmd.InOrStdin(), out, session, cancel)

		select {
		case <-ctx.Done():
			return nil
		case err := <-feedErr:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("live feed stopped: %w", err)
		}
	},
}

// readCommands feeds stdin lines to the session until q or EOF
func readCommands(in io.Reader, out io.Writer, s *app.Session, quit context.CancelFunc) {
	defer quit()

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if scanner.Text() == "" {
			continue
		}
		c, err := parseCommand(scanner.Text())
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		switch c.op {
		case "n":
			s.Next()
		case "p":
			s.Prev()
		case "g":
			s.Select(c.arg)
		case "o":
			s.OpenLightbox(c.arg)
		case "c":
			s.CloseLightbox()
		case "s":
			s.SendMessage(c.text)
		case "e":
			s.SendEmoji(c.text)
		case "d":
			s.Delete(c.arg)
		case "r":
			s.Reload()
		case "?":
			fmt.Fprintln(out, watchHelp)
		case "q":
			return
		}
	}
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
