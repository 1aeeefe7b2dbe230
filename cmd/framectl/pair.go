package main

import (
	"fmt"
	"io"

	"photo-frame-portal/internal/models"

	"github.com/spf13/cobra"
)

var pairCmd = &cobra.Command{
	Use:   "pair",
	Short: "Create or join a pair",
}

var pairCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a pair as device A and print its code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := signedIn()
		if err != nil {
			return err
		}
		info, err := c.CreatePair(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printPair(cmd.OutOrStdout(), info)
		fmt.Fprintln(cmd.OutOrStdout(), "Share the code with the other device.")
		return nil
	},
}

var pairJoinCmd = &cobra.Command{
	Use:   "join CODE NAME",
	Short: "Join a pair as device B",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := signedIn()
		if err != nil {
			return err
		}
		info, err := c.JoinPair(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		printPair(cmd.OutOrStdout(), info)
		return nil
	},
}

func printPair(out io.Writer, info *models.PairInfo) {
	fmt.Fprintf(out, "Pair:    %s\n", info.Pair.PairCode)
	fmt.Fprintf(out, "Device:  %s (%s)\n", info.Member.DeviceRole, info.Member.DisplayName)
	if info.PartnerName != "" {
		fmt.Fprintf(out, "Partner: %s\n", info.PartnerName)
	} else {
		fmt.Fprintln(out, "Partner: waiting to join")
	}
}

func init() {
	pairCmd.AddCommand(pairCreateCmd, pairJoinCmd)
	rootCmd.AddCommand(pairCmd)
}
