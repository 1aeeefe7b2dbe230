package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var signupCmd = &cobra.Command{
	Use:   "signup EMAIL",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFlag()
		if err != nil {
			return err
		}
		res, err := newClient().SignUp(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		if err := saveToken(res.Token); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed up as %s\n", res.User.Email)
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login EMAIL",
	Short: "Sign in and remember the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := passwordFlag()
		if err != nil {
			return err
		}
		res, err := newClient().Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		if err := saveToken(res.Token); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", res.User.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := saveToken(""); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in user and pair",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := signedIn()
		if err != nil {
			return err
		}
		me, err := c.Me(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "User:    %s\n", me.User.Email)
		if me.NeedsPairing || me.Pair == nil {
			fmt.Fprintln(out, "Pair:    none (run framectl pair create or pair join)")
			return nil
		}
		printPair(out, me.Pair)
		return nil
	},
}

func passwordFlag() (string, error) {
	password := viper.GetString("password")
	if password == "" {
		return "", errors.New("password required (--password or FRAMECTL_PASSWORD)")
	}
	return password, nil
}

func init() {
	for _, cmd := range []*cobra.Command{signupCmd, loginCmd} {
		cmd.Flags().StringP("password", "p", "", "Account password")
	}
	// both commands share one viper key; bind whichever runs
	signupCmd.PreRun = func(cmd *cobra.Command, args []string) {
		viper.BindPFlag("password", cmd.Flags().Lookup("password"))
	}
	loginCmd.PreRun = signupCmd.PreRun

	rootCmd.AddCommand(signupCmd, loginCmd, logoutCmd, whoamiCmd)
}
