package main

import (
	"fmt"
	"math/rand"
	"strings"

	"photo-frame-portal/internal/app"
	"photo-frame-portal/internal/models"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send TEXT...",
	Short: "Send a message to the other frame",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := signedIn()
		if err != nil {
			return err
		}
		info, err := c.CurrentPair(cmd.Context())
		if err != nil {
			return err
		}

		payload := models.MessagePayload{
			Text:        strings.Join(args, " "),
			SenderLabel: info.Member.DisplayName,
		}
		event, err := c.PublishEvent(cmd.Context(), models.EventMessage, payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Message sent (#%d)\n", event.Seq)
		return nil
	},
}

var emojiCmd = &cobra.Command{
	Use:   "emoji NAME",
	Short: "Send an emoji ping: heart, pink_heart, sparkle_heart, stars or any single emoji",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := signedIn()
		if err != nil {
			return err
		}
		event, err := c.PublishEvent(cmd.Context(), models.EventEmoji, app.EmojiAt(args[0], rand.Intn))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent %s (#%d)\n", models.EmojiDisplay(args[0]), event.Seq)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sendCmd, emojiCmd)
}
