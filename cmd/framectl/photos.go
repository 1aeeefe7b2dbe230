package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"photo-frame-portal/internal/imaging"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"
)

var photosCmd = &cobra.Command{
	Use:   "photos",
	Short: "List the shared gallery",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := signedIn()
		if err != nil {
			return err
		}
		photos, err := c.ListPhotos(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(photos) == 0 {
			fmt.Fprintln(out, "No photos yet.")
			return nil
		}
		for i, p := range photos {
			fmt.Fprintf(out, "%3d  %s  %s\n", i, p.CreatedAt.Local().Format("2006-01-02 15:04"), p.URL)
		}
		return nil
	},
}

var uploadCmd = &cobra.Command{
	Use:   "upload FILE...",
	Short: "Upload photos to both frames",
	Long: `Upload one or more JPEG, PNG, GIF or HEIC files. The server crops and
scales each to the frame size; files that fail are reported and the rest
are still uploaded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := signedIn()
		if err != nil {
			return err
		}
		files, err := readSources(args)
		if err != nil {
			return err
		}

		report, err := c.UploadPhotos(cmd.Context(), files)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Uploaded %d of %d\n", report.Succeeded, report.Total)
		for _, f := range report.Failures {
			fmt.Fprintf(out, "  %s: %s (%s)\n", f.Filename, f.Message, f.Code)
		}
		if report.Succeeded == 0 {
			return errors.New("no photos were uploaded")
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete INDEX",
	Short: "Delete the photo at INDEX (as listed by photos) from both frames",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid index %q", args[0])
		}
		c, err := signedIn()
		if err != nil {
			return err
		}
		photos, err := c.ListPhotos(cmd.Context())
		if err != nil {
			return err
		}
		if index < 0 || index >= len(photos) {
			return fmt.Errorf("no photo at index %d (gallery has %d)", index, len(photos))
		}
		if err := c.DeletePhoto(cmd.Context(), photos[index].ID); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Photo deleted")
		return nil
	},
}

func readSources(paths []string) ([]imaging.Source, error) {
	files := make([]imaging.Source, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		files = append(files, imaging.Source{
			Filename:    filepath.Base(path),
			ContentType: mimetype.Detect(data).String(),
			Data:        data,
		})
	}
	return files, nil
}

func init() {
	rootCmd.AddCommand(photosCmd, uploadCmd, deleteCmd)
}
