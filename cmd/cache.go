package cmd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the media cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached media entries, for every user or only --user",
	RunE:  clearCache,
}

func init() {
	cacheClearCmd.Flags().Int64("user", 0, "Plex user id whose entries are deleted; 0 clears the whole namespace")
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}

func clearCache(cmd *cobra.Command, _ []string) error {
	defer StopApp()

	userID, _ := cmd.Flags().GetInt64("user")
	ctx := context.Background()

	var (
		deleted int64
		err     error
	)
	if userID != 0 {
		deleted, err = cacheUsecase.ClearUserCache(ctx, userID)
	} else {
		deleted, err = cacheUsecase.ClearAll(ctx)
	}
	if err != nil {
		logrus.WithError(err).Error("[CACHE] clear failed")
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d cache entries\n", deleted)
	return nil
}
