package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/Nephrolytics-ai/pronunciation-coach/pkg/audio"
	"github.com/spf13/cobra"
)

func newSweepCmd(root *rootOptions) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete canonical audio files older than the retention period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			ttl := olderThan
			if ttl <= 0 {
				ttl = cfg.RetentionTTL()
			}
			if ttl <= 0 {
				return errors.New("retention is disabled; pass --older-than")
			}
			removed, err := audio.NewStore(cfg.Audio.ScratchDir).Sweep(cmd.Context(), ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed %d file(s) from %s\n", removed, cfg.Audio.ScratchDir)
			return err
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "override the configured retention, e.g. 30m")
	return cmd
}
