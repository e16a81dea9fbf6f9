package main

import (
	"github.com/spf13/cobra"

	"github.com/nodesync/nodesync/internal/config"
)

func newReloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reload",
		Short: "Signal a running `sync --watch` daemon to audit immediately",
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := sendSIGHUP(config.DefaultPIDPath()); err != nil {
				return err
			}

			statusf("sent reload signal\n")

			return nil
		},
	}
}
