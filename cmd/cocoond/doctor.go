package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adi-family/cocoon/internal/config"
	"github.com/adi-family/cocoon/internal/diag"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "check signaling reachability, data directory, and proxied services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			report := diag.Run(cfg)

			fmt.Println("cocoond doctor")
			fmt.Println()
			for _, c := range report.Checks {
				status := "ok"
				if !c.OK {
					status = "FAIL"
				}
				fmt.Printf("  %-20s %-5s %s\n", c.Name, status, c.Detail)
			}
			return nil
		},
	}
}
