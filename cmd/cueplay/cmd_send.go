/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/showctl/cueplay/internal/controller"
	"github.com/showctl/cueplay/internal/remote"
)

var sendAddr string

var sendCmd = &cobra.Command{
	Use:   "send [command]",
	Short: "Send a show-control command to a running daemon",
	Long:  "Deliver one command over the TCP show-control socket. Without an argument it sends AdvanceSong, the cue that starts the next song.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVar(&sendAddr, "addr", "", "command socket address (default CUEPLAY_COMMAND_BIND)")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	command := controller.CommandAdvanceSong
	if len(args) == 1 {
		command = args[0]
	}

	addr := sendAddr
	if addr == "" {
		if err := loadConfig(); err != nil {
			return err
		}
		addr = cfg.CommandBind
	}

	if err := remote.Send(addr, command); err != nil {
		return err
	}
	fmt.Printf("sent %s to %s\n", command, addr)
	return nil
}
