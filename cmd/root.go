package cmd

import (
	"github.com/carousell/ct-go/pkg/logger/log"
	"github.com/nguyentranbao-ct/chat-node/internal/app"
	"github.com/nguyentranbao-ct/chat-node/internal/chatlog"
	"github.com/nguyentranbao-ct/chat-node/internal/server"
	"github.com/nguyentranbao-ct/chat-node/internal/syncer"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "chat-node",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		app.Invoke(
			server.StartServer,
			syncer.StartScheduler,
			chatlog.StartExpiryJob,
		).Run()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
