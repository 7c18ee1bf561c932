package main

import (
	"github.com/nguyentranbao-ct/chat-node/cmd"
)

func main() {
	cmd.Execute()
}
