package main

import "uniadmit-backend/cmd/uniadmit/cmd"

func main() {
	cmd.Execute()
}
