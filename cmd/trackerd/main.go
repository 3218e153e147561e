package main

import (
	"context"

	"dlstracker-backend/cmd/trackerd/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
