package main

import (
	"go.pollpulse.org/infra/insights/go/insightsserver/cmd"
)

func main() {
	cmd.Execute()
}
