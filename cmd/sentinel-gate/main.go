package main

import "github.com/Sentinel-Gate/Sentinelgate/cmd/sentinel-gate/cmd"

func main() {
	cmd.Execute()
}
