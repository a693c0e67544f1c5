package main

import "github.com/insuranceops/commission-processor/cmd"

func main() {
	cmd.Execute()
}
