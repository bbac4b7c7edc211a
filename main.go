package main

import "github.com/sellermesh/ms-go-vendor-payouts/cmd"

func main() {
	cmd.Execute()
}
