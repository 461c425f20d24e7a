package main

import "github.com/NIFCLOUD-mbaas/ncmb-go/cmd/ncmb/cmd"

func main() {
	cmd.Execute()
}
