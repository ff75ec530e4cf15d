package main

import "github.com/assetops/asset-management/cmd"

func main() {
	cmd.Execute()
}
