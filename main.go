package main

import "github.com/AzielCF/az-crm/cmd"

func main() {
	cmd.Execute()
}
