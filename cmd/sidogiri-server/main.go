package main

import "github.com/awssidogiri-web/AWS-Sidogiri/cmd/sidogiri-server/cmd"

func main() {
	cmd.Execute()
}
