package main

import "github.com/redhat-developer/rhdh-plugins-sub008/cmd"

func main() {
	cmd.Execute()
}
