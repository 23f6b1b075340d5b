package main

import "github.com/fajarnugraha/identity-service/cmd"

func main() {
	cmd.Execute()
}
