package main

import "github.com/frahmantamala/account-rental/cmd"

func main() {
	cmd.Execute()
}
