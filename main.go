package main

import "github.com/jmehdipour/church-sms/cmd"

func main() {
	cmd.Execute()
}
