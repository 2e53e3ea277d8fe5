package main

import "github.com/fakeyudi/ppglog/cmd"

func main() {
	cmd.Execute()
}
