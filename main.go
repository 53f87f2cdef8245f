package main

import "github.com/ValentinKolb/kRPC/cmd"

func main() {
	cmd.Execute()
}
