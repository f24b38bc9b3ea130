package main

import "github.com/ValentinKolb/dFacade/cmd"

func main() {
	cmd.Execute()
}
