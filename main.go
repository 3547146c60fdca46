package main

import "github.com/sadopc/paytrackr/cmd"

func main() {
	cmd.Execute()
}
