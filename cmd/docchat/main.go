package main

import "github.com/ZanzyTHEbar/docchat/cmd"

func main() {
	cmd.Execute()
}
