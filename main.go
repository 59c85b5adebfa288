package main

import "schoolfee/cmd"

func main() {
	cmd.Execute()
}
