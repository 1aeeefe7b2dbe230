package main

import "photo-frame-portal/cmd"

func main() {
	cmd.Run()
}
