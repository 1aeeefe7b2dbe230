// Command framectl is a terminal device for the photo frame portal.
package main

func main() {
	Execute()
}
