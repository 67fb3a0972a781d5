package main

import "github.com/kozaktomas/shop-kiosk/cmd"

func main() {
	cmd.Execute()
}
