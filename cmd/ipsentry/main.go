package main

import "ipsentry/internal/app"

func main() {
	app.Run()
}
