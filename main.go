package main

import "sticker-album-backend/cmd"

func main() {
	cmd.Run()
}
