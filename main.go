package main

import "github.com/JarvisJ/plex-ai/cmd"

func main() {
	cmd.Execute()
}
