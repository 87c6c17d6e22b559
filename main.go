package main

import (
	"github.com/galleriad/immich-cache/cmd"
)

func main() {
	cmd.Execute()
}
